// Package dispatch implements campaign fan-out: resolving the target
// subscriber set and pushing the payload to every endpoint concurrently,
// then recording the aggregate outcome exactly once.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calebhs/pushcast/internal/models"
	"github.com/calebhs/pushcast/internal/push"
	"github.com/calebhs/pushcast/internal/services"
	"github.com/calebhs/pushcast/pkg/logger"
	"github.com/calebhs/pushcast/pkg/metrics"
)

// TargetResolver expands a targeting spec into concrete subscribers.
type TargetResolver interface {
	Resolve(ctx context.Context, websiteID string, segmentIDs []string) ([]models.Subscriber, error)
}

// Deliverer pushes one payload to one endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, sub push.Subscription, payload push.Payload) (push.Result, error)
}

// CampaignStore records delivery logs and the terminal campaign outcome.
type CampaignStore interface {
	AppendDeliveryLog(ctx context.Context, input services.DeliveryLogInput) error
	FinalizeSend(ctx context.Context, campaignID string, sentCount int) error
}

// SendRequest names the campaign to fan out and its payload.
type SendRequest struct {
	CampaignID string
	WebsiteID  string
	SegmentIDs []string
	Payload    push.Payload
}

// SendResult summarises one completed fan-out.
type SendResult struct {
	SentCount     int
	TotalTargeted int
}

// Dispatcher runs campaign fan-outs with bounded concurrency.
type Dispatcher struct {
	resolver    TargetResolver
	deliverer   Deliverer
	store       CampaignStore
	concurrency int
	log         *zap.Logger
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds the number of in-flight deliveries per campaign.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(resolver TargetResolver, deliverer Deliverer, store CampaignStore, opts ...Option) (*Dispatcher, error) {
	if resolver == nil {
		return nil, errors.New("dispatch: target resolver is required")
	}
	if deliverer == nil {
		return nil, errors.New("dispatch: deliverer is required")
	}
	if store == nil {
		return nil, errors.New("dispatch: campaign store is required")
	}

	d := &Dispatcher{
		resolver:    resolver,
		deliverer:   deliverer,
		store:       store,
		concurrency: 32,
		log:         logger.WithModule("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Send fans a campaign out to its resolved subscribers. Individual delivery
// failures never abort the batch; they are logged per subscriber and the
// campaign completes with whatever count succeeded. Every delivery attempt
// finishes before the terminal FinalizeSend runs, and FinalizeSend runs
// exactly once per call. The returned error means the campaign outcome
// could not be recorded, not that deliveries failed.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	start := time.Now()

	targets, err := d.resolver.Resolve(ctx, req.WebsiteID, req.SegmentIDs)
	if err != nil {
		metrics.CampaignSends.WithLabelValues("error").Inc()
		return SendResult{}, fmt.Errorf("dispatch: resolve targets: %w", err)
	}

	var sent atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)

	seen := make(map[string]struct{}, len(targets))
	total := 0
	for _, target := range targets {
		// The resolver already de-duplicates; this guard keeps the
		// one-delivery-per-subscriber invariant local to the fan-out.
		if _, dup := seen[target.ID]; dup {
			continue
		}
		seen[target.ID] = struct{}{}
		total++

		group.Go(func() error {
			d.deliverOne(groupCtx, req, target, &sent)
			return nil
		})
	}

	// Join barrier: no delivery is still in flight past this point.
	_ = group.Wait()

	sentCount := int(sent.Load())
	if err := d.store.FinalizeSend(ctx, req.CampaignID, sentCount); err != nil {
		metrics.CampaignSends.WithLabelValues("error").Inc()
		return SendResult{SentCount: sentCount, TotalTargeted: total},
			fmt.Errorf("dispatch: finalize campaign: %w", err)
	}

	metrics.CampaignSends.WithLabelValues("completed").Inc()
	metrics.CampaignSendDuration.Observe(time.Since(start).Seconds())

	d.log.Info("campaign fan-out complete",
		zap.String("campaign_id", req.CampaignID),
		zap.Int("targeted", total),
		zap.Int("sent", sentCount),
		zap.Duration("elapsed", time.Since(start)))

	return SendResult{SentCount: sentCount, TotalTargeted: total}, nil
}

func (d *Dispatcher) deliverOne(ctx context.Context, req SendRequest, target models.Subscriber, sent *atomic.Int64) {
	result, err := d.deliverer.Deliver(ctx, push.Subscription{
		Endpoint: target.Endpoint,
		P256dh:   target.P256dh,
		Auth:     target.Auth,
	}, req.Payload)
	if err != nil {
		result = push.Result{Success: false, Error: err.Error()}
	}

	entry := services.DeliveryLogInput{
		NotificationID: req.CampaignID,
		SubscriberID:   target.ID,
	}
	if result.Success {
		sent.Add(1)
		metrics.PushDeliveries.WithLabelValues("sent").Inc()
		entry.Status = models.DeliverySent
	} else {
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		entry.Status = models.DeliveryFailed
		entry.Error = result.Error
		d.log.Debug("push delivery failed",
			zap.String("campaign_id", req.CampaignID),
			zap.String("subscriber_id", target.ID),
			zap.Int("status_code", result.StatusCode),
			zap.String("reason", result.Error))
	}

	// A failed log write degrades observability only; the delivery outcome
	// already happened and still counts.
	if err := d.store.AppendDeliveryLog(ctx, entry); err != nil {
		d.log.Warn("delivery log write failed",
			zap.String("campaign_id", req.CampaignID),
			zap.String("subscriber_id", target.ID),
			zap.Error(err))
	}
}
