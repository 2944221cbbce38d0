// Package scheduler dispatches campaigns whose scheduled send time has
// arrived. A cron tick claims each due campaign and hands it to the
// fan-out engine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/calebhs/pushcast/internal/dispatch"
	"github.com/calebhs/pushcast/internal/models"
	"github.com/calebhs/pushcast/internal/push"
	"github.com/calebhs/pushcast/internal/services"
	"github.com/calebhs/pushcast/pkg/logger"
)

// CampaignSource lists due campaigns and transitions their state.
type CampaignSource interface {
	DueScheduled(ctx context.Context, now time.Time) ([]models.Notification, error)
	ClaimScheduled(ctx context.Context, campaignID string) (bool, error)
	MarkFailed(ctx context.Context, campaignID string) error
}

// Sender runs one campaign fan-out.
type Sender interface {
	Send(ctx context.Context, req dispatch.SendRequest) (dispatch.SendResult, error)
}

// Scheduler periodically claims and dispatches due scheduled campaigns.
type Scheduler struct {
	source   CampaignSource
	sender   Sender
	schedule string
	now      func() time.Time
	cron     *cron.Cron
	entryID  cron.EntryID
	log      *zap.Logger
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithSchedule overrides the cron expression driving the runner.
func WithSchedule(expr string) Option {
	return func(s *Scheduler) {
		if expr != "" {
			s.schedule = expr
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Scheduler.
func New(source CampaignSource, sender Sender, opts ...Option) (*Scheduler, error) {
	if source == nil {
		return nil, errors.New("scheduler: campaign source is required")
	}
	if sender == nil {
		return nil, errors.New("scheduler: sender is required")
	}

	s := &Scheduler{
		source:   source,
		sender:   sender,
		schedule: "@every 1m",
		now:      time.Now,
		log:      logger.WithModule("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the cron entry and begins ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return errors.New("scheduler: already started")
	}

	c := cron.New()
	entryID, err := c.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduled campaign run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: register cron entry: %w", err)
	}

	s.cron = c
	s.entryID = entryID
	c.Start()

	s.log.Info("scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.log.Info("scheduler stopped")
}

// RunOnce dispatches every campaign that is due right now. Each campaign is
// claimed before sending so overlapping ticks or multiple replicas never
// send the same campaign twice. Per-campaign failures are collected, not
// short-circuited.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	due, err := s.source.DueScheduled(ctx, s.now())
	if err != nil {
		return fmt.Errorf("scheduler: list due campaigns: %w", err)
	}

	var errs error
	for _, campaign := range due {
		claimed, err := s.source.ClaimScheduled(ctx, campaign.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("claim %s: %w", campaign.ID, err))
			continue
		}
		if !claimed {
			continue
		}

		result, err := s.sender.Send(ctx, dispatch.SendRequest{
			CampaignID: campaign.ID,
			WebsiteID:  campaign.WebsiteID,
			SegmentIDs: services.SegmentIDs(&campaign),
			Payload: push.Payload{
				Title: campaign.Title,
				Body:  campaign.Body,
				Icon:  campaign.Icon,
				URL:   campaign.URL,
			},
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("send %s: %w", campaign.ID, err))
			if markErr := s.source.MarkFailed(ctx, campaign.ID); markErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark failed %s: %w", campaign.ID, markErr))
			}
			continue
		}

		s.log.Info("scheduled campaign dispatched",
			zap.String("campaign_id", campaign.ID),
			zap.Int("targeted", result.TotalTargeted),
			zap.Int("sent", result.SentCount))
	}

	return errs
}
