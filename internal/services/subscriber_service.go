package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/models"
	apperrors "github.com/calebhs/pushcast/pkg/errors"
)

// SubscriberService is the subscription registry: it stores browser push
// endpoints and their encryption keys, and manages segment membership.
type SubscriberService struct {
	db *gorm.DB
}

// NewSubscriberService constructs a SubscriberService.
func NewSubscriberService(db *gorm.DB) (*SubscriberService, error) {
	if db == nil {
		return nil, errors.New("subscriber service: db is required")
	}
	return &SubscriberService{db: db}, nil
}

// RegisterInput carries one browser subscription as posted by the client script.
type RegisterInput struct {
	WebsiteID string
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent string
}

// Register stores a push subscription. Registration is idempotent on the
// endpoint: if it is already known the existing subscriber is returned
// unchanged and the second return value is true. Browser-side retry logic
// re-posts the same subscription freely, so this must never error or
// duplicate.
func (s *SubscriberService) Register(ctx context.Context, input RegisterInput) (*models.Subscriber, bool, error) {
	ctx = ensureContext(ctx)

	endpoint := strings.TrimSpace(input.Endpoint)
	if endpoint == "" {
		return nil, false, errors.New("subscriber service: endpoint is required")
	}
	if strings.TrimSpace(input.P256dh) == "" || strings.TrimSpace(input.Auth) == "" {
		return nil, false, errors.New("subscriber service: subscription keys are required")
	}

	var website models.Website
	if err := s.db.WithContext(ctx).First(&website, "id = ?", input.WebsiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.ErrWebsiteNotFound
		}
		return nil, false, fmt.Errorf("subscriber service: load website: %w", err)
	}

	if existing, err := s.FindByEndpoint(ctx, endpoint); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, true, nil
	}

	subscriber := models.Subscriber{
		WebsiteID: website.ID,
		Endpoint:  endpoint,
		P256dh:    strings.TrimSpace(input.P256dh),
		Auth:      strings.TrimSpace(input.Auth),
		UserAgent: strings.TrimSpace(input.UserAgent),
	}

	if err := s.db.WithContext(ctx).Create(&subscriber).Error; err != nil {
		// Lost a race with a concurrent registration of the same endpoint.
		if isUniqueConstraintError(err) {
			existing, lookupErr := s.FindByEndpoint(ctx, endpoint)
			if lookupErr == nil && existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("subscriber service: create subscriber: %w", err)
	}

	return &subscriber, false, nil
}

// FindByEndpoint returns the subscriber owning an endpoint, or nil when unknown.
func (s *SubscriberService) FindByEndpoint(ctx context.Context, endpoint string) (*models.Subscriber, error) {
	ctx = ensureContext(ctx)

	var subscriber models.Subscriber
	err := s.db.WithContext(ctx).First(&subscriber, "endpoint = ?", strings.TrimSpace(endpoint)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("subscriber service: find by endpoint: %w", err)
	}
	return &subscriber, nil
}

// ListByWebsite returns every subscriber registered for a website.
func (s *SubscriberService) ListByWebsite(ctx context.Context, websiteID string) ([]models.Subscriber, error) {
	ctx = ensureContext(ctx)

	var rows []models.Subscriber
	if err := s.db.WithContext(ctx).
		Where("website_id = ?", websiteID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("subscriber service: list subscribers: %w", err)
	}
	return rows, nil
}

// AddToSegment joins a subscriber to a segment. An existing membership is
// reported via the boolean return ("already a member"), never as an error:
// the client script may retry the call after transient failures.
func (s *SubscriberService) AddToSegment(ctx context.Context, subscriberID, segmentID string) (bool, error) {
	ctx = ensureContext(ctx)

	var subscriber models.Subscriber
	if err := s.db.WithContext(ctx).First(&subscriber, "id = ?", subscriberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrSubscriberNotFound
		}
		return false, fmt.Errorf("subscriber service: load subscriber: %w", err)
	}

	var segment models.Segment
	if err := s.db.WithContext(ctx).First(&segment, "id = ?", segmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrSegmentNotFound
		}
		return false, fmt.Errorf("subscriber service: load segment: %w", err)
	}

	membership := models.SubscriberSegment{
		SubscriberID: subscriber.ID,
		SegmentID:    segment.ID,
	}
	if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return true, nil
		}
		return false, fmt.Errorf("subscriber service: add to segment: %w", err)
	}

	return false, nil
}

// CountByWebsite reports the number of registered subscribers for a website.
func (s *SubscriberService) CountByWebsite(ctx context.Context, websiteID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("website_id = ?", websiteID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("subscriber service: count subscribers: %w", err)
	}
	return count, nil
}
