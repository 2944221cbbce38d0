package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/models"
	apperrors "github.com/calebhs/pushcast/pkg/errors"
)

// NotificationService is the campaign record store: it persists campaign
// metadata, per-subscriber delivery logs, and the aggregate sent counter.
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db}, nil
}

// CreateCampaignInput defines attributes required to persist a campaign.
type CreateCampaignInput struct {
	WebsiteID    string
	Title        string
	Body         string
	URL          string
	Icon         string
	SegmentIDs   []string
	Status       string
	ScheduledFor *time.Time
}

// DeliveryLogInput captures one subscriber-level delivery outcome.
type DeliveryLogInput struct {
	NotificationID string
	SubscriberID   string
	Status         string
	Error          string
}

// DeliveryStats aggregates the delivery log rows of one campaign.
type DeliveryStats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

// Create persists a new campaign record.
func (s *NotificationService) Create(ctx context.Context, input CreateCampaignInput) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("notification service: title is required")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, errors.New("notification service: body is required")
	}

	status := strings.TrimSpace(input.Status)
	switch status {
	case "":
		status = models.StatusSent
	case models.StatusDraft, models.StatusScheduled, models.StatusSent:
	default:
		return nil, fmt.Errorf("notification service: invalid status %q", status)
	}

	var website models.Website
	if err := s.db.WithContext(ctx).First(&website, "id = ?", input.WebsiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWebsiteNotFound
		}
		return nil, fmt.Errorf("notification service: load website: %w", err)
	}

	campaign := models.Notification{
		WebsiteID:    website.ID,
		Title:        title,
		Body:         body,
		URL:          strings.TrimSpace(input.URL),
		Icon:         strings.TrimSpace(input.Icon),
		Status:       status,
		ScheduledFor: input.ScheduledFor,
	}

	segmentIDs := normaliseIDs(input.SegmentIDs)
	if segmentIDs == nil {
		segmentIDs = []string{}
	}
	data, err := json.Marshal(segmentIDs)
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal segment ids: %w", err)
	}
	campaign.SegmentIDs = datatypes.JSON(data)

	if err := s.db.WithContext(ctx).Create(&campaign).Error; err != nil {
		return nil, fmt.Errorf("notification service: create campaign: %w", err)
	}

	return &campaign, nil
}

// Get loads one campaign by id.
func (s *NotificationService) Get(ctx context.Context, campaignID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	var campaign models.Notification
	if err := s.db.WithContext(ctx).First(&campaign, "id = ?", campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("notification service: load campaign: %w", err)
	}
	return &campaign, nil
}

// ListForWebsite returns the most recent campaigns for a website.
func (s *NotificationService) ListForWebsite(ctx context.Context, websiteID string, limit int) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("website_id = ?", websiteID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list campaigns: %w", err)
	}
	return rows, nil
}

// AppendDeliveryLog records one delivery attempt. Callers treat failures
// here as degraded observability, not as delivery failures.
func (s *NotificationService) AppendDeliveryLog(ctx context.Context, input DeliveryLogInput) error {
	ctx = ensureContext(ctx)

	entry := models.DeliveryLog{
		NotificationID: input.NotificationID,
		SubscriberID:   input.SubscriberID,
		Status:         input.Status,
		Error:          input.Error,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("notification service: append delivery log: %w", err)
	}
	return nil
}

// FinalizeSend is the single authoritative mutation of a campaign's sent
// count. The counter and status change land in one UPDATE so a concurrent
// reader never observes a partially-summed count.
func (s *NotificationService) FinalizeSend(ctx context.Context, campaignID string, sentCount int) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"sent_count": sentCount,
			"status":     models.StatusSent,
		})
	if result.Error != nil {
		return fmt.Errorf("notification service: finalize send: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrCampaignNotFound
	}
	return nil
}

// MarkFailed flags a campaign whose fan-out could not run at all.
func (s *NotificationService) MarkFailed(ctx context.Context, campaignID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", campaignID).
		Update("status", models.StatusFailed)
	if result.Error != nil {
		return fmt.Errorf("notification service: mark failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrCampaignNotFound
	}
	return nil
}

// ClaimScheduled transitions a campaign out of the scheduled state so only
// one runner dispatches it. Returns false when another runner got there
// first or the campaign is not scheduled.
func (s *NotificationService) ClaimScheduled(ctx context.Context, campaignID string) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND status = ?", campaignID, models.StatusScheduled).
		Update("status", models.StatusSent)
	if result.Error != nil {
		return false, fmt.Errorf("notification service: claim scheduled: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DueScheduled lists scheduled campaigns whose send time has arrived.
func (s *NotificationService) DueScheduled(ctx context.Context, now time.Time) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", models.StatusScheduled, now).
		Order("scheduled_for ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list due campaigns: %w", err)
	}
	return rows, nil
}

// Stats summarises the delivery log for one campaign.
func (s *NotificationService) Stats(ctx context.Context, campaignID string) (*DeliveryStats, error) {
	ctx = ensureContext(ctx)

	var stats DeliveryStats
	if err := s.db.WithContext(ctx).Model(&models.DeliveryLog{}).
		Where("notification_id = ? AND status = ?", campaignID, models.DeliverySent).
		Count(&stats.Sent).Error; err != nil {
		return nil, fmt.Errorf("notification service: count sent: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.DeliveryLog{}).
		Where("notification_id = ? AND status = ?", campaignID, models.DeliveryFailed).
		Count(&stats.Failed).Error; err != nil {
		return nil, fmt.Errorf("notification service: count failed: %w", err)
	}
	return &stats, nil
}

// SegmentIDs decodes the stored targeting spec of a campaign.
func SegmentIDs(campaign *models.Notification) []string {
	if campaign == nil || len(campaign.SegmentIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(campaign.SegmentIDs, &ids); err != nil {
		return nil
	}
	return ids
}
