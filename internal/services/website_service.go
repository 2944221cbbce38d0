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

// WebsiteService manages registered sites, the tenancy anchor for
// subscribers, segments and campaigns.
type WebsiteService struct {
	db *gorm.DB
}

// NewWebsiteService constructs a WebsiteService.
func NewWebsiteService(db *gorm.DB) (*WebsiteService, error) {
	if db == nil {
		return nil, errors.New("website service: db is required")
	}
	return &WebsiteService{db: db}, nil
}

// CreateWebsiteInput defines attributes required to register a website.
type CreateWebsiteInput struct {
	Name string
	URL  string
}

// WebsiteSummary augments a website with aggregate counts for listings.
type WebsiteSummary struct {
	models.Website
	SubscriberCount   int64 `json:"subscriber_count"`
	NotificationCount int64 `json:"notification_count"`
}

// Create registers a new website.
func (s *WebsiteService) Create(ctx context.Context, input CreateWebsiteInput) (*models.Website, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("website service: name is required")
	}
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return nil, errors.New("website service: url is required")
	}

	website := models.Website{Name: name, URL: url}
	if err := s.db.WithContext(ctx).Create(&website).Error; err != nil {
		return nil, fmt.Errorf("website service: create website: %w", err)
	}

	return &website, nil
}

// Get loads a single website by id.
func (s *WebsiteService) Get(ctx context.Context, websiteID string) (*models.Website, error) {
	ctx = ensureContext(ctx)

	var website models.Website
	if err := s.db.WithContext(ctx).First(&website, "id = ?", websiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWebsiteNotFound
		}
		return nil, fmt.Errorf("website service: load website: %w", err)
	}
	return &website, nil
}

// List returns all websites ordered by recency, with subscriber and campaign counts.
func (s *WebsiteService) List(ctx context.Context) ([]WebsiteSummary, error) {
	ctx = ensureContext(ctx)

	var rows []models.Website
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("website service: list websites: %w", err)
	}

	summaries := make([]WebsiteSummary, 0, len(rows))
	for _, row := range rows {
		summary := WebsiteSummary{Website: row}
		if err := s.db.WithContext(ctx).Model(&models.Subscriber{}).
			Where("website_id = ?", row.ID).
			Count(&summary.SubscriberCount).Error; err != nil {
			return nil, fmt.Errorf("website service: count subscribers: %w", err)
		}
		if err := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("website_id = ?", row.ID).
			Count(&summary.NotificationCount).Error; err != nil {
			return nil, fmt.Errorf("website service: count campaigns: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Delete removes a website and everything hanging off it.
func (s *WebsiteService) Delete(ctx context.Context, websiteID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var website models.Website
		if err := tx.First(&website, "id = ?", websiteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrWebsiteNotFound
			}
			return fmt.Errorf("load website: %w", err)
		}

		var subscriberIDs []string
		if err := tx.Model(&models.Subscriber{}).
			Where("website_id = ?", websiteID).
			Pluck("id", &subscriberIDs).Error; err != nil {
			return fmt.Errorf("collect subscribers: %w", err)
		}
		if len(subscriberIDs) > 0 {
			if err := tx.Where("subscriber_id IN ?", subscriberIDs).
				Delete(&models.SubscriberSegment{}).Error; err != nil {
				return fmt.Errorf("delete segment memberships: %w", err)
			}
		}

		var campaignIDs []string
		if err := tx.Model(&models.Notification{}).
			Where("website_id = ?", websiteID).
			Pluck("id", &campaignIDs).Error; err != nil {
			return fmt.Errorf("collect campaigns: %w", err)
		}
		if len(campaignIDs) > 0 {
			if err := tx.Where("notification_id IN ?", campaignIDs).
				Delete(&models.DeliveryLog{}).Error; err != nil {
				return fmt.Errorf("delete delivery logs: %w", err)
			}
		}

		for _, model := range []interface{}{
			&models.Subscriber{}, &models.Segment{}, &models.Notification{},
		} {
			if err := tx.Where("website_id = ?", websiteID).Delete(model).Error; err != nil {
				return fmt.Errorf("delete website children: %w", err)
			}
		}

		return tx.Delete(&website).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return fmt.Errorf("website service: delete website: %w", err)
	}
	return nil
}
