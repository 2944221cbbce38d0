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

// SegmentService manages named subscriber groupings used for targeting.
type SegmentService struct {
	db *gorm.DB
}

// NewSegmentService constructs a SegmentService.
func NewSegmentService(db *gorm.DB) (*SegmentService, error) {
	if db == nil {
		return nil, errors.New("segment service: db is required")
	}
	return &SegmentService{db: db}, nil
}

// CreateSegmentInput defines attributes for a new segment. SubscriberIDs
// optionally seeds initial members; unknown ids are skipped.
type CreateSegmentInput struct {
	WebsiteID     string
	Name          string
	Description   string
	SubscriberIDs []string
}

// SegmentSummary augments a segment with its member count for listings.
type SegmentSummary struct {
	models.Segment
	SubscriberCount int64 `json:"subscriber_count"`
}

// Create registers a new segment under a website.
func (s *SegmentService) Create(ctx context.Context, input CreateSegmentInput) (*models.Segment, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("segment service: name is required")
	}

	var website models.Website
	if err := s.db.WithContext(ctx).First(&website, "id = ?", input.WebsiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWebsiteNotFound
		}
		return nil, fmt.Errorf("segment service: load website: %w", err)
	}

	segment := models.Segment{
		WebsiteID:   website.ID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.db.WithContext(ctx).Create(&segment).Error; err != nil {
		return nil, fmt.Errorf("segment service: create segment: %w", err)
	}

	for _, subscriberID := range normaliseIDs(input.SubscriberIDs) {
		membership := models.SubscriberSegment{
			SubscriberID: subscriberID,
			SegmentID:    segment.ID,
		}
		if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil && !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("segment service: seed membership: %w", err)
		}
	}

	return &segment, nil
}

// ListByWebsite returns segments for a website ordered by recency, with member counts.
func (s *SegmentService) ListByWebsite(ctx context.Context, websiteID string) ([]SegmentSummary, error) {
	ctx = ensureContext(ctx)

	var rows []models.Segment
	if err := s.db.WithContext(ctx).
		Where("website_id = ?", websiteID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("segment service: list segments: %w", err)
	}

	summaries := make([]SegmentSummary, 0, len(rows))
	for _, row := range rows {
		summary := SegmentSummary{Segment: row}
		if err := s.db.WithContext(ctx).Model(&models.SubscriberSegment{}).
			Where("segment_id = ?", row.ID).
			Count(&summary.SubscriberCount).Error; err != nil {
			return nil, fmt.Errorf("segment service: count members: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Delete removes a segment and its memberships. Campaigns referencing the
// segment keep their stored id; targeting ignores ids that no longer exist.
func (s *SegmentService) Delete(ctx context.Context, segmentID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var segment models.Segment
		if err := tx.First(&segment, "id = ?", segmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrSegmentNotFound
			}
			return fmt.Errorf("load segment: %w", err)
		}

		if err := tx.Where("segment_id = ?", segment.ID).
			Delete(&models.SubscriberSegment{}).Error; err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}

		return tx.Delete(&segment).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return fmt.Errorf("segment service: delete segment: %w", err)
	}
	return nil
}
