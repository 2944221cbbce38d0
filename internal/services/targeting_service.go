package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/models"
)

// TargetingService resolves a campaign's targeting spec into the concrete
// subscriber set to message.
type TargetingService struct {
	db *gorm.DB
}

// NewTargetingService constructs a TargetingService.
func NewTargetingService(db *gorm.DB) (*TargetingService, error) {
	if db == nil {
		return nil, errors.New("targeting service: db is required")
	}
	return &TargetingService{db: db}, nil
}

// Resolve expands the targeting spec. An empty segment list selects every
// subscriber of the website; otherwise the result is the union of the named
// segments, de-duplicated by subscriber id. Unknown segment ids are ignored:
// targeting is best-effort over a set of hints, not a strict reference. An
// empty result is a valid outcome, never an error.
func (s *TargetingService) Resolve(ctx context.Context, websiteID string, segmentIDs []string) ([]models.Subscriber, error) {
	ctx = ensureContext(ctx)

	ids := normaliseIDs(segmentIDs)
	if len(ids) == 0 {
		var rows []models.Subscriber
		if err := s.db.WithContext(ctx).
			Where("website_id = ?", websiteID).
			Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("targeting service: list website subscribers: %w", err)
		}
		return rows, nil
	}

	var rows []models.Subscriber
	if err := s.db.WithContext(ctx).
		Distinct("subscribers.*").
		Joins("JOIN subscriber_segments ON subscriber_segments.subscriber_id = subscribers.id").
		Where("subscribers.website_id = ?", websiteID).
		Where("subscriber_segments.segment_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("targeting service: resolve segments: %w", err)
	}

	// DISTINCT already collapses duplicates; the map guards the invariant
	// of one delivery per subscriber even if the query changes.
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		out = append(out, row)
	}

	return out, nil
}
