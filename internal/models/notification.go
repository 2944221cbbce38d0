package models

import (
	"time"

	"gorm.io/datatypes"
)

// Campaign status values.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
	StatusFailed    = "failed"
)

// Notification represents one broadcast campaign for a website.
// SegmentIDs is a JSON array of target segment ids; empty means every
// subscriber of the website. SentCount is written exactly once per send, by
// the dispatcher's terminal finalize.
type Notification struct {
	BaseModel

	WebsiteID string `gorm:"type:uuid;not null;index" json:"website_id"`
	Title     string `gorm:"type:varchar(255);not null" json:"title"`
	Body      string `gorm:"type:text;not null" json:"body"`
	URL       string `gorm:"type:text" json:"url,omitempty"`
	Icon      string `gorm:"type:text" json:"icon,omitempty"`

	SegmentIDs datatypes.JSON `json:"segment_ids"`

	Status       string     `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`
	ScheduledFor *time.Time `gorm:"index" json:"scheduled_for,omitempty"`
	SentCount    int        `gorm:"not null;default:0" json:"sent_count"`
}
