package models

// Segment is a named grouping of subscribers within one website, used for
// campaign targeting.
type Segment struct {
	BaseModel

	WebsiteID   string `gorm:"type:uuid;not null;index" json:"website_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
}

// SubscriberSegment joins subscribers to segments. Each pairing is unique;
// inserting an existing pair is reported as "already a member", not an error.
type SubscriberSegment struct {
	BaseModel

	SubscriberID string `gorm:"type:uuid;not null;uniqueIndex:idx_subscriber_segment,priority:1" json:"subscriber_id"`
	SegmentID    string `gorm:"type:uuid;not null;uniqueIndex:idx_subscriber_segment,priority:2;index" json:"segment_id"`
}
