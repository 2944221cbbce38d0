package models

// Delivery outcomes recorded per subscriber per campaign send.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// DeliveryLog records one subscriber-level delivery attempt for one campaign.
// The set of rows for a campaign is the ground truth its sent_count is
// derived from.
type DeliveryLog struct {
	BaseModel

	NotificationID string `gorm:"type:uuid;not null;index" json:"notification_id"`
	SubscriberID   string `gorm:"type:uuid;not null;index" json:"subscriber_id"`
	Status         string `gorm:"type:varchar(32);not null" json:"status"`
	Error          string `gorm:"type:text" json:"error,omitempty"`
}
