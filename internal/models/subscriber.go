package models

// Subscriber represents one registered browser push endpoint.
// The endpoint URL is globally unique: re-registration returns the existing
// row instead of creating a duplicate. The p256dh/auth pair is the public
// key material payload encryption runs under.
type Subscriber struct {
	BaseModel

	WebsiteID string `gorm:"type:uuid;not null;index" json:"website_id"`
	Endpoint  string `gorm:"uniqueIndex;not null" json:"endpoint"`
	P256dh    string `gorm:"not null" json:"p256dh"`
	Auth      string `gorm:"not null" json:"auth"`
	UserAgent string `json:"user_agent,omitempty"`
}
