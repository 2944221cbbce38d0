package models

// Website represents one registered site collecting push subscriptions.
type Website struct {
	BaseModel

	Name string `gorm:"not null" json:"name"`
	URL  string `gorm:"not null" json:"url"`

	Subscribers   []Subscriber   `gorm:"constraint:OnDelete:CASCADE" json:"subscribers,omitempty"`
	Segments      []Segment      `gorm:"constraint:OnDelete:CASCADE" json:"segments,omitempty"`
	Notifications []Notification `gorm:"constraint:OnDelete:CASCADE" json:"notifications,omitempty"`
}
