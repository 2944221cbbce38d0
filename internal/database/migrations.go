package database

import (
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Website{},
		&models.Subscriber{},
		&models.Segment{},
		&models.SubscriberSegment{},
		&models.Notification{},
		&models.DeliveryLog{},
	)
}
