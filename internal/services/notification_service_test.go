package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/database/testutil"
	"github.com/calebhs/pushcast/internal/models"
	apperrors "github.com/calebhs/pushcast/pkg/errors"
)

func newNotificationFixture(t *testing.T) (*gorm.DB, *NotificationService, *models.Website) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	website := models.Website{Name: "Example", URL: "https://example.com"}
	require.NoError(t, db.Create(&website).Error)

	return db, svc, &website
}

func TestNotificationServiceCreate(t *testing.T) {
	_, svc, website := newNotificationFixture(t)

	campaign, err := svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID:  website.ID,
		Title:      "Launch",
		Body:       "We shipped",
		URL:        "https://example.com/launch",
		Icon:       "https://example.com/icon.png",
		SegmentIDs: []string{"seg-1", "seg-1", "seg-2"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, campaign.ID)
	require.Equal(t, models.StatusSent, campaign.Status)
	require.Equal(t, []string{"seg-1", "seg-2"}, SegmentIDs(campaign))

	_, err = svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID: website.ID,
		Body:      "missing title",
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID: website.ID,
		Title:     "Bad status",
		Body:      "x",
		Status:    "pending",
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID: "00000000-0000-0000-0000-000000000000",
		Title:     "Orphan",
		Body:      "x",
	})
	require.ErrorIs(t, err, apperrors.ErrWebsiteNotFound)
}

func TestNotificationServiceCreateEmptyTargetingDecodesEmpty(t *testing.T) {
	_, svc, website := newNotificationFixture(t)

	campaign, err := svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID: website.ID,
		Title:     "Broadcast",
		Body:      "Everyone",
	})
	require.NoError(t, err)
	require.Empty(t, SegmentIDs(campaign))

	reloaded, err := svc.Get(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Empty(t, SegmentIDs(reloaded))
}

func TestNotificationServiceListForWebsite(t *testing.T) {
	_, svc, website := newNotificationFixture(t)

	for _, title := range []string{"one", "two", "three"} {
		_, err := svc.Create(context.Background(), CreateCampaignInput{
			WebsiteID: website.ID,
			Title:     title,
			Body:      "body",
		})
		require.NoError(t, err)
	}

	rows, err := svc.ListForWebsite(context.Background(), website.ID, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = svc.ListForWebsite(context.Background(), website.ID, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestNotificationServiceFinalizeSend(t *testing.T) {
	_, svc, website := newNotificationFixture(t)

	campaign, err := svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID: website.ID,
		Title:     "Finalize",
		Body:      "body",
		Status:    models.StatusDraft,
	})
	require.NoError(t, err)

	require.NoError(t, svc.FinalizeSend(context.Background(), campaign.ID, 7))

	reloaded, err := svc.Get(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSent, reloaded.Status)
	require.Equal(t, 7, reloaded.SentCount)

	err = svc.FinalizeSend(context.Background(), "00000000-0000-0000-0000-000000000000", 1)
	require.ErrorIs(t, err, apperrors.ErrCampaignNotFound)
}

func TestNotificationServiceMarkFailed(t *testing.T) {
	_, svc, website := newNotificationFixture(t)

	campaign, err := svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID: website.ID,
		Title:     "Broken",
		Body:      "body",
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkFailed(context.Background(), campaign.ID))

	reloaded, err := svc.Get(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, reloaded.Status)
}

func TestNotificationServiceDeliveryLogsAndStats(t *testing.T) {
	db, svc, website := newNotificationFixture(t)

	campaign, err := svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID: website.ID,
		Title:     "Logged",
		Body:      "body",
	})
	require.NoError(t, err)

	subscriber := models.Subscriber{
		WebsiteID: website.ID,
		Endpoint:  "https://push.example/logged",
		P256dh:    "p256dh-key",
		Auth:      "auth-secret",
	}
	require.NoError(t, db.Create(&subscriber).Error)

	require.NoError(t, svc.AppendDeliveryLog(context.Background(), DeliveryLogInput{
		NotificationID: campaign.ID,
		SubscriberID:   subscriber.ID,
		Status:         models.DeliverySent,
	}))
	require.NoError(t, svc.AppendDeliveryLog(context.Background(), DeliveryLogInput{
		NotificationID: campaign.ID,
		SubscriberID:   subscriber.ID,
		Status:         models.DeliveryFailed,
		Error:          "subscription expired (HTTP 410)",
	}))

	stats, err := svc.Stats(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Sent)
	require.Equal(t, int64(1), stats.Failed)
}

func TestNotificationServiceScheduledLifecycle(t *testing.T) {
	_, svc, website := newNotificationFixture(t)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due, err := svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID:    website.ID,
		Title:        "Due",
		Body:         "body",
		Status:       models.StatusScheduled,
		ScheduledFor: &past,
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateCampaignInput{
		WebsiteID:    website.ID,
		Title:        "Later",
		Body:         "body",
		Status:       models.StatusScheduled,
		ScheduledFor: &future,
	})
	require.NoError(t, err)

	rows, err := svc.DueScheduled(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, due.ID, rows[0].ID)

	claimed, err := svc.ClaimScheduled(context.Background(), due.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	// A second claim loses: the campaign is no longer scheduled.
	claimed, err = svc.ClaimScheduled(context.Background(), due.ID)
	require.NoError(t, err)
	require.False(t, claimed)

	rows, err = svc.DueScheduled(context.Background(), time.Now())
	require.NoError(t, err)
	require.Empty(t, rows)
}
