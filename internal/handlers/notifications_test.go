package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/database/testutil"
	"github.com/calebhs/pushcast/internal/dispatch"
	"github.com/calebhs/pushcast/internal/models"
	"github.com/calebhs/pushcast/internal/push"
	"github.com/calebhs/pushcast/internal/services"
)

// fakeDeliverer stands in for the push client so handler tests exercise
// the full fan-out path against the database without real endpoints.
type fakeDeliverer struct {
	mu      sync.Mutex
	failFor map[string]bool
	sent    []string
}

func (f *fakeDeliverer) Deliver(ctx context.Context, sub push.Subscription, payload push.Payload) (push.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[sub.Endpoint] {
		return push.Result{Success: false, StatusCode: 410, Error: "subscription expired (HTTP 410)"}, nil
	}
	f.sent = append(f.sent, sub.Endpoint)
	return push.Result{Success: true, StatusCode: 201}, nil
}

func newNotificationRouter(t *testing.T, deliverer dispatch.Deliverer) (*gin.Engine, *gorm.DB, *models.Website) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	resolver, err := services.NewTargetingService(db)
	require.NoError(t, err)
	store, err := services.NewNotificationService(db)
	require.NoError(t, err)
	dispatcher, err := dispatch.NewDispatcher(resolver, deliverer, store)
	require.NoError(t, err)

	handler, err := NewNotificationHandler(db, dispatcher)
	require.NoError(t, err)

	website := models.Website{Name: "Example", URL: "https://example.com"}
	require.NoError(t, db.Create(&website).Error)

	r := gin.New()
	r.POST("/api/notifications", handler.Create)
	r.GET("/api/notifications", handler.List)
	r.GET("/api/notifications/:id", handler.Get)
	return r, db, &website
}

func seedSubscribers(t *testing.T, db *gorm.DB, websiteID string, n int) []models.Subscriber {
	t.Helper()

	subscribers := make([]models.Subscriber, n)
	for i := range subscribers {
		subscribers[i] = models.Subscriber{
			WebsiteID: websiteID,
			Endpoint:  fmt.Sprintf("https://push.example/n-%d", i),
			P256dh:    "p256dh-key",
			Auth:      "auth-secret",
		}
		require.NoError(t, db.Create(&subscribers[i]).Error)
	}
	return subscribers
}

func TestNotificationHandlerSendBroadcast(t *testing.T) {
	deliverer := &fakeDeliverer{}
	r, db, website := newNotificationRouter(t, deliverer)
	seedSubscribers(t, db, website.ID, 3)

	w := doJSON(t, r, http.MethodPost, "/api/notifications",
		fmt.Sprintf(`{"websiteId": %q, "title": "Launch", "body": "We shipped", "url": "https://example.com/launch"}`, website.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		Message          string              `json:"message"`
		Notification     models.Notification `json:"notification"`
		SubscribersCount int                 `json:"subscribersCount"`
	}
	decodeData(t, w, &data)
	require.Equal(t, "Notification sent", data.Message)
	require.Equal(t, 3, data.SubscribersCount)
	require.Equal(t, models.StatusSent, data.Notification.Status)
	require.Equal(t, 3, data.Notification.SentCount)

	var logs int64
	require.NoError(t, db.Model(&models.DeliveryLog{}).Count(&logs).Error)
	require.Equal(t, int64(3), logs)
}

func TestNotificationHandlerSendPartialFailure(t *testing.T) {
	deliverer := &fakeDeliverer{failFor: map[string]bool{"https://push.example/n-1": true}}
	r, db, website := newNotificationRouter(t, deliverer)
	seedSubscribers(t, db, website.ID, 3)

	w := doJSON(t, r, http.MethodPost, "/api/notifications",
		fmt.Sprintf(`{"websiteId": %q, "title": "Flaky", "body": "Some fail"}`, website.ID))
	// Partial delivery is still a successful campaign submission.
	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		Notification     models.Notification `json:"notification"`
		SubscribersCount int                 `json:"subscribersCount"`
	}
	decodeData(t, w, &data)
	require.Equal(t, 3, data.SubscribersCount)
	require.Equal(t, 2, data.Notification.SentCount)
}

func TestNotificationHandlerSendToSegment(t *testing.T) {
	deliverer := &fakeDeliverer{}
	r, db, website := newNotificationRouter(t, deliverer)
	subscribers := seedSubscribers(t, db, website.ID, 3)

	segment := models.Segment{WebsiteID: website.ID, Name: "vip"}
	require.NoError(t, db.Create(&segment).Error)
	require.NoError(t, db.Create(&models.SubscriberSegment{
		SubscriberID: subscribers[0].ID,
		SegmentID:    segment.ID,
	}).Error)

	w := doJSON(t, r, http.MethodPost, "/api/notifications",
		fmt.Sprintf(`{"websiteId": %q, "title": "VIP only", "body": "hi", "segmentIds": [%q]}`, website.ID, segment.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		SubscribersCount int `json:"subscribersCount"`
	}
	decodeData(t, w, &data)
	require.Equal(t, 1, data.SubscribersCount)
	require.Equal(t, []string{subscribers[0].Endpoint}, deliverer.sent)
}

func TestNotificationHandlerDraftAndScheduled(t *testing.T) {
	deliverer := &fakeDeliverer{}
	r, db, website := newNotificationRouter(t, deliverer)
	seedSubscribers(t, db, website.ID, 2)

	w := doJSON(t, r, http.MethodPost, "/api/notifications",
		fmt.Sprintf(`{"websiteId": %q, "title": "Draft", "body": "later", "status": "draft"}`, website.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		Message          string              `json:"message"`
		Notification     models.Notification `json:"notification"`
		SubscribersCount int                 `json:"subscribersCount"`
	}
	decodeData(t, w, &data)
	require.Equal(t, "Notification saved", data.Message)
	require.Zero(t, data.SubscribersCount)
	require.Equal(t, models.StatusDraft, data.Notification.Status)
	require.Empty(t, deliverer.sent)

	// Scheduled requires a send time.
	w = doJSON(t, r, http.MethodPost, "/api/notifications",
		fmt.Sprintf(`{"websiteId": %q, "title": "When?", "body": "x", "status": "scheduled"}`, website.ID))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/notifications",
		fmt.Sprintf(`{"websiteId": %q, "title": "Later", "body": "x", "status": "scheduled", "scheduledFor": "2030-01-02T15:04:05Z"}`, website.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	decodeData(t, w, &data)
	require.Equal(t, models.StatusScheduled, data.Notification.Status)
	require.Empty(t, deliverer.sent)
}

func TestNotificationHandlerEmptyTarget(t *testing.T) {
	deliverer := &fakeDeliverer{}
	r, _, website := newNotificationRouter(t, deliverer)

	w := doJSON(t, r, http.MethodPost, "/api/notifications",
		fmt.Sprintf(`{"websiteId": %q, "title": "Nobody", "body": "home"}`, website.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		Notification     models.Notification `json:"notification"`
		SubscribersCount int                 `json:"subscribersCount"`
	}
	decodeData(t, w, &data)
	require.Zero(t, data.SubscribersCount)
	require.Equal(t, models.StatusSent, data.Notification.Status)
}

func TestNotificationHandlerListAndGet(t *testing.T) {
	deliverer := &fakeDeliverer{}
	r, _, website := newNotificationRouter(t, deliverer)

	w := doJSON(t, r, http.MethodPost, "/api/notifications",
		fmt.Sprintf(`{"websiteId": %q, "title": "One", "body": "x", "status": "draft"}`, website.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Notification models.Notification `json:"notification"`
	}
	decodeData(t, w, &created)

	w = doJSON(t, r, http.MethodGet, "/api/notifications?websiteId="+website.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []models.Notification
	decodeData(t, w, &rows)
	require.Len(t, rows, 1)

	w = doJSON(t, r, http.MethodGet, "/api/notifications/"+created.Notification.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/notifications/00000000-0000-0000-0000-000000000000", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/notifications",
		`{"websiteId": "00000000-0000-0000-0000-000000000000", "title": "Ghost", "body": "x"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}
