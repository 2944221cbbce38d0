package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/database/testutil"
	"github.com/calebhs/pushcast/internal/models"
)

func newSubscriberRouter(t *testing.T) (*gin.Engine, *gorm.DB, *models.Website) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewSubscriberHandler(db)
	require.NoError(t, err)

	website := models.Website{Name: "Example", URL: "https://example.com"}
	require.NoError(t, db.Create(&website).Error)

	r := gin.New()
	r.POST("/api/subscribers", handler.Register)
	r.GET("/api/subscribers", handler.List)
	r.POST("/api/subscribers/segment", handler.AddToSegment)
	return r, db, &website
}

func registerBody(websiteID, endpoint string) string {
	return fmt.Sprintf(`{
		"websiteId": %q,
		"userAgent": "Mozilla/5.0",
		"subscription": {
			"endpoint": %q,
			"keys": {"p256dh": "p256dh-key", "auth": "auth-secret"}
		}
	}`, websiteID, endpoint)
}

func TestSubscriberHandlerRegister(t *testing.T) {
	r, _, website := newSubscriberRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/subscribers",
		registerBody(website.ID, "https://push.example/one"))
	require.Equal(t, http.StatusCreated, w.Code)

	var data map[string]any
	decodeData(t, w, &data)
	require.Equal(t, "Subscribed successfully", data["message"])

	// Re-posting the same endpoint answers 200 with the existing record.
	w = doJSON(t, r, http.MethodPost, "/api/subscribers",
		registerBody(website.ID, "https://push.example/one"))
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &data)
	require.Equal(t, "Already subscribed", data["message"])
}

func TestSubscriberHandlerRegisterUnknownWebsite(t *testing.T) {
	r, _, _ := newSubscriberRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/subscribers",
		registerBody("00000000-0000-0000-0000-000000000000", "https://push.example/orphan"))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriberHandlerRegisterValidation(t *testing.T) {
	r, _, website := newSubscriberRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/subscribers",
		fmt.Sprintf(`{"websiteId": %q, "subscription": {"endpoint": "https://push.example/x", "keys": {"p256dh": "k"}}}`, website.ID))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriberHandlerList(t *testing.T) {
	r, _, website := newSubscriberRouter(t)

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/subscribers",
			registerBody(website.ID, fmt.Sprintf("https://push.example/list-%d", i)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/api/subscribers?websiteId="+website.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.Subscriber
	decodeData(t, w, &rows)
	require.Len(t, rows, 2)

	w = doJSON(t, r, http.MethodGet, "/api/subscribers", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriberHandlerAddToSegment(t *testing.T) {
	r, db, website := newSubscriberRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/subscribers",
		registerBody(website.ID, "https://push.example/member"))
	require.Equal(t, http.StatusCreated, w.Code)

	segment := models.Segment{WebsiteID: website.ID, Name: "vip"}
	require.NoError(t, db.Create(&segment).Error)

	body := fmt.Sprintf(`{"endpoint": "https://push.example/member", "segmentId": %q}`, segment.ID)

	w = doJSON(t, r, http.MethodPost, "/api/subscribers/segment", body)
	require.Equal(t, http.StatusOK, w.Code)
	var data map[string]any
	decodeData(t, w, &data)
	require.Equal(t, "Added to segment", data["message"])

	w = doJSON(t, r, http.MethodPost, "/api/subscribers/segment", body)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &data)
	require.Equal(t, "Already in segment", data["message"])

	unknown := fmt.Sprintf(`{"endpoint": "https://push.example/ghost", "segmentId": %q}`, segment.ID)
	w = doJSON(t, r, http.MethodPost, "/api/subscribers/segment", unknown)
	require.Equal(t, http.StatusNotFound, w.Code)
}
