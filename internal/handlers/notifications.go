package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/dispatch"
	"github.com/calebhs/pushcast/internal/models"
	"github.com/calebhs/pushcast/internal/push"
	"github.com/calebhs/pushcast/internal/services"
	appErrors "github.com/calebhs/pushcast/pkg/errors"
	"github.com/calebhs/pushcast/pkg/response"
)

// CampaignSender runs one campaign fan-out.
type CampaignSender interface {
	Send(ctx context.Context, req dispatch.SendRequest) (dispatch.SendResult, error)
}

// NotificationHandler exposes HTTP endpoints for campaigns: submission
// (the inbound trigger), listing, and per-campaign detail.
type NotificationHandler struct {
	service *services.NotificationService
	sender  CampaignSender
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(db *gorm.DB, sender CampaignSender) (*NotificationHandler, error) {
	service, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}
	return &NotificationHandler{service: service, sender: sender}, nil
}

type createNotificationRequest struct {
	WebsiteID    string     `json:"websiteId" validate:"required"`
	Title        string     `json:"title" validate:"required,min=1,max=255"`
	Body         string     `json:"body" validate:"required"`
	URL          string     `json:"url" validate:"omitempty,url"`
	Icon         string     `json:"icon" validate:"omitempty,url"`
	SegmentIDs   []string   `json:"segmentIds"`
	Status       string     `json:"status" validate:"omitempty,oneof=draft scheduled sent"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

// Create submits a campaign. Draft and scheduled campaigns persist without
// dispatching and report a zero subscriber count. A sent campaign fans out
// synchronously; individual delivery failures never fail the request, only
// a failure to record the outcome does.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status := req.Status
	if status == "" {
		status = models.StatusSent
	}
	if status == models.StatusScheduled && req.ScheduledFor == nil {
		response.Error(c, appErrors.NewBadRequest("scheduledFor is required for scheduled campaigns"))
		return
	}

	campaign, err := h.service.Create(c.Request.Context(), services.CreateCampaignInput{
		WebsiteID:    req.WebsiteID,
		Title:        req.Title,
		Body:         req.Body,
		URL:          req.URL,
		Icon:         req.Icon,
		SegmentIDs:   req.SegmentIDs,
		Status:       status,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if status != models.StatusSent {
		response.Success(c, http.StatusCreated, gin.H{
			"message":          "Notification saved",
			"notification":     campaign,
			"subscribersCount": 0,
		})
		return
	}

	result, err := h.sender.Send(c.Request.Context(), dispatch.SendRequest{
		CampaignID: campaign.ID,
		WebsiteID:  campaign.WebsiteID,
		SegmentIDs: services.SegmentIDs(campaign),
		Payload: push.Payload{
			Title: campaign.Title,
			Body:  campaign.Body,
			Icon:  campaign.Icon,
			URL:   campaign.URL,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	// Re-read so the response carries the finalized sent_count and status.
	campaign, err = h.service.Get(c.Request.Context(), campaign.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message":          "Notification sent",
		"notification":     campaign,
		"subscribersCount": result.TotalTargeted,
	})
}

// List returns the most recent campaigns of one website.
func (h *NotificationHandler) List(c *gin.Context) {
	websiteID, ok := requireQuery(c, "websiteId")
	if !ok {
		return
	}
	limit := parseIntQuery(c, "limit", 50)

	campaigns, err := h.service.ListForWebsite(c.Request.Context(), websiteID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, campaigns)
}

// Get fetches one campaign with its delivery statistics.
func (h *NotificationHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	campaign, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"notification": campaign,
		"stats":        stats,
	})
}
