package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/services"
	appErrors "github.com/calebhs/pushcast/pkg/errors"
	"github.com/calebhs/pushcast/pkg/response"
)

// SubscriberHandler exposes HTTP endpoints for subscription registration.
// These routes are called cross-origin by the client script running on
// customer websites.
type SubscriberHandler struct {
	service *services.SubscriberService
}

// NewSubscriberHandler constructs a subscriber handler.
func NewSubscriberHandler(db *gorm.DB) (*SubscriberHandler, error) {
	service, err := services.NewSubscriberService(db)
	if err != nil {
		return nil, err
	}
	return &SubscriberHandler{service: service}, nil
}

// registerRequest mirrors the PushSubscription JSON produced by
// PushManager.subscribe in the browser.
type registerRequest struct {
	WebsiteID    string `json:"websiteId" validate:"required"`
	UserAgent    string `json:"userAgent"`
	Subscription struct {
		Endpoint string `json:"endpoint" validate:"required,url"`
		Keys     struct {
			P256dh string `json:"p256dh" validate:"required"`
			Auth   string `json:"auth" validate:"required"`
		} `json:"keys"`
	} `json:"subscription"`
}

// Register stores a browser push subscription. Re-posting a known endpoint
// answers 200 "Already subscribed" with the existing record.
func (h *SubscriberHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	subscriber, existed, err := h.service.Register(c.Request.Context(), services.RegisterInput{
		WebsiteID: req.WebsiteID,
		Endpoint:  req.Subscription.Endpoint,
		P256dh:    req.Subscription.Keys.P256dh,
		Auth:      req.Subscription.Keys.Auth,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if existed {
		response.Success(c, http.StatusOK, gin.H{
			"message":    "Already subscribed",
			"subscriber": subscriber,
		})
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message":    "Subscribed successfully",
		"subscriber": subscriber,
	})
}

// List returns the subscribers of one website.
func (h *SubscriberHandler) List(c *gin.Context) {
	websiteID, ok := requireQuery(c, "websiteId")
	if !ok {
		return
	}

	subscribers, err := h.service.ListByWebsite(c.Request.Context(), websiteID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, subscribers)
}

type addToSegmentRequest struct {
	Endpoint  string `json:"endpoint" validate:"required,url"`
	SegmentID string `json:"segmentId" validate:"required"`
}

// AddToSegment joins the subscriber owning an endpoint to a segment. The
// client script knows its endpoint, not its subscriber id.
func (h *SubscriberHandler) AddToSegment(c *gin.Context) {
	var req addToSegmentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	subscriber, err := h.service.FindByEndpoint(c.Request.Context(), req.Endpoint)
	if err != nil {
		response.Error(c, err)
		return
	}
	if subscriber == nil {
		response.Error(c, appErrors.ErrSubscriberNotFound)
		return
	}

	already, err := h.service.AddToSegment(c.Request.Context(), subscriber.ID, req.SegmentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "Added to segment"
	if already {
		message = "Already in segment"
	}
	response.Success(c, http.StatusOK, gin.H{"message": message})
}
