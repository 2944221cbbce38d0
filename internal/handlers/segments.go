package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/services"
	"github.com/calebhs/pushcast/pkg/response"
)

// SegmentHandler exposes HTTP endpoints for segment management.
type SegmentHandler struct {
	service *services.SegmentService
}

// NewSegmentHandler constructs a segment handler.
func NewSegmentHandler(db *gorm.DB) (*SegmentHandler, error) {
	service, err := services.NewSegmentService(db)
	if err != nil {
		return nil, err
	}
	return &SegmentHandler{service: service}, nil
}

type createSegmentRequest struct {
	WebsiteID     string   `json:"websiteId" validate:"required"`
	Name          string   `json:"name" validate:"required,min=1,max=255"`
	Description   string   `json:"description" validate:"max=1024"`
	SubscriberIDs []string `json:"subscriberIds"`
}

// Create registers a new segment, optionally seeding initial members.
func (h *SegmentHandler) Create(c *gin.Context) {
	var req createSegmentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	segment, err := h.service.Create(c.Request.Context(), services.CreateSegmentInput{
		WebsiteID:     req.WebsiteID,
		Name:          req.Name,
		Description:   req.Description,
		SubscriberIDs: req.SubscriberIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, segment)
}

// List returns the segments of one website with member counts.
func (h *SegmentHandler) List(c *gin.Context) {
	websiteID, ok := requireQuery(c, "websiteId")
	if !ok {
		return
	}

	segments, err := h.service.ListByWebsite(c.Request.Context(), websiteID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, segments)
}

// Delete removes a segment and its memberships.
func (h *SegmentHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
