package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/calebhs/pushcast/internal/services"
	"github.com/calebhs/pushcast/pkg/response"
)

// WebsiteHandler exposes HTTP endpoints for website management.
type WebsiteHandler struct {
	service *services.WebsiteService
}

// NewWebsiteHandler constructs a website handler.
func NewWebsiteHandler(db *gorm.DB) (*WebsiteHandler, error) {
	service, err := services.NewWebsiteService(db)
	if err != nil {
		return nil, err
	}
	return &WebsiteHandler{service: service}, nil
}

type createWebsiteRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
	URL  string `json:"url" validate:"required,url"`
}

// Create registers a new website.
func (h *WebsiteHandler) Create(c *gin.Context) {
	var req createWebsiteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	website, err := h.service.Create(c.Request.Context(), services.CreateWebsiteInput{
		Name: req.Name,
		URL:  req.URL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, website)
}

// List returns all websites with subscriber and campaign counts.
func (h *WebsiteHandler) List(c *gin.Context) {
	websites, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, websites)
}

// Get fetches one website by id.
func (h *WebsiteHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	website, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, website)
}

// Delete removes a website and all of its dependent records.
func (h *WebsiteHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
