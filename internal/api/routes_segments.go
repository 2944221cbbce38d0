package api

import (
	"github.com/gin-gonic/gin"

	"github.com/calebhs/pushcast/internal/handlers"
)

func registerSegmentRoutes(api *gin.RouterGroup, handler *handlers.SegmentHandler) {
	group := api.Group("/segments")
	{
		group.POST("", handler.Create)
		group.GET("", handler.List)
		group.DELETE("/:id", handler.Delete)
	}
}
