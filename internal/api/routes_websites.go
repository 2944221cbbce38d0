package api

import (
	"github.com/gin-gonic/gin"

	"github.com/calebhs/pushcast/internal/handlers"
)

func registerWebsiteRoutes(api *gin.RouterGroup, handler *handlers.WebsiteHandler) {
	group := api.Group("/websites")
	{
		group.POST("", handler.Create)
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
		group.DELETE("/:id", handler.Delete)
	}
}
