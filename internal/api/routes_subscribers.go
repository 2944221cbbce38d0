package api

import (
	"github.com/gin-gonic/gin"

	"github.com/calebhs/pushcast/internal/handlers"
)

func registerSubscriberRoutes(api *gin.RouterGroup, handler *handlers.SubscriberHandler) {
	group := api.Group("/subscribers")
	{
		group.POST("", handler.Register)
		group.GET("", handler.List)
		group.POST("/segment", handler.AddToSegment)
	}
}
