package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Chats    *ChatHandler
	Messages *MessageHandler
	Admin    *AdminHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/chats", deps.Chats.Create)
	api.POST("/chats/session", deps.Chats.Session)
	api.GET("/chats", deps.Chats.List)
	api.GET("/chats/:id", deps.Chats.Get)
	api.POST("/chats/:id/messages", deps.Messages.Send)
	api.POST("/chats/:id/compare", deps.Messages.Compare)

	api.GET("/admin/usage", deps.Admin.Usage)
	api.GET("/admin/usage/models", deps.Admin.UsageByModel)
	api.GET("/admin/usage/daily", deps.Admin.UsageByDay)
	api.GET("/admin/sources", deps.Admin.TopSources)
	api.GET("/admin/pricing", deps.Admin.ListPricing)
	api.POST("/admin/pricing", deps.Admin.SetPricing)
}
