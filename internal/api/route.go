package api

import (
	"PetCare/internal/api/handler"
	"PetCare/internal/api/middleware"
	"PetCare/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers 路由注册所需的全部处理器
type Handlers struct {
	Chat    *handler.ChatHandler
	Support *handler.SupportHandler
	Ws      *handler.WsHandler
}

// NewRouter 装配全部路由与中间件
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	logger.SetupGin(r)
	r.Use(middleware.Cors(), middleware.Trace())

	// 实时连接入口
	r.GET("/ws", middleware.Auth(), h.Ws.Serve)

	api := r.Group("/api", middleware.Auth())
	{
		chat := api.Group("/chat")
		{
			chat.GET("/rooms", h.Chat.GetChatRoomList)
			chat.POST("/rooms", h.Chat.CreateChatRoom)
			chat.GET("/rooms/:roomID/messages", h.Chat.GetChatMessages)
			chat.POST("/messages", h.Chat.SendMessage)
			chat.GET("/unread-count", h.Chat.GetUnreadCount)
		}

		support := api.Group("/support")
		{
			support.POST("/rooms", h.Support.InitiateSupportRoom)
			support.POST("/rooms/:roomID/request-new", h.Support.RequestNewSupporter)

			staff := support.Group("", middleware.RequireStaff())
			{
				staff.GET("/pending", h.Support.GetPendingRequests)
				staff.POST("/rooms/:roomID/assign", h.Support.AssignStaff)
				staff.DELETE("/rooms/:roomID/staff", h.Support.RemoveStaff)
			}
		}
	}

	return r
}
