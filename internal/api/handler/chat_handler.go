package handler

import (
	"PetCare/internal/api/dto"
	"PetCare/internal/api/middleware"
	"PetCare/internal/pkg/response"
	"PetCare/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ChatHandler 聊天相关的 HTTP 只读镜像与发送入口。
// 实时推送走 WebSocket，这里服务于页面首屏与刷新场景。
type ChatHandler struct {
	chatSvc service.ChatService
}

func NewChatHandler(chatSvc service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// GetChatRoomList GET /api/chat/rooms
func (h *ChatHandler) GetChatRoomList(c *gin.Context) {
	claims := middleware.MustClaims(c)
	list, err := h.chatSvc.GetChatRoomList(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// GetChatMessages GET /api/chat/rooms/:roomID/messages?last_seq=&page_size=
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	claims := middleware.MustClaims(c)

	roomID, err := strconv.ParseUint(c.Param("roomID"), 10, 64)
	if err != nil || roomID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	lastSeq, _ := strconv.ParseUint(c.DefaultQuery("last_seq", "0"), 10, 64)
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	messages, err := h.chatSvc.GetChatMessages(c.Request.Context(), claims.UserID, roomID, lastSeq, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, messages)
}

// GetUnreadCount GET /api/chat/unread-count
func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	claims := middleware.MustClaims(c)
	count, err := h.chatSvc.GetUnreadNotificationCount(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, &dto.ChatCountDTO{UserID: claims.UserID, Count: count})
}

// CreateChatRoom POST /api/chat/rooms
func (h *ChatHandler) CreateChatRoom(c *gin.Context) {
	claims := middleware.MustClaims(c)

	var req dto.CreateChatRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	room, _, err := h.chatSvc.CreateOrGetDirectRoom(c.Request.Context(), claims.UserID, req.ReceiverID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, room)
}

// SendMessage POST /api/chat/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	claims := middleware.MustClaims(c)

	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	msg, err := h.chatSvc.SendMessage(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}
