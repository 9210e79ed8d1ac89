package handler

import (
	"PetCare/internal/api/dto"
	"PetCare/internal/api/middleware"
	"PetCare/internal/pkg/response"
	"PetCare/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SupportHandler 客服工单的 HTTP 入口，与 WebSocket 操作对等
type SupportHandler struct {
	supportSvc service.SupportService
}

func NewSupportHandler(supportSvc service.SupportService) *SupportHandler {
	return &SupportHandler{supportSvc: supportSvc}
}

// InitiateSupportRoom POST /api/support/rooms
func (h *SupportHandler) InitiateSupportRoom(c *gin.Context) {
	claims := middleware.MustClaims(c)
	room, _, err := h.supportSvc.InitiateSupportChatRoom(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, room)
}

// GetPendingRequests GET /api/support/pending 仅客服
func (h *SupportHandler) GetPendingRequests(c *gin.Context) {
	pending, err := h.supportSvc.GetPendingSupportRequests(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, pending)
}

// AssignStaff POST /api/support/rooms/:roomID/assign 仅客服，认领人取自凭证
func (h *SupportHandler) AssignStaff(c *gin.Context) {
	claims := middleware.MustClaims(c)

	roomID, err := strconv.ParseUint(c.Param("roomID"), 10, 64)
	if err != nil || roomID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	var req dto.AssignStaffReq
	_ = c.ShouldBindJSON(&req)

	if err := h.supportSvc.AssignStaffToChatRoom(c.Request.Context(), roomID, claims.UserID, req.CustomerID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RequestNewSupporter POST /api/support/rooms/:roomID/request-new
func (h *SupportHandler) RequestNewSupporter(c *gin.Context) {
	claims := middleware.MustClaims(c)

	roomID, err := strconv.ParseUint(c.Param("roomID"), 10, 64)
	if err != nil || roomID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if err := h.supportSvc.RequestNewSupporter(c.Request.Context(), roomID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveStaff DELETE /api/support/rooms/:roomID/staff 仅客服，只能撤自己
func (h *SupportHandler) RemoveStaff(c *gin.Context) {
	claims := middleware.MustClaims(c)

	roomID, err := strconv.ParseUint(c.Param("roomID"), 10, 64)
	if err != nil || roomID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if err := h.supportSvc.RemoveStaffFromChatRoom(c.Request.Context(), roomID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
