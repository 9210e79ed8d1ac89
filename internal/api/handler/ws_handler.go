package handler

import (
	"PetCare/internal/api/middleware"
	"PetCare/internal/hub"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 来源校验交给网关层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WsHandler WebSocket 升级入口
type WsHandler struct {
	hub *hub.Hub
}

func NewWsHandler(h *hub.Hub) *WsHandler {
	return &WsHandler{hub: h}
}

// Serve GET /ws?token=xxx 升级后整条连接交给 hub 管理
func (h *WsHandler) Serve(c *gin.Context) {
	claims := middleware.MustClaims(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WarnContext(c.Request.Context(), "WebSocket 升级失败", "user_id", claims.UserID, "err", err)
		return
	}

	h.hub.HandleConnection(conn, claims)
}
