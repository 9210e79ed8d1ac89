package hub

import (
	"PetCare/internal/api/dto"
	"PetCare/internal/pkg/consts"
	"PetCare/internal/pkg/logger"
	redisutil "PetCare/internal/pkg/redis"
	"PetCare/internal/pkg/security"
	"PetCare/internal/repository"
	"PetCare/internal/service"
	"context"
	log "log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub WebSocket 接入层：连接生命周期、操作分发、广播组订阅
type Hub struct {
	registry   *Registry
	chatSvc    service.ChatService
	supportSvc service.SupportService
	roomRepo   repository.ChatRoomRepo

	clients sync.Map // connID(string) -> *Client
}

func NewHub(
	registry *Registry,
	chatSvc service.ChatService,
	supportSvc service.SupportService,
	roomRepo repository.ChatRoomRepo,
) *Hub {
	return &Hub{
		registry:   registry,
		chatSvc:    chatSvc,
		supportSvc: supportSvc,
		roomRepo:   roomRepo,
	}
}

// Registry 暴露给上层做在线判定
func (h *Hub) Registry() *Registry {
	return h.registry
}

// HandleConnection 接管一条已升级的 WebSocket 连接。
// 同一用户重复连接时旧连接被强制下线，只保留最新一条。
func (h *Hub) HandleConnection(conn *websocket.Conn, claims *security.UserClaims) {
	c := &Client{
		connID:  uuid.NewString(),
		userID:  claims.UserID,
		isStaff: claims.IsStaff(),
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 个人频道先订上，避免注册完成到订阅生效之间丢推送
	channels := []string{consts.ChatUserChannel + strconv.FormatUint(c.userID, 10)}
	if c.isStaff {
		channels = append(channels, consts.ChatStaffChannel)
	}
	channels = append(channels, h.userRoomChannels(ctx, c.userID)...)

	c.pubsub = redisutil.Subscribe(ctx, channels...)

	if stale, ok := h.registry.Register(c.userID, c.connID); ok {
		if v, loaded := h.clients.LoadAndDelete(stale); loaded {
			v.(*Client).close()
		}
		log.Info("顶掉同用户旧连接", "user_id", c.userID, "stale_conn", stale)
	}
	h.clients.Store(c.connID, c)

	log.Info("WebSocket 连接建立", "conn_id", c.connID, "user_id", c.userID, "is_staff", c.isStaff)

	go c.writePump()
	go c.subscriptionPump()
	c.readPump(h)
}

// disconnect 无条件清理：注册表、客户端表、订阅、底层连接
func (h *Hub) disconnect(c *Client) {
	h.clients.Delete(c.connID)
	h.registry.Unregister(c.userID, c.connID)
	c.close()
	log.Info("WebSocket 连接关闭", "conn_id", c.connID, "user_id", c.userID)
}

// userRoomChannels 用户现有房间的广播频道，连接建立时恢复订阅
func (h *Hub) userRoomChannels(ctx context.Context, userID uint64) []string {
	participants, err := h.roomRepo.GetUserRoomList(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "恢复房间订阅失败", "user_id", userID, "err", err)
		return nil
	}
	channels := make([]string, 0, len(participants))
	for _, p := range participants {
		channels = append(channels, consts.ChatRoomChannel+strconv.FormatUint(p.RoomID, 10))
	}
	return channels
}

// dispatch 按操作名分发入站请求。处理失败只回给调用方，不影响其他连接。
func (h *Hub) dispatch(c *Client, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctx = context.WithValue(ctx, logger.TraceIDKey, uuid.NewString())

	var in dto.WsInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.replyFailure(c, dto.EvOperationFailed, "", service.ErrParamInvalid)
		return
	}

	switch in.Type {
	case dto.OpJoinChatRoom:
		h.handleJoinRoom(ctx, c, in.Data)
	case dto.OpLeaveChatRoom:
		h.handleLeaveRoom(ctx, c, in.Data)
	case dto.OpSendMessage:
		h.handleSendMessage(ctx, c, in.Data)
	case dto.OpGetChatMessages:
		h.handleGetChatMessages(ctx, c, in.Data)
	case dto.OpChatRoomList:
		h.handleGetChatRoomList(ctx, c)
	case dto.OpCreateChatRoom:
		h.handleCreateChatRoom(ctx, c, in.Data)
	case dto.OpCreateSupportChatRoom:
		h.handleCreateSupportChatRoom(ctx, c)
	case dto.OpAssignStaffToChatRoom:
		h.handleAssignStaff(ctx, c, in.Data)
	case dto.OpRequestNewSupporter:
		h.handleRequestNewSupporter(ctx, c, in.Data)
	case dto.OpRemoveStaffFromChatRoom:
		h.handleRemoveStaff(ctx, c, in.Data)
	case dto.OpGetPendingSupportRequests:
		h.handleGetPendingSupportRequests(ctx, c)
	case dto.OpGetUnreadNotificationCount:
		h.handleGetUnreadCount(ctx, c)
	default:
		log.WarnContext(ctx, "未知 WebSocket 操作", "type", in.Type, "user_id", c.userID)
		h.replyFailure(c, dto.EvOperationFailed, in.Type, service.ErrParamInvalid)
	}
}

func (h *Hub) handleJoinRoom(ctx context.Context, c *Client, data json.RawMessage) {
	var req dto.JoinRoomReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == 0 {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpJoinChatRoom, service.ErrParamInvalid)
		return
	}

	isMember, err := h.roomRepo.IsParticipant(ctx, req.RoomID, c.userID)
	if err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpJoinChatRoom, err)
		return
	}
	if !isMember {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpJoinChatRoom, service.ErrNotRoomMember)
		return
	}

	if err := c.subscribe(ctx, consts.ChatRoomChannel+strconv.FormatUint(req.RoomID, 10)); err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpJoinChatRoom, err)
		return
	}
	h.reply(c, dto.EvJoinedChatRoom, &dto.JoinRoomReq{RoomID: req.RoomID})
}

func (h *Hub) handleLeaveRoom(ctx context.Context, c *Client, data json.RawMessage) {
	var req dto.JoinRoomReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == 0 {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpLeaveChatRoom, service.ErrParamInvalid)
		return
	}
	if err := c.unsubscribe(ctx, consts.ChatRoomChannel+strconv.FormatUint(req.RoomID, 10)); err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpLeaveChatRoom, err)
		return
	}
	h.reply(c, dto.EvLeftChatRoom, &dto.JoinRoomReq{RoomID: req.RoomID})
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var req dto.SendMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == 0 {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpSendMessage, service.ErrParamInvalid)
		return
	}
	if _, err := h.chatSvc.SendMessage(ctx, c.userID, &req); err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpSendMessage, err)
	}
}

func (h *Hub) handleGetChatMessages(ctx context.Context, c *Client, data json.RawMessage) {
	var req dto.GetChatMessagesReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == 0 {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpGetChatMessages, service.ErrParamInvalid)
		return
	}
	messages, err := h.chatSvc.GetChatMessages(ctx, c.userID, req.RoomID, req.LastSeq, req.PageSize)
	if err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpGetChatMessages, err)
		return
	}
	h.reply(c, dto.EvUpdateChatMessages, messages)
}

func (h *Hub) handleGetChatRoomList(ctx context.Context, c *Client) {
	list, err := h.chatSvc.GetChatRoomList(ctx, c.userID)
	if err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpChatRoomList, err)
		return
	}
	h.reply(c, dto.EvGetList, list)
}

func (h *Hub) handleCreateChatRoom(ctx context.Context, c *Client, data json.RawMessage) {
	var req dto.CreateChatRoomReq
	if err := json.Unmarshal(data, &req); err != nil || req.ReceiverID == 0 {
		h.replyFailure(c, dto.EvChatRoomCreationFailed, dto.OpCreateChatRoom, service.ErrParamInvalid)
		return
	}
	room, _, err := h.chatSvc.CreateOrGetDirectRoom(ctx, c.userID, req.ReceiverID)
	if err != nil {
		h.replyFailure(c, dto.EvChatRoomCreationFailed, dto.OpCreateChatRoom, err)
		return
	}
	if err := c.subscribe(ctx, consts.ChatRoomChannel+strconv.FormatUint(room.RoomID, 10)); err != nil {
		log.WarnContext(ctx, "订阅房间频道失败", "room_id", room.RoomID, "err", err)
	}
	h.reply(c, dto.EvChatRoomCreated, room)
}

func (h *Hub) handleCreateSupportChatRoom(ctx context.Context, c *Client) {
	room, _, err := h.supportSvc.InitiateSupportChatRoom(ctx, c.userID)
	if err != nil {
		h.replyFailure(c, dto.EvSupportChatRoomCreationFailed, dto.OpCreateSupportChatRoom, err)
		return
	}
	if err := c.subscribe(ctx, consts.ChatRoomChannel+strconv.FormatUint(room.RoomID, 10)); err != nil {
		log.WarnContext(ctx, "订阅房间频道失败", "room_id", room.RoomID, "err", err)
	}
	h.reply(c, dto.EvSupportChatRoomCreated, room)
}

func (h *Hub) handleAssignStaff(ctx context.Context, c *Client, data json.RawMessage) {
	if !c.isStaff {
		h.replyFailure(c, dto.EvAssignStaffFailed, dto.OpAssignStaffToChatRoom, service.UnauthorizedError)
		return
	}
	var req dto.AssignStaffReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == 0 {
		h.replyFailure(c, dto.EvAssignStaffFailed, dto.OpAssignStaffToChatRoom, service.ErrParamInvalid)
		return
	}
	if err := h.supportSvc.AssignStaffToChatRoom(ctx, req.RoomID, c.userID, req.CustomerID); err != nil {
		h.replyFailure(c, dto.EvAssignStaffFailed, dto.OpAssignStaffToChatRoom, err)
		return
	}
	if err := c.subscribe(ctx, consts.ChatRoomChannel+strconv.FormatUint(req.RoomID, 10)); err != nil {
		log.WarnContext(ctx, "订阅房间频道失败", "room_id", req.RoomID, "err", err)
	}
	h.reply(c, dto.EvJoinedChatRoom, &dto.JoinRoomReq{RoomID: req.RoomID})
}

func (h *Hub) handleRequestNewSupporter(ctx context.Context, c *Client, data json.RawMessage) {
	var req dto.RequestNewSupporterReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == 0 {
		h.replyFailure(c, dto.EvRequestNewSupporterFailed, dto.OpRequestNewSupporter, service.ErrParamInvalid)
		return
	}
	if err := h.supportSvc.RequestNewSupporter(ctx, req.RoomID, c.userID); err != nil {
		h.replyFailure(c, dto.EvRequestNewSupporterFailed, dto.OpRequestNewSupporter, err)
	}
}

func (h *Hub) handleRemoveStaff(ctx context.Context, c *Client, data json.RawMessage) {
	if !c.isStaff {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpRemoveStaffFromChatRoom, service.UnauthorizedError)
		return
	}
	var req dto.RemoveStaffReq
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == 0 {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpRemoveStaffFromChatRoom, service.ErrParamInvalid)
		return
	}
	if err := h.supportSvc.RemoveStaffFromChatRoom(ctx, req.RoomID, c.userID); err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpRemoveStaffFromChatRoom, err)
		return
	}
	if err := c.unsubscribe(ctx, consts.ChatRoomChannel+strconv.FormatUint(req.RoomID, 10)); err != nil {
		log.WarnContext(ctx, "退订房间频道失败", "room_id", req.RoomID, "err", err)
	}
	h.reply(c, dto.EvLeftChatRoom, &dto.JoinRoomReq{RoomID: req.RoomID})
}

func (h *Hub) handleGetPendingSupportRequests(ctx context.Context, c *Client) {
	if !c.isStaff {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpGetPendingSupportRequests, service.UnauthorizedError)
		return
	}
	pending, err := h.supportSvc.GetPendingSupportRequests(ctx)
	if err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpGetPendingSupportRequests, err)
		return
	}
	h.reply(c, dto.EvUpdatePendingSupportRequests, pending)
}

func (h *Hub) handleGetUnreadCount(ctx context.Context, c *Client) {
	count, err := h.chatSvc.GetUnreadNotificationCount(ctx, c.userID)
	if err != nil {
		h.replyFailure(c, dto.EvOperationFailed, dto.OpGetUnreadNotificationCount, err)
		return
	}
	h.reply(c, dto.EvChatCount, &dto.ChatCountDTO{UserID: c.userID, Count: count})
}

// reply 只发给当前连接
func (h *Hub) reply(c *Client, eventType string, data interface{}) {
	payload, err := json.Marshal(&dto.WsEvent{Type: eventType, Data: data})
	if err != nil {
		log.Error("事件序列化失败", "type", eventType, "err", err)
		return
	}
	c.enqueue(payload)
}

// replyFailure 错误只回给调用方，错误码复用 HTTP 层的错误映射
func (h *Hub) replyFailure(c *Client, eventType, op string, err error) {
	code, ok := service.ErrorMap[err]
	msg := err.Error()
	if !ok {
		code = 500
		msg = service.UnExpectedError.Error()
		log.Error("未预期的操作错误", "op", op, "user_id", c.userID, "err", err)
	}
	h.reply(c, eventType, &dto.WsFailure{Op: op, Code: code, Message: msg})
}
