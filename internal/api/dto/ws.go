package dto

import "github.com/goccy/go-json"

// 连接上双向的逻辑方法 / 事件名，为兼容旧客户端保持稳定，不要改动。
const (
	// 入站（客户端 → 服务端）
	OpJoinChatRoom               = "JoinChatRoom"
	OpLeaveChatRoom              = "LeaveChatRoom"
	OpSendMessage                = "SendMessage"
	OpChatRoomList               = "ChatRoomList"
	OpGetChatMessages            = "GetChatMessages"
	OpCreateChatRoom             = "CreateChatRoom"
	OpCreateSupportChatRoom      = "CreateSupportChatRoom"
	OpAssignStaffToChatRoom      = "AssignStaffToChatRoom"
	OpRequestNewSupporter        = "RequestNewSupporter"
	OpRemoveStaffFromChatRoom    = "RemoveStaffFromChatRoom"
	OpGetPendingSupportRequests  = "GetPendingSupportRequests"
	OpGetUnreadNotificationCount = "GetUnreadNotificationCount"

	// 出站（服务端 → 客户端）
	EvReceiveMessage                = "ReceiveMessage"
	EvGetList                       = "GetList"
	EvJoinedChatRoom                = "JoinedChatRoom"
	EvLeftChatRoom                  = "LeftChatRoom"
	EvChatRoomCreated               = "ChatRoomCreated"
	EvChatRoomCreationFailed        = "ChatRoomCreationFailed"
	EvSupportChatRoomCreated        = "SupportChatRoomCreated"
	EvSupportChatRoomCreationFailed = "SupportChatRoomCreationFailed"
	EvNewSupporterRequested         = "NewSupporterRequested"
	EvRequestNewSupporterFailed     = "RequestNewSupporterFailed"
	EvAssignStaffFailed             = "AssignStaffFailed"
	EvUpdateChatMessages            = "UpdateChatMessages"
	EvUpdateAfterCreate             = "UpdateAfterCreate"
	EvChatCount                     = "chatcount"
	EvUpdatePendingSupportRequests  = "updatependingsupportrequests"
	EvOperationFailed               = "OperationFailed" // 未知错误的通用失败事件
)

// WsInbound 入站调用信封
type WsInbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WsEvent 出站事件信封
type WsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WsFailure 失败事件负载，只发给调用方，不广播
type WsFailure struct {
	Op      string `json:"op,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// 入站负载。身份以连接鉴权为准，负载里的用户 ID 仅作一致性校验。
type JoinRoomReq struct {
	RoomID uint64 `json:"room_id" binding:"required"`
}

type ChatRoomListReq struct {
	UserID uint64 `json:"user_id"`
}

type GetChatMessagesReq struct {
	RoomID   uint64 `json:"room_id" binding:"required"`
	UserID   uint64 `json:"user_id"`
	LastSeq  uint64 `json:"last_seq"`
	PageSize int    `json:"page_size"`
}

type CreateChatRoomReq struct {
	SenderID   uint64 `json:"sender_id"`
	ReceiverID uint64 `json:"receiver_id" binding:"required"`
}

type CreateSupportChatRoomReq struct {
	CustomerID uint64 `json:"customer_id"`
}

type AssignStaffReq struct {
	RoomID     uint64 `json:"room_id" binding:"required"`
	StaffID    uint64 `json:"staff_id"`
	CustomerID uint64 `json:"customer_id"`
}

type RequestNewSupporterReq struct {
	RoomID uint64 `json:"room_id" binding:"required"`
}

type RemoveStaffReq struct {
	RoomID  uint64 `json:"room_id" binding:"required"`
	StaffID uint64 `json:"staff_id"`
}

type UnreadCountReq struct {
	UserID uint64 `json:"user_id"`
}

// ChatCountDTO 未读数推送负载
type ChatCountDTO struct {
	UserID uint64 `json:"user_id"`
	Count  int64  `json:"count"`
}
