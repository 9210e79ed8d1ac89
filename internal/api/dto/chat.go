package dto

import "time"

// SendMessageReq 发送消息请求体
type SendMessageReq struct {
	RoomID   uint64 `json:"room_id" binding:"required"`
	Text     string `json:"text"`
	ImageRef string `json:"image_ref"` // 图片引用，由外部上传服务产生
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID        string    `json:"id,omitempty"`
	RoomID    uint64    `json:"room_id"`
	SenderID  uint64    `json:"sender_id"`
	Text      string    `json:"text"`
	ImageRef  string    `json:"image_ref,omitempty"`
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRoomDTO 房间信息响应
type ChatRoomDTO struct {
	RoomID        uint64    `json:"room_id"`
	IsSupportRoom bool      `json:"is_support_room"`
	RoomOwnerID   uint64    `json:"room_owner_id,omitempty"`
	SupporterID   uint64    `json:"supporter_id,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastSenderID  uint64    `json:"last_sender_id"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChatRoomListItem 房间列表项响应
type ChatRoomListItem struct {
	RoomID        uint64    `json:"room_id"`
	IsSupportRoom bool      `json:"is_support_room"`
	PeerID        uint64    `json:"peer_id"`   // 直聊的对端用户 ID
	PeerName      string    `json:"peer_name"` // 目录服务解析的展示名
	LastMessage   string    `json:"last_message"`
	LastSenderID  uint64    `json:"last_sender_id"`
	LastMessageAt time.Time `json:"last_message_at"`
	IsSeen        bool      `json:"is_seen"`
}

// PendingSupportRequestDTO 待认领客服请求，附带顾客展示信息
type PendingSupportRequestDTO struct {
	RoomID       uint64    `json:"room_id"`
	CustomerID   uint64    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// OfflineNotificationDTO 投递给消息代理的离线通知事件
type OfflineNotificationDTO struct {
	ReceiverID uint64    `json:"receiver_id"`
	RoomID     uint64    `json:"room_id"`
	SenderID   uint64    `json:"sender_id"`
	Preview    string    `json:"preview"`
	SentAt     time.Time `json:"sent_at"`
}
