package model

import "time"

// ChatRoom 聊天室主表，直聊与客服会话共用。
// PairKey 保证创建幂等：直聊为 "minID_maxID"，客服会话为 "s_<顾客ID>"。
type ChatRoom struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PairKey       string    `gorm:"uniqueIndex;type:varchar(64)" json:"pairKey"`
	IsSupportRoom int8      `gorm:"not null;default:0;index" json:"isSupportRoom"` // 0-直聊, 1-客服会话
	RoomOwnerID   uint64    `gorm:"not null;default:0" json:"roomOwnerId"`         // 客服会话服务的顾客
	SupporterID   uint64    `gorm:"not null;default:0;index" json:"supporterId"`   // 0 = 未分配客服
	MaxMsgSeq     uint64    `gorm:"not null;default:0" json:"maxMsgSeq"`           // 房间内消息序列号
	LastMessage   string    `gorm:"type:varchar(255)" json:"lastMessage"`
	LastSenderID  uint64    `gorm:"not null;default:0" json:"lastSenderId"`
	LastMessageAt time.Time `gorm:"index" json:"lastMessageAt"`
	IsDeleted     int8      `gorm:"not null;default:0" json:"isDeleted"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (ChatRoom) TableName() string { return "chat_rooms" }
