package model

import "time"

// ChatParticipant 房间成员表
type ChatParticipant struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID      uint64    `gorm:"uniqueIndex:idx_room_user" json:"roomId"`
	UserID      uint64    `gorm:"uniqueIndex:idx_room_user;index" json:"userId"`
	ServeFor    uint64    `gorm:"not null;default:0" json:"serveFor"` // 客服成员服务的顾客 ID
	IsSeen      int8      `gorm:"not null;default:1" json:"isSeen"`
	IsLeave     int8      `gorm:"not null;default:0;index" json:"isLeave"`
	IsSupporter int8      `gorm:"not null;default:0" json:"isSupporter"`
	JoinedAt    time.Time `json:"joinedAt"`

	Room ChatRoom `gorm:"foreignKey:RoomID;references:ID" json:"room"`
}

func (ChatParticipant) TableName() string { return "chat_participants" }
