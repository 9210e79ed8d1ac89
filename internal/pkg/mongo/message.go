package mongo

import "time"

// ChatMessage MongoDB 消息明细模型，一经写入不再修改
type ChatMessage struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	RoomID    uint64    `bson:"room_id" json:"roomId"`               // 关联 MySQL 的房间 ID
	SenderID  uint64    `bson:"sender_id" json:"senderId"`           // 发送者 UID
	Text      string    `bson:"text" json:"text"`                    // 文本内容
	ImageRef  string    `bson:"image_ref,omitempty" json:"imageRef"` // 图片引用，由外部上传服务产生
	Seq       uint64    `bson:"seq" json:"seq"`                      // 该消息在房间内的唯一绝对序号 (来自 MySQL)
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
