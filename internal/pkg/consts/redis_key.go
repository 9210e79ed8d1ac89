package consts

// Redis Pub/Sub 频道前缀。房间广播组名取房间 ID 的十进制字符串，保持稳定规范。
const (
	ChatRoomChannel  = "chat:room:" // 房间广播组
	ChatUserChannel  = "chat:user:" // 用户个人频道（房间列表刷新、未读数推送）
	ChatStaffChannel = "chat:staff" // 客服观察频道（待认领列表刷新）
)
