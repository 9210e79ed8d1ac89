package consts

// 角色名，与账号服务签发的 JWT roles 声明保持一致
const (
	RoleStaff = "STAFF"
	RoleAdmin = "ADMIN"
)

// 客服会话的 PairKey 前缀，直聊为 "minID_maxID"
const SupportPairKeyPrefix = "s_"
