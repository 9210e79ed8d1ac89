package hub

import "sync"

// Registry 单实例连接注册表：用户与连接的双向映射。
// 同一用户同时只保留一条连接，后连的挤掉先连的。
type Registry struct {
	userToConn sync.Map // userID(uint64) -> connID(string)
	connToUser sync.Map // connID(string) -> userID(uint64)
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register 登记新连接，返回被顶替的旧连接 ID（如有），由调用方负责关闭旧连接
func (r *Registry) Register(userID uint64, connID string) (stale string, hadStale bool) {
	if old, loaded := r.userToConn.Swap(userID, connID); loaded {
		staleConn := old.(string)
		if staleConn != connID {
			r.connToUser.Delete(staleConn)
			stale, hadStale = staleConn, true
		}
	}
	r.connToUser.Store(connID, userID)
	return stale, hadStale
}

// Unregister 注销连接。只有当前映射仍指向该连接时才清掉正向映射，
// 避免旧连接的延迟下线误删新连接。
func (r *Registry) Unregister(userID uint64, connID string) {
	r.connToUser.Delete(connID)
	if cur, ok := r.userToConn.Load(userID); ok && cur.(string) == connID {
		r.userToConn.CompareAndDelete(userID, cur)
	}
}

// Lookup 查询用户当前连接
func (r *Registry) Lookup(userID uint64) (string, bool) {
	v, ok := r.userToConn.Load(userID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// LookupUser 由连接反查用户
func (r *Registry) LookupUser(connID string) (uint64, bool) {
	v, ok := r.connToUser.Load(connID)
	if !ok {
		return 0, false
	}
	return v.(uint64), true
}
