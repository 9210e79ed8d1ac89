package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	JWTSecret         string = "PetCare"
	JWTExpirationTime        = time.Hour * 24
)

// UserClaims 账号服务签发的 Token 中包含的业务信息
type UserClaims struct {
	UserID uint64   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// IsStaff 判断是否持有客服/管理员角色
func (c *UserClaims) IsStaff() bool {
	for _, r := range c.Roles {
		if r == "STAFF" || r == "ADMIN" {
			return true
		}
	}
	return false
}
