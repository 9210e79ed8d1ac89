package middleware

import (
	"PetCare/internal/pkg/redis"
	"PetCare/internal/pkg/response"
	"PetCare/internal/pkg/security"
	log "log/slog"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserClaims = "user_claims"
	revokedKeyPrefix  = "auth:revoked:"
)

// Auth 鉴权中间件。
// WebSocket 握手无法自定义请求头，token 兼容从 query 传入。
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Fail(c, response.Unauthorized, "未提供凭证")
			c.Abort()
			return
		}

		claims, err := security.ValidateToken(token)
		if err != nil {
			log.WarnContext(c.Request.Context(), "token 校验失败", "err", err)
			response.Fail(c, response.Unauthorized, "凭证无效")
			c.Abort()
			return
		}

		// 吊销名单按签名存 Redis，账号服务登出时写入
		if sig, err := security.ExtractSignature(token); err == nil {
			if v, _ := redis.GetValue(c.Request.Context(), revokedKeyPrefix+sig); v != "" {
				response.Fail(c, response.Unauthorized, "凭证已失效")
				c.Abort()
				return
			}
		}

		c.Set(ContextUserClaims, claims)
		c.Next()
	}
}

// RequireStaff 仅客服/管理员可访问
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := MustClaims(c)
		if claims == nil || !claims.IsStaff() {
			response.Fail(c, response.Forbidden, "权限不足")
			c.Abort()
			return
		}
		c.Next()
	}
}

// MustClaims 取出鉴权中间件写入的 Claims，未鉴权路由返回 nil
func MustClaims(c *gin.Context) *security.UserClaims {
	v, ok := c.Get(ContextUserClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*security.UserClaims)
	return claims
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}
