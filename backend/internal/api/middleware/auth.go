package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"couple-app/backend/internal/dto"
	apperrors "couple-app/backend/pkg/errors"
	"couple-app/backend/pkg/jwt"
	"couple-app/backend/pkg/response"
)

// IdentityVerifier 校验身份提供方签发的 ID Token
type IdentityVerifier interface {
	VerifyIDToken(token string) (*jwt.Identity, error)
}

// IdentityResolver 将外部身份解析为本地用户（首次访问时自动创建）
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, identity *jwt.Identity) (*dto.ProfileResponse, error)
}

// IdentityAuth 身份认证中间件
// 从 Authorization: Bearer <token> 中提取 ID Token，校验后解析本地用户并注入 user_id
func IdentityAuth(verifier IdentityVerifier, resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		identity, err := verifier.VerifyIDToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Unauthorized(c, 10002, "Token 已过期")
			} else {
				response.Unauthorized(c, 10002, "Token 无效")
			}
			c.Abort()
			return
		}

		profile, err := resolver.ResolveIdentity(c.Request.Context(), identity)
		if err != nil {
			switch apperrors.Kind(err) {
			case apperrors.ErrForbidden, apperrors.ErrConflict:
				response.Forbidden(c, 10003, err.Error())
			case apperrors.ErrTimeout:
				response.GatewayTimeout(c)
			default:
				response.InternalError(c)
			}
			c.Abort()
			return
		}

		c.Set("user_id", profile.ID)
		c.Set("firebase_uid", identity.UID)
		c.Set("email", identity.Email)

		c.Next()
	}
}
