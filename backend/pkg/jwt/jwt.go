package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"couple-app/backend/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

// Identity 外部身份提供方确认的用户身份
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
}

// Claims 身份令牌声明（与身份提供方 ID Token 字段保持一致）
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	jwtv5.RegisteredClaims
}

// Manager 身份令牌校验器
type Manager struct {
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
}

// NewManager 创建身份令牌校验器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret:    []byte(cfg.TokenSecret),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		clockSkew: cfg.ClockSkew,
	}
}

// VerifyIDToken 校验身份令牌并返回身份信息
func (m *Manager) VerifyIDToken(tokenString string) (*Identity, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(m.clockSkew),
		jwtv5.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwtv5.WithAudience(m.audience))
	}

	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return &Identity{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

// IssueIDToken 签发身份令牌
// 生产环境由身份提供方签发，此方法用于本地联调与测试
func (m *Manager) IssueIDToken(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Name:          identity.Name,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   identity.UID,
			Issuer:    m.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwtv5.ClaimStrings{m.audience}
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
