package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"couple-app/backend/internal/dto"
	apperrors "couple-app/backend/pkg/errors"
	"couple-app/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── 测试替身 ──

type fakeVerifier struct {
	identity *jwt.Identity
	err      error
	gotToken string
}

func (f *fakeVerifier) VerifyIDToken(token string) (*jwt.Identity, error) {
	f.gotToken = token
	return f.identity, f.err
}

type fakeResolver struct {
	profile *dto.ProfileResponse
	err     error
	calls   int
}

func (f *fakeResolver) ResolveIdentity(_ context.Context, _ *jwt.Identity) (*dto.ProfileResponse, error) {
	f.calls++
	return f.profile, f.err
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

func echoUserID(c *gin.Context) {
	c.String(http.StatusOK, c.GetString("user_id"))
}

// ── IdentityAuth ──

func TestIdentityAuth_Success(t *testing.T) {
	v := &fakeVerifier{identity: &jwt.Identity{UID: "uid-1", Email: "a@example.com"}}
	res := &fakeResolver{profile: &dto.ProfileResponse{ID: "user-1"}}

	r := gin.New()
	r.GET("/me", IdentityAuth(v, res), echoUserID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "user-1" {
		t.Errorf("expected user_id user-1, got %q", w.Body.String())
	}
	if v.gotToken != "tok-123" {
		t.Errorf("unexpected token %q", v.gotToken)
	}
}

func TestIdentityAuth_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		verifyErr   error
		resolveErr  error
		wantStatus  int
		wantResolve bool
	}{
		{"缺少认证头", "", nil, nil, 401, false},
		{"格式错误", "Token abc", nil, nil, 401, false},
		{"空 Token", "Bearer ", nil, nil, 401, false},
		{"Token 过期", "Bearer t", jwt.ErrTokenExpired, nil, 401, false},
		{"Token 无效", "Bearer t", jwt.ErrTokenInvalid, nil, 401, false},
		{"缺少邮箱", "Bearer t", nil, apperrors.New(apperrors.ErrForbidden, "no email"), 403, true},
		{"解析超时", "Bearer t", nil, apperrors.New(apperrors.ErrTimeout, "timeout"), 504, true},
		{"解析失败", "Bearer t", nil, errors.New("db down"), 500, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeVerifier{identity: &jwt.Identity{UID: "uid"}, err: tt.verifyErr}
			res := &fakeResolver{profile: &dto.ProfileResponse{ID: "u"}, err: tt.resolveErr}

			r := gin.New()
			r.GET("/me", IdentityAuth(v, res), echoUserID)

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if (res.calls > 0) != tt.wantResolve {
				t.Errorf("resolver called=%v, want %v", res.calls > 0, tt.wantResolve)
			}
		})
	}
}

// ── RateLimit ──

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		limiter    Limiter
		wantStatus int
	}{
		{"放行", &fakeLimiter{allowed: true}, 200},
		{"超限", &fakeLimiter{allowed: false}, 429},
		{"Redis 错误降级", &fakeLimiter{err: errors.New("conn refused")}, 200},
		{"未配置", nil, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", RateLimit(tt.limiter, 1, time.Minute, ByClientIP), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestRateLimit_ByUserIDKey(t *testing.T) {
	l := &fakeLimiter{allowed: true}

	r := gin.New()
	r.POST("/couples/join", func(c *gin.Context) { c.Set("user_id", "u-9") }, RateLimit(l, 5, time.Minute, ByUserID), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/couples/join", nil))

	if len(l.keys) != 1 || l.keys[0] != "user:u-9:/couples/join" {
		t.Errorf("unexpected keys: %v", l.keys)
	}
	if strings.HasPrefix(l.keys[0], "rate_limit:") {
		t.Error("key prefix belongs to the limiter")
	}
}

// ── RequestID ──

func TestRequestID(t *testing.T) {
	long := strings.Repeat("x", requestIDMaxLen+1)
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"沿用请求头", "rid-abc", true},
		{"超长重新生成", long, false},
		{"缺失时生成", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			r := gin.New()
			r.Use(RequestID())
			r.GET("/x", func(c *gin.Context) { seen = GetRequestID(c) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/x", nil)
			if tt.incoming != "" {
				req.Header.Set(requestIDHeader, tt.incoming)
			}
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("header %q and context %q should match", got, seen)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("expected %q, got %q", tt.incoming, got)
			}
			if !tt.keep && got == tt.incoming {
				t.Errorf("expected a regenerated id")
			}
		})
	}
}

// ── Logger ──

func TestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{200, zapcore.InfoLevel},
		{404, zapcore.WarnLevel},
		{500, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		core, logs := observer.New(zapcore.DebugLevel)
		r := gin.New()
		r.Use(RequestID(), Logger(zap.New(core)))
		r.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("expected 1 log entry, got %d", len(entries))
		}
		if entries[0].Level != tt.level {
			t.Errorf("status %d: expected level %v, got %v", tt.status, tt.level, entries[0].Level)
		}
		if rid, _ := entries[0].ContextMap()["request_id"].(string); rid == "" {
			t.Error("request_id should be logged")
		}
	}
}

// ── BodyLimit ──

func TestBodyLimit_DeclaredLength(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", strings.NewReader("0123456789")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", strings.NewReader("ok")))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ── CORS / SecurityHeaders ──

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:8081/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/x", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:8081" {
		t.Errorf("origin not allowed: %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	r.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin should not be allowed")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

	for _, h := range []string{"X-Frame-Options", "X-Content-Type-Options", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should only be sent over TLS")
	}
}
