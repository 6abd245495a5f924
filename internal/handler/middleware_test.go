package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/auth"
	"github.com/argus-core/backend/internal/config"
)

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	svc, err := auth.NewAuthService(nil, config.AuthConfig{
		JWTSecret:     "test-secret",
		JWTAccessTTL:  "15m",
		JWTRefreshTTL: "720h",
	})
	if err != nil {
		t.Fatalf("unexpected error constructing AuthService: %v", err)
	}
	return svc
}

func newMiddlewareRouter(svc *auth.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(svc), func(c *gin.Context) {
		user := GetAuthUser(c)
		c.JSON(http.StatusOK, gin.H{"login_id": user.LoginID})
	})
	return r
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	r := newMiddlewareRouter(newTestAuthService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsMalformedToken(t *testing.T) {
	r := newMiddlewareRouter(newTestAuthService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareAllowsOptionsThrough(t *testing.T) {
	svc := newTestAuthService(t)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodOptions, "/protected", nil)

	AuthMiddleware(svc)(c)

	if c.IsAborted() {
		t.Fatal("expected OPTIONS requests to bypass the auth check")
	}
}
