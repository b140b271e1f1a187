package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"visitor-gate/config"
	"visitor-gate/internal/api/handler"
	"visitor-gate/internal/repository"
	"visitor-gate/internal/service"
	"visitor-gate/pkg/jwt"
)

func setupRouter(t *testing.T) (http.Handler, *jwt.Manager) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{BodyLimit: 1 << 10},
		Auth:   config.AuthConfig{JWTSecret: "router-test-secret", AccessTokenTTL: time.Hour},
	}
	jwtMgr := jwt.NewManager(&cfg.Auth)
	// 以下用例不会触达存储层
	svc := service.NewService(cfg, &repository.Repository{}, jwtMgr, service.Infra{}, zap.NewNop())

	r, err := Setup(cfg, handler.NewHandler(svc), jwtMgr, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return r, jwtMgr
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestVisitAction_Anonymous(t *testing.T) {
	r, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/visits/action",
		strings.NewReader(`{"scheduleId":"s-1","visitorId":"v-1","entryChecked":true}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Errorf("expected ActionResult body, got %s", w.Body.String())
	}
}

func TestVisitAction_ResidentForbidden(t *testing.T) {
	r, mgr := setupRouter(t)
	token, _ := mgr.GenerateAccessToken("resident-1", "resident")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/visits/action",
		strings.NewReader(`{"scheduleId":"s-1","visitorId":"v-1","action":"entry"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	r, mgr := setupRouter(t)

	for _, path := range []string{"/api/v1/auth/me", "/api/v1/schedules/s-1", "/api/v1/schedules/s-1/entry-logs"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, w.Code)
		}
	}

	// 住户无权查看出入记录与导出
	token, _ := mgr.GenerateAccessToken("resident-1", "resident")
	for _, path := range []string{"/api/v1/schedules/s-1/entry-logs", "/api/v1/schedules/s-1/entry-logs/export"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", path, w.Code)
		}
	}
}

func TestBodyLimit(t *testing.T) {
	r, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(strings.Repeat("x", 2<<10)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}
