package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leads-admin/internal/apiserver/auth"
	"leads-admin/internal/shared/blob"
	"leads-admin/internal/shared/cache"
	"leads-admin/internal/shared/model"
	"leads-admin/internal/shared/storage"
)

// TestRouter 全栈路由测试
//
// promauto 指标注册在默认 registry，Handler 只能创建一次，
// 所以用子测试共享同一个路由实例。
func TestRouter(t *testing.T) {
	store := storage.NewMemStore()
	blobs, err := blob.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	authCfg := auth.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}
	h := NewHandler(store, blobs, cache.NewMemoryCache(), authCfg)
	router := h.Router()

	ctx := context.Background()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	agent := &model.User{
		ID: "usr-agent", Username: "alice", Email: "alice@example.com",
		PasswordHash: hash, Role: model.UserRoleAgent, IsActive: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := store.CreateUser(ctx, agent); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	t.Run("health is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("metrics is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("protected route rejects anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	var token string
	t.Run("login issues token", func(t *testing.T) {
		body := bytes.NewBufferString(`{"username":"alice","password":"password123"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("no token in login response")
		}
		token = resp.Token
	})

	t.Run("bearer token reaches protected route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/leads", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("full lead roundtrip", func(t *testing.T) {
		body := bytes.NewBufferString(`{"first_name":"Max","last_name":"M","email":"max@example.com","phone":"5","country":"AT","visa_type":"Work","assigned_to":"usr-agent"}`)
		req := httptest.NewRequest(http.MethodPost, "/leads/create", body)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: status = %d, body: %s", rec.Code, rec.Body.String())
		}
		var created model.Lead
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode: %v", err)
		}

		req = httptest.NewRequest(http.MethodGet, "/leads/"+created.ID, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("detail: status = %d", rec.Code)
		}

		req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("dashboard: status = %d", rec.Code)
		}
	})

	t.Run("browser gets redirected to login", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("Accept", "text/html")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/auth/login" {
			t.Errorf("Location = %q", loc)
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/leads", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") == "" {
			t.Error("missing CORS headers on preflight")
		}
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/leads", "/leads"},
		{"/leads/create", "/leads/create"},
		{"/leads/lead-abc123", "/leads/{id}"},
		{"/leads/lead-abc123/notes", "/leads/{id}/notes"},
		{"/leads/edit/lead-abc123", "/leads/edit/{id}"},
		{"/leads/stats/summary", "/leads/stats/summary"},
		{"/files/upload/lead-abc123", "/files/upload/{leadId}"},
		{"/files/download/file-xyz", "/files/download/{fileId}"},
		{"/files/lead/lead-abc123", "/files/lead/{leadId}"},
		{"/files/file-xyz", "/files/{fileId}"},
		{"/dashboard", "/dashboard"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecoverMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	recoverMiddleware(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("body = %q, panic detail must not leak", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("panic message leaked to client")
	}
}
