package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/settings"
)

func newSettingsRouter(store *settings.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSettingsHandler(store)
	r.GET("/settings", h.Get)
	r.PUT("/settings", h.Put)
	return r
}

func TestSettingsGetReturnsSeed(t *testing.T) {
	store := settings.New(map[string]string{"mute_default_hours": "4"})
	r := newSettingsRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp model.SettingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Settings["mute_default_hours"] != "4" {
		t.Fatalf("expected seeded value, got %+v", resp.Settings)
	}
}

func TestSettingsPutMergesAndPersists(t *testing.T) {
	store := settings.New(nil)
	r := newSettingsRouter(store)

	body, _ := json.Marshal(model.SettingsResponse{Settings: map[string]string{"ingestion_rate_limit": "500"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if v, ok := store.Get("ingestion_rate_limit"); !ok || v != "500" {
		t.Fatalf("expected store to hold the new setting, got %q (ok=%v)", v, ok)
	}
}

func TestSettingsPutInvalidBody(t *testing.T) {
	store := settings.New(nil)
	r := newSettingsRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
