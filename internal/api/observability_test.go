package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"snake-arena/internal/room"
)

type listOnly struct {
	RoomDirectory
	infos []room.Info
}

func (l listOnly) List() []room.Info { return l.infos }

func TestDebugHandlerRoutes(t *testing.T) {
	h := DebugHandler(ObservabilityConfig{Rooms: listOnly{infos: []room.Info{{Code: "ABCDEF"}}}})

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/debug/pprof/", http.StatusOK},
		{"/rooms", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	var infos []room.Info
	if err := json.NewDecoder(rec.Body).Decode(&infos); err != nil || len(infos) != 1 || infos[0].Code != "ABCDEF" {
		t.Errorf("Unexpected room dump %v (%v)", infos, err)
	}
}

func TestDebugHandlerBasicAuth(t *testing.T) {
	h := DebugHandler(ObservabilityConfig{BasicAuthUser: "ops", BasicAuthPass: "pw"})

	tests := []struct {
		name       string
		user, pass string
		want       int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"wrong password", "ops", "nope", http.StatusUnauthorized},
		{"valid", "ops", "pw", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:6060": true,
		"[::1]:6060":     true,
		"0.0.0.0:6060":   false,
		":6060":          false,
		"nonsense":       false,
	}
	for addr, want := range tests {
		if got := isLoopback(addr); got != want {
			t.Errorf("isLoopback(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestStartDebugServerDisabled(t *testing.T) {
	if srv := StartDebugServer(ObservabilityConfig{}); srv != nil {
		t.Error("Expected no server when disabled")
	}
}
