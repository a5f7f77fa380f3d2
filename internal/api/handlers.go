package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"snake-arena/internal/game"
	"snake-arena/internal/render"
	"snake-arena/internal/room"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
	maxBodyBytes     = 1 << 12
)

// createRoomRequest is the POST /api/rooms body.
type createRoomRequest struct {
	Name            string    `json:"name"`
	MaxPlayers      int       `json:"maxPlayers"`
	Mode            room.Mode `json:"mode"`
	WorldSize       string    `json:"worldSize"`
	DurationSeconds int       `json:"durationSeconds"`
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	rooms := h.rooms.List()
	players := 0
	for _, info := range rooms {
		players += info.Connected
	}
	writeJSON(w, map[string]any{
		"status":  "ok",
		"rooms":   len(rooms),
		"players": players,
	})
}

func (h *routerHandlers) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.rooms.List())
}

func (h *routerHandlers) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, "durationSeconds must not be negative", http.StatusBadRequest)
		return
	}

	rm, err := h.rooms.Create(room.Config{
		Name:       req.Name,
		MaxPlayers: req.MaxPlayers,
		Mode:       req.Mode,
		WorldSize:  req.WorldSize,
		Duration:   time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		writeRoomError(w, err)
		return
	}

	w.Header().Set("Location", "/api/rooms/"+rm.Code())
	writeJSONStatus(w, http.StatusCreated, rm.Info())
}

func (h *routerHandlers) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, rm.Info())
}

func (h *routerHandlers) handleGetRoomState(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.lookup(w, r)
	if !ok {
		return
	}
	state, running := rm.FullGameState(r.Context())
	if !running {
		writeError(w, "No round in progress", http.StatusConflict)
		return
	}
	writeJSON(w, state)
}

func (h *routerHandlers) handleMinimap(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.lookup(w, r)
	if !ok {
		return
	}

	size, err := queryInt(r, "size", render.DefaultSize)
	if err != nil {
		writeError(w, "size must be an integer", http.StatusBadRequest)
		return
	}

	var snap game.FullSnapshot
	if state, running := rm.FullGameState(r.Context()); running {
		snap = state.State
	} else {
		// Between rounds the arena is drawn empty.
		ws := game.WorldSizeForPreset(rm.Config().WorldSize)
		snap = game.NewEngine(game.EngineConfig{WorldSize: ws}).FullState()
	}

	img, err := h.minimaps.PNG(rm.Code(), snap, size)
	if err != nil {
		log.Printf("⚠️ Minimap for room %s failed: %v", rm.Code(), err)
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

func (h *routerHandlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, "Stats disabled", http.StatusServiceUnavailable)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.stats.Top(limit))
}

func (h *routerHandlers) handlePlayer(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, "Stats disabled", http.StatusServiceUnavailable)
		return
	}
	p, ok := h.stats.Player(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, "Player not found", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (h *routerHandlers) handleRecentMatches(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, "Stats disabled", http.StatusServiceUnavailable)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.stats.Recent(limit))
}

func (h *routerHandlers) lookup(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	rm, err := h.rooms.Lookup(chi.URLParam(r, "code"))
	if err != nil {
		writeRoomError(w, err)
		return nil, false
	}
	return rm, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func queryLimit(r *http.Request) (int, error) {
	n, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

// writeRoomError maps room sentinels to status codes.
func writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrInvalidConfig):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, room.ErrRoomNotFound):
		writeError(w, "Room not found", http.StatusNotFound)
	case errors.Is(err, room.ErrTooManyRooms):
		writeError(w, "Room limit reached", http.StatusServiceUnavailable)
	default:
		log.Printf("❌ Room request failed: %v", err)
		writeError(w, "Internal error", http.StatusInternalServerError)
	}
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, code, map[string]string{"error": message})
}
