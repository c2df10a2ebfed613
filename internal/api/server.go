// Package api provides the HTTP bridge between the campaign UI and the
// simulation. GET endpoints read the published snapshot. POST endpoints
// require a bearer token and are queued onto the simulation thread.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/patria-grande/internal/economy"
	"github.com/talgya/patria-grande/internal/engine"
	"github.com/talgya/patria-grande/internal/military"
	"github.com/talgya/patria-grande/internal/persistence"
	"github.com/talgya/patria-grande/internal/recruitment"
	"github.com/talgya/patria-grande/internal/social"
	"github.com/talgya/patria-grande/internal/world"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
	commandTimeout    = 5 * time.Second
)

// Server serves the campaign state over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Journal     *persistence.DB // Optional. Nil falls back to in-memory recent events.
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.
	RecruitRate int    // Recruit requests per client per minute. 0 = unlimited.
	TrustProxy  bool   // Key rate limits on X-Forwarded-For. Only set behind a reverse proxy.
	CORSOrigins []string
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	recruitLimiter := NewRateLimiter(s.RecruitRate, time.Minute)
	recruitLimiter.TrustForwarded = s.TrustProxy

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/settlements", s.handleSettlements)
	mux.HandleFunc("GET /api/v1/divisions", s.handleDivisions)
	mux.HandleFunc("GET /api/v1/links", s.handleLinks)
	mux.HandleFunc("GET /api/v1/division/{id}/panel", s.handlePanel)
	mux.HandleFunc("GET /api/v1/division/{id}/affordance", s.handleAffordance)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)

	// Commands (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/select", s.adminOnly(s.handleSelect))
	mux.HandleFunc("POST /api/v1/move", s.adminOnly(s.handleMove))
	mux.HandleFunc("POST /api/v1/recruit", s.adminOnly(RateLimitMiddleware(recruitLimiter, s.handleRecruit)))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "journal", s.Journal != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return auth == "Bearer "+s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "commands disabled (no RECRUIT_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()

	var troops uint64
	for _, d := range snap.Divisions {
		troops += uint64(d.Troops)
	}

	writeJSON(w, map[string]any{
		"name":         "Patria Grande",
		"tick":         snap.Tick,
		"sim_time":     snap.SimTime,
		"settlements":  len(snap.Settlements),
		"divisions":    len(snap.Divisions),
		"total_troops": economy.Comma(troops),
		"active_links": len(snap.Links),
		"selected":     snap.Selected,
		"treasury":     snap.Treasury,
	})
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot().Settlements)
}

func (s *Server) handleDivisions(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	type divisionEntry struct {
		military.Division
		TroopsLabel string `json:"troops_label"`
		CanRecruit  bool   `json:"can_recruit"`
	}
	out := make([]divisionEntry, 0, len(snap.Divisions))
	for _, d := range snap.Divisions {
		panel, _ := snap.Panel(d.ID)
		out = append(out, divisionEntry{Division: d, TroopsLabel: panel.TroopsLabel, CanRecruit: panel.CanRecruit})
	}
	writeJSON(w, out)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	links := s.Sim.Snapshot().Links
	if links == nil {
		links = []recruitment.Link{}
	}
	writeJSON(w, links)
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	panel, found := s.Sim.Snapshot().Panel(id)
	if !found {
		writeError(w, &recruitment.UnknownDivisionError{ID: id})
		return
	}
	writeJSON(w, panel)
}

func (s *Server) handleAffordance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	snap := s.Sim.Snapshot()
	if _, found := snap.Panel(id); !found {
		writeError(w, &recruitment.UnknownDivisionError{ID: id})
		return
	}
	aff, visible := snap.AffordanceFor(id)
	resp := map[string]any{"division_id": id, "visible": visible}
	if visible {
		resp["affordance"] = aff
	}
	writeJSON(w, resp)
}

// handleEvents returns journaled events, newest first. Without a journal it
// serves the simulation's in-memory ring.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEventLimit)
	}

	if s.Journal != nil {
		entries, err := s.Journal.RecentEvents(limit)
		if err != nil {
			slog.Error("journal query failed", "error", err)
			http.Error(w, "journal unavailable", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []persistence.Entry{}
		}
		writeJSON(w, entries)
		return
	}

	recent := s.Sim.Snapshot().Recent
	type eventEntry struct {
		recruitment.Event
		Description string `json:"description"`
		Error       string `json:"error,omitempty"`
	}
	out := make([]eventEntry, 0, min(limit, len(recent)))
	for i := len(recent) - 1; i >= 0 && len(out) < limit; i-- {
		e := recent[i]
		entry := eventEntry{Event: e, Description: e.Description()}
		if e.Err != nil {
			entry.Error = e.Err.Error()
		}
		out = append(out, entry)
	}
	writeJSON(w, out)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DivisionID military.DivisionID `json:"division_id"` // 0 clears the selection
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.submit(r, func(sim *engine.Simulation) error {
		return sim.OnDivisionSelected(req.DivisionID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("division selected", "division", req.DivisionID)
	writeJSON(w, map[string]any{"selected": req.DivisionID})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DivisionID military.DivisionID `json:"division_id"`
		X          float64             `json:"x"`
		Y          float64             `json:"y"`
		March      bool                `json:"march"` // March over several ticks instead of teleporting
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	dest := world.Pt(req.X, req.Y)
	err := s.submit(r, func(sim *engine.Simulation) error {
		if req.March {
			return sim.OnDivisionOrdered(req.DivisionID, dest)
		}
		return sim.OnDivisionMoved(req.DivisionID, dest)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"division_id": req.DivisionID,
		"destination": dest,
		"march":       req.March,
	})
}

func (s *Server) handleRecruit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DivisionID   military.DivisionID   `json:"division_id"`
		SettlementID social.SettlementID   `json:"settlement_id"`
		Archetype    recruitment.Archetype `json:"archetype"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var division military.Division
	err := s.submit(r, func(sim *engine.Simulation) error {
		d, err := sim.Recruit(req.DivisionID, req.SettlementID, req.Archetype)
		division = d
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"division":     division,
		"troops_label": economy.Comma(uint64(division.Troops)),
	})
}

func (s *Server) submit(r *http.Request, cmd engine.Command) error {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	return s.Sim.Submit(ctx, cmd)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps command errors to HTTP status codes.
func statusFor(err error) int {
	var (
		outOfRange *recruitment.OutOfRangeError
		invalid    *recruitment.InvalidArchetypeError
		poor       *recruitment.InsufficientResourcesError
		tier       *recruitment.UnknownTierError
		overflow   *recruitment.TroopOverflowError
		division   *recruitment.UnknownDivisionError
		settlement *recruitment.UnknownSettlementError
	)
	switch {
	case errors.As(err, &outOfRange):
		return http.StatusConflict
	case errors.As(err, &invalid), errors.As(err, &tier), errors.As(err, &overflow):
		return http.StatusUnprocessableEntity
	case errors.As(err, &poor):
		return http.StatusPaymentRequired
	case errors.As(err, &division), errors.As(err, &settlement):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(map[string]string{
		"error":   err.Error(),
		"message": recruitment.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
