package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/spleefx/spleefx/internal/arena"
	"github.com/spleefx/spleefx/internal/domain"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ArenaPlayer is a participant as listed by the arena detail route
type ArenaPlayer struct {
	ID    string             `json:"id"`
	Name  string             `json:"name"`
	Team  domain.TeamColor   `json:"team,omitempty"`
	State domain.PlayerState `json:"state"`
	Alive bool               `json:"alive"`
}

// ArenaDetail is the full view of one arena
type ArenaDetail struct {
	domain.ArenaStatus
	Pool    int           `json:"pool"`
	Players []ArenaPlayer `json:"players"`
	Sign    []string      `json:"sign,omitempty"`
}

// handleGetArenas returns the status of every arena
func (r *Router) handleGetArenas(w http.ResponseWriter, req *http.Request) {
	var statuses []domain.ArenaStatus
	if err := r.onTick(req.Context(), func() { statuses = r.manager.Status() }); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleGetArena returns one arena with its participants
func (r *Router) handleGetArena(w http.ResponseWriter, req *http.Request) {
	key := req.PathValue("key")
	var detail *ArenaDetail
	err := r.onTick(req.Context(), func() {
		e, err := r.manager.Get(key)
		if err != nil {
			return
		}
		detail = &ArenaDetail{ArenaStatus: e.Status(), Pool: e.Pool(), Players: []ArenaPlayer{}}
		for _, p := range e.Players() {
			ap := ArenaPlayer{
				ID:    p.ID().String(),
				Name:  p.Name(),
				State: p.State(),
				Alive: e.IsAlive(p.ID()),
			}
			if t := e.TeamOf(p.ID()); t != nil {
				ap.Team = t.Color
			}
			detail.Players = append(detail.Players, ap)
		}
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "arena not found")
		return
	}
	if r.signs != nil {
		detail.Sign, _ = r.signs.Lines(key)
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleGetPlayerStats returns a player's counters for a mode
func (r *Router) handleGetPlayerStats(w http.ResponseWriter, req *http.Request) {
	id, err := parsePlayerID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	mode, ok := r.parseMode(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid mode")
		return
	}

	stats, err := r.store.Stats(req.Context(), id, mode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleGetLeaderboard returns the top players of a mode by one statistic
func (r *Router) handleGetLeaderboard(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 10, 100)

	mode, ok := r.parseMode(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid mode")
		return
	}

	stat := req.URL.Query().Get("stat")
	if stat == "" {
		stat = string(domain.StatWins)
	}
	if !validateStatistic(stat) {
		writeError(w, http.StatusBadRequest, "invalid stat")
		return
	}

	entries, err := r.store.Leaderboard(req.Context(), mode, domain.Statistic(stat), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":    mode,
		"stat":    stat,
		"entries": entries,
	})
}

// handleGetGames returns recent finished games, optionally for one arena
func (r *Router) handleGetGames(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 20, 100)
	games, err := r.store.RecentGames(req.Context(), req.URL.Query().Get("arena"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if games == nil {
		games = []domain.GameResult{}
	}
	writeJSON(w, http.StatusOK, games)
}

// handleGetGame returns a single game by UUID
func (r *Router) handleGetGame(w http.ResponseWriter, req *http.Request) {
	game, err := r.store.Game(req.Context(), req.PathValue("uuid"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if game == nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

var (
	errArenaEmpty  = errors.New("arena has no players")
	errArenaBusy   = errors.New("arena is not waiting for players")
	errArenaInGame = errors.New("arena has a game in progress")
)

// arenaAction runs act against an arena on the tick goroutine and writes the
// resulting status
func (r *Router) arenaAction(w http.ResponseWriter, req *http.Request, name string, act func(e *arena.Engine) error) {
	key := req.PathValue("key")
	var status domain.ArenaStatus
	var actErr error
	err := r.onTick(req.Context(), func() {
		e, err := r.manager.Get(key)
		if err != nil {
			actErr = err
			return
		}
		actErr = act(e)
		status = e.Status()
	})
	switch {
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(actErr, arena.ErrUnknownArena):
		writeError(w, http.StatusNotFound, "arena not found")
	case errors.Is(actErr, errArenaEmpty), errors.Is(actErr, errArenaBusy), errors.Is(actErr, errArenaInGame):
		writeError(w, http.StatusConflict, actErr.Error())
	case actErr != nil:
		log.Printf("Warning: %s of arena %s: %v", name, key, actErr)
		writeError(w, http.StatusInternalServerError, actErr.Error())
	default:
		log.Printf("Arena %s: %s requested over the API", key, name)
		writeJSON(w, http.StatusOK, status)
	}
}

// handleStartArena skips the countdown of an arena with players
func (r *Router) handleStartArena(w http.ResponseWriter, req *http.Request) {
	r.arenaAction(w, req, "start", func(e *arena.Engine) error {
		if e.Size() == 0 {
			return errArenaEmpty
		}
		if !e.Stage().Joinable() {
			return errArenaBusy
		}
		e.Start()
		return nil
	})
}

// handleRegenerateArena restores an arena's floor
func (r *Router) handleRegenerateArena(w http.ResponseWriter, req *http.Request) {
	r.arenaAction(w, req, "regeneration", func(e *arena.Engine) error {
		if e.Stage() == domain.StageActive {
			return errArenaInGame
		}
		return e.Regenerate()
	})
}

// handleStopArena force-ends an arena, refunding every bet
func (r *Router) handleStopArena(w http.ResponseWriter, req *http.Request) {
	r.arenaAction(w, req, "stop", func(e *arena.Engine) error {
		if e.Size() == 0 {
			return errArenaEmpty
		}
		return e.ForceEnd()
	})
}

// handleHealth returns a simple health check response
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
