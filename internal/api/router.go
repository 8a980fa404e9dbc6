package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/spleefx/spleefx/internal/arena"
	"github.com/spleefx/spleefx/internal/auth"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/listener"
	"github.com/spleefx/spleefx/internal/signs"
	"github.com/spleefx/spleefx/internal/storage"
)

// tickTimeout bounds how long a request waits for the tick goroutine
const tickTimeout = 5 * time.Second

// Options are the dependencies of the router
type Options struct {
	Store     *storage.Store
	Manager   *arena.Manager
	Scheduler *host.Scheduler
	Listener  *listener.Listener
	Signs     *signs.Board
	Auth      *auth.Service

	// PlayRate and PlayBurst limit commands per player connection
	PlayRate  rate.Limit
	PlayBurst int
}

// Router holds the HTTP routes and dependencies
type Router struct {
	mux       *http.ServeMux
	store     *storage.Store
	manager   *arena.Manager
	sched     *host.Scheduler
	listener  *listener.Listener
	signs     *signs.Board
	wsHub     *WebSocketHub
	auth      *auth.Service
	modes     []string
	playRate  rate.Limit
	playBurst int
}

// NewRouter creates a new HTTP router
func NewRouter(opts Options) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		store:     opts.Store,
		manager:   opts.Manager,
		sched:     opts.Scheduler,
		listener:  opts.Listener,
		signs:     opts.Signs,
		wsHub:     NewWebSocketHub(),
		auth:      opts.Auth,
		playRate:  opts.PlayRate,
		playBurst: opts.PlayBurst,
	}
	if r.sched == nil {
		r.sched = opts.Manager.Services().Scheduler
	}
	if r.listener == nil {
		r.listener = listener.New(opts.Manager)
	}
	if r.playRate <= 0 {
		r.playRate = 20
	}
	if r.playBurst <= 0 {
		r.playBurst = 40
	}
	seen := make(map[string]bool)
	for _, e := range opts.Manager.All() {
		if key := e.Arena().Mode.Key; !seen[key] {
			seen[key] = true
			r.modes = append(r.modes, key)
		}
	}
	sort.Strings(r.modes)

	r.mux.HandleFunc("GET /api/arenas", r.handleGetArenas)
	r.mux.HandleFunc("GET /api/arenas/{key}", r.handleGetArena)

	r.mux.HandleFunc("GET /api/players/{id}/stats", r.handleGetPlayerStats)
	r.mux.HandleFunc("GET /api/leaderboard", r.handleGetLeaderboard)

	r.mux.HandleFunc("GET /api/games", r.handleGetGames)
	r.mux.HandleFunc("GET /api/games/{uuid}", r.handleGetGame)

	// Arena management routes (admin only)
	r.mux.HandleFunc("POST /api/arenas/{key}/start", r.requireAdmin(r.handleStartArena))
	r.mux.HandleFunc("POST /api/arenas/{key}/regenerate", r.requireAdmin(r.handleRegenerateArena))
	r.mux.HandleFunc("POST /api/arenas/{key}/stop", r.requireAdmin(r.handleStopArena))

	// WebSocket endpoints
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)
	r.mux.HandleFunc("GET /ws/play", r.handlePlay)

	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// Hub returns the spectator hub so it can be subscribed to the event bus
func (r *Router) Hub() *WebSocketHub { return r.wsHub }

// StartWebSocketHub starts broadcasting events to WebSocket clients
func (r *Router) StartWebSocketHub() {
	go r.wsHub.Run()
}

// Stop closes every spectator connection
func (r *Router) Stop() {
	r.wsHub.Stop()
}

// onTick runs fn on the scheduler's tick goroutine, where all arena state lives
func (r *Router) onTick(ctx context.Context, fn func()) error {
	ctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()
	return r.sched.Call(ctx, fn)
}
