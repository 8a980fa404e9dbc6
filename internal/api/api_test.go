package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/spleefx/spleefx/internal/arena"
	"github.com/spleefx/spleefx/internal/auth"
	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/events"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/signs"
	"github.com/spleefx/spleefx/internal/storage"
	"github.com/spleefx/spleefx/internal/world"
)

const testConfig = `
modes:
  spleef:
    enabled: true
    allowed_commands: ["/spleef leave"]
arenas:
  - key: classic
    mode: spleef
    maximum: 4
    ffa_spawns:
      - {world: world, x: 1, y: 65, z: 1}
      - {world: world, x: 3, y: 65, z: 3}
    floor: {world: world, min: {x: 0, y: 64, z: 0}, max: {x: 4, y: 64, z: 4}, material: SNOW_BLOCK}
  - key: duos
    mode: spleef
    type: TEAMS
    maximum: 4
    teams: [RED, BLUE]
    spawn_points:
      RED: {world: world, x: 100, y: 65}
      BLUE: {world: world, x: 120, y: 65}
`

type testServer struct {
	srv    *httptest.Server
	router *Router
	store  *storage.Store
	auth   *auth.Service
	bus    *events.Bus
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	sched := host.NewScheduler()
	bus := events.NewBus()
	board := signs.NewBoard(cfg.Signs, bus)
	m, err := arena.NewManager(cfg, &arena.Services{
		Stats:     store,
		Signs:     board,
		Events:    bus,
		Scheduler: sched,
	}, world.NewStore())
	if err != nil {
		t.Fatal(err)
	}

	authService := auth.NewService("test-secret", time.Hour)
	opts.Store = store
	opts.Manager = m
	opts.Scheduler = sched
	opts.Signs = board
	opts.Auth = authService
	router := NewRouter(opts)
	bus.Subscribe(router.Hub())
	router.StartWebSocketHub()

	if err := sched.Start(2 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		router.Stop()
		sched.Stop()
	})
	return &testServer{srv: srv, router: router, store: store, auth: authService, bus: bus}
}

func (ts *testServer) token(t *testing.T, id uuid.UUID, name string, admin bool) string {
	t.Helper()
	token, err := ts.auth.GenerateToken(id, name, admin)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) dial(t *testing.T, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + path
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestHealthAndArenas(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}

	var statuses []domain.ArenaStatus
	if code := ts.do(t, "GET", "/api/arenas", "", &statuses); code != http.StatusOK {
		t.Fatalf("GET /api/arenas = %d", code)
	}
	if len(statuses) != 2 || statuses[0].Key != "classic" || statuses[1].Key != "duos" {
		t.Fatalf("statuses = %+v", statuses)
	}
	if statuses[0].Stage != domain.StageWaiting {
		t.Errorf("classic stage = %s, want WAITING", statuses[0].Stage)
	}

	var detail ArenaDetail
	if code := ts.do(t, "GET", "/api/arenas/duos", "", &detail); code != http.StatusOK {
		t.Fatalf("GET /api/arenas/duos = %d", code)
	}
	if detail.Type != domain.Teams || len(detail.Players) != 0 {
		t.Errorf("detail = %+v", detail)
	}
	if code := ts.do(t, "GET", "/api/arenas/nope", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown arena = %d, want 404", code)
	}
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, Options{})
	admin := ts.token(t, uuid.New(), "op", true)
	player := ts.token(t, uuid.New(), "alice", false)

	if code := ts.do(t, "POST", "/api/arenas/classic/start", "", nil); code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", code)
	}
	if code := ts.do(t, "POST", "/api/arenas/classic/start", player, nil); code != http.StatusForbidden {
		t.Errorf("player token = %d, want 403", code)
	}
	if code := ts.do(t, "POST", "/api/arenas/classic/start", admin, nil); code != http.StatusConflict {
		t.Errorf("start of empty arena = %d, want 409", code)
	}
	if code := ts.do(t, "POST", "/api/arenas/nope/stop", admin, nil); code != http.StatusNotFound {
		t.Errorf("unknown arena = %d, want 404", code)
	}

	var status domain.ArenaStatus
	if code := ts.do(t, "POST", "/api/arenas/classic/regenerate", admin, &status); code != http.StatusOK {
		t.Fatalf("regenerate = %d", code)
	}
	if status.Stage != domain.StageWaiting {
		t.Errorf("stage after regenerate = %s, want WAITING", status.Stage)
	}
}

func TestStatsAndLeaderboard(t *testing.T) {
	ts := newTestServer(t, Options{})
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	ts.store.AddStat(ctx, alice, "alice", "spleef", domain.StatWins, 2)
	ts.store.AddStat(ctx, bob, "bob", "spleef", domain.StatWins, 5)
	ts.store.GiveCoins(ctx, alice, 40)

	var stats domain.PlayerStats
	if code := ts.do(t, "GET", "/api/players/"+alice.String()+"/stats", "", &stats); code != http.StatusOK {
		t.Fatalf("stats = %d", code)
	}
	if stats.Counters[domain.StatWins] != 2 || stats.Coins != 40 || stats.Mode != "spleef" {
		t.Errorf("stats = %+v", stats)
	}
	if code := ts.do(t, "GET", "/api/players/42/stats", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", code)
	}
	if code := ts.do(t, "GET", "/api/players/"+alice.String()+"/stats?mode=tag", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad mode = %d, want 400", code)
	}

	var board struct {
		Entries []domain.LeaderboardEntry `json:"entries"`
	}
	if code := ts.do(t, "GET", "/api/leaderboard?stat=wins", "", &board); code != http.StatusOK {
		t.Fatalf("leaderboard = %d", code)
	}
	if len(board.Entries) != 2 || board.Entries[0].Name != "bob" {
		t.Errorf("entries = %+v", board.Entries)
	}
	if code := ts.do(t, "GET", "/api/leaderboard?stat=kills", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad stat = %d, want 400", code)
	}
}

func TestGames(t *testing.T) {
	ts := newTestServer(t, Options{})
	now := time.Now().UTC().Truncate(time.Second)
	g := &domain.GameResult{
		UUID:      uuid.NewString(),
		Arena:     "classic",
		Mode:      "spleef",
		Type:      domain.FreeForAll,
		StartedAt: now.Add(-time.Minute),
		EndedAt:   now,
		Players:   []domain.GameParticipant{{PlayerID: uuid.New(), Name: "alice", Team: domain.TeamFFA, Placement: 1}},
	}
	if err := ts.store.RecordGame(context.Background(), g); err != nil {
		t.Fatal(err)
	}

	var games []domain.GameResult
	if code := ts.do(t, "GET", "/api/games?arena=classic", "", &games); code != http.StatusOK {
		t.Fatalf("games = %d", code)
	}
	if len(games) != 1 || games[0].UUID != g.UUID {
		t.Fatalf("games = %+v", games)
	}
	var one domain.GameResult
	if code := ts.do(t, "GET", "/api/games/"+g.UUID, "", &one); code != http.StatusOK {
		t.Fatalf("game = %d", code)
	}
	if len(one.Players) != 1 || one.Players[0].Name != "alice" {
		t.Errorf("game = %+v", one)
	}
	if code := ts.do(t, "GET", "/api/games/missing", "", nil); code != http.StatusNotFound {
		t.Errorf("missing game = %d, want 404", code)
	}
}

// readResult reads responses until one answers op
func readResult(t *testing.T, conn *websocket.Conn, op string) PlayResponse {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var resp PlayResponse
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("waiting for %s: %v", op, err)
		}
		if resp.Type != "notice" && resp.Op == op {
			return resp
		}
	}
}

func TestPlayBridge(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := uuid.New()

	if _, resp, err := ts.dial(t, "/ws/play"); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token should be rejected with 401")
	}

	conn, _, err := ts.dial(t, "/ws/play?token="+ts.token(t, id, "alice", false))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(PlayRequest{Op: OpJoin, Arena: "nope"})
	if resp := readResult(t, conn, OpJoin); resp.OK {
		t.Fatalf("joined an unknown arena")
	}

	conn.WriteJSON(PlayRequest{Op: OpJoin, Arena: "classic"})
	if resp := readResult(t, conn, OpJoin); !resp.OK || resp.Error != "" {
		t.Fatalf("join = %+v", resp)
	}

	var detail ArenaDetail
	ts.do(t, "GET", "/api/arenas/classic", "", &detail)
	if len(detail.Players) != 1 || detail.Players[0].ID != id.String() || detail.Players[0].State != domain.Waiting {
		t.Fatalf("players = %+v", detail.Players)
	}
	if len(detail.Sign) == 0 || !strings.Contains(strings.Join(detail.Sign, " "), "1/4") {
		t.Errorf("sign = %q, want a player count", detail.Sign)
	}

	conn.WriteJSON(PlayRequest{Op: OpScoreboard})
	sb := readResult(t, conn, OpScoreboard)
	if sb.Scoreboard["{players}"] != "1" || sb.Scoreboard["{stage}"] != string(domain.StageWaiting) {
		t.Errorf("scoreboard = %+v", sb.Scoreboard)
	}

	conn.WriteJSON(PlayRequest{Op: OpChat, Text: "/home"})
	if resp := readResult(t, conn, OpChat); resp.OK {
		t.Errorf("disallowed command went through")
	}

	conn.WriteJSON(PlayRequest{Op: "fly"})
	if resp := readResult(t, conn, "fly"); resp.Error == "" {
		t.Errorf("unknown op accepted")
	}

	conn.WriteJSON(PlayRequest{Op: OpLeave})
	if resp := readResult(t, conn, OpLeave); !resp.OK {
		t.Fatalf("leave = %+v", resp)
	}
	ts.do(t, "GET", "/api/arenas/classic", "", &detail)
	if len(detail.Players) != 0 {
		t.Fatalf("players after leave = %+v", detail.Players)
	}
}

func TestPlayDisconnectQuits(t *testing.T) {
	ts := newTestServer(t, Options{})
	conn, _, err := ts.dial(t, "/ws/play?token="+ts.token(t, uuid.New(), "bob", false))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.WriteJSON(PlayRequest{Op: OpJoin, Arena: "duos", Team: "blue"})
	if resp := readResult(t, conn, OpJoin); !resp.OK {
		t.Fatalf("join = %+v", resp)
	}
	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var detail ArenaDetail
		ts.do(t, "GET", "/api/arenas/duos", "", &detail)
		if len(detail.Players) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("player still in arena after disconnect")
}

func TestPlayRateLimit(t *testing.T) {
	ts := newTestServer(t, Options{PlayRate: rate.Every(time.Hour), PlayBurst: 1})
	conn, _, err := ts.dial(t, "/ws/play?token="+ts.token(t, uuid.New(), "carol", false))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(PlayRequest{Op: OpScoreboard})
	readResult(t, conn, OpScoreboard)
	conn.WriteJSON(PlayRequest{Op: OpScoreboard})
	if resp := readResult(t, conn, OpScoreboard); resp.Error != errRateLimited.Error() {
		t.Fatalf("second request = %+v, want rate limited", resp)
	}
}

func TestSpectatorStreamFiltersArena(t *testing.T) {
	ts := newTestServer(t, Options{})
	conn, _, err := ts.dial(t, "/ws?arena=classic")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ts.router.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ts.bus.Publish(domain.Event{Type: domain.EventGameStart, Arena: "duos"})
	ts.bus.Publish(domain.Event{Type: domain.EventGameStart, Arena: "classic"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domain.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Arena != "classic" || ev.Type != domain.EventGameStart {
		t.Fatalf("event = %+v, want classic game_start", ev)
	}
}
