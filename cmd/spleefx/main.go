// spleefx - Spleef arena game server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/spleefx/spleefx/internal/api"
	"github.com/spleefx/spleefx/internal/arena"
	"github.com/spleefx/spleefx/internal/auth"
	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/events"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/message"
	"github.com/spleefx/spleefx/internal/signs"
	"github.com/spleefx/spleefx/internal/storage"
	"github.com/spleefx/spleefx/internal/world"
)

var version = "dev"

const defaultConfigPath = "/etc/spleefx/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "arenas":
		cmdArenas(os.Args[2:])
	case "stats":
		cmdStats(os.Args[2:])
	case "leaderboard":
		cmdLeaderboard(os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	case "version":
		fmt.Printf("spleefx %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: spleefx <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                               Start the game server")
	fmt.Println("  arenas                              Show every arena and its stage")
	fmt.Println("  stats [--mode M] <player-id>        Show a player's statistics")
	fmt.Println("  leaderboard [--mode M] [--stat S] [--top N]")
	fmt.Println("                                      Show top players (default: wins, 10)")
	fmt.Println("  token [--admin] [--id UUID] <name>  Mint a player token for the play socket")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/spleefx/config.yml)")
	fmt.Println("  --url <url>        Base URL of the spleefx server (default: derived from config)")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Printf("  %s, %s, %s, %s override the config file; a .env file is read first\n",
		config.EnvConfigPath, config.EnvDatabase, config.EnvJWTSecret, config.EnvNATSURL)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  spleefx serve --config ./config.yml")
	fmt.Println("  spleefx leaderboard --mode spleef --stat blocks_mined")
	fmt.Println("  spleefx token --admin operator")
}

// resolveConfigPath picks the flag, then the environment, then the default
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(config.EnvConfigPath); v != "" {
		return v
	}
	return defaultConfigPath
}

func loadConfig(flagValue string) (*config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}
	cfg, err := config.Load(resolveConfigPath(flagValue))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// cmdServe starts the game server
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("spleefx %s starting...", version)
	log.Printf("Loaded %d arenas across %d modes", len(cfg.Arenas), len(cfg.Modes))

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	log.Printf("Database initialized at %s", cfg.Database.Path)

	bus := events.NewBus()
	recorder := events.NewRecorder(store)
	bus.Subscribe(recorder)
	if cfg.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer pub.Close()
		bus.Subscribe(pub)
		log.Printf("Publishing events to %s under %s.>", cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	}
	board := signs.NewBoard(cfg.Signs, bus)

	sched := host.NewScheduler()
	manager, err := arena.NewManager(cfg, &arena.Services{
		Stats:     store,
		Messages:  message.NewCatalog(cfg.Messages),
		Signs:     board,
		Events:    bus,
		Scheduler: sched,
	}, world.NewStore())
	if err != nil {
		log.Fatalf("Failed to create arenas: %v", err)
	}

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if cfg.Auth.JWTSecret == "" {
		log.Printf("Warning: No JWT secret configured. Players and admins cannot authenticate.")
	}

	router := api.NewRouter(api.Options{
		Store:     store,
		Manager:   manager,
		Scheduler: sched,
		Signs:     board,
		Auth:      authService,
	})
	bus.Subscribe(router.Hub())
	router.StartWebSocketHub()

	if err := sched.Start(cfg.Server.TickInterval); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = sched.Call(ctx, func() {
		for _, e := range manager.All() {
			board.Refresh(e.Status())
		}
	})
	cancel()
	if err != nil {
		log.Printf("Warning: initial sign refresh failed: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		log.Fatalf("HTTP server error: %v", err)
	}

	// Sequential shutdown: stop taking requests, end running games, then stop ticking
	log.Println("Shutting down HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Ending running games...")
	endCtx, endCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = sched.Call(endCtx, func() {
		if err := manager.ForceEndAll(); err != nil {
			log.Printf("Warning: force ending arenas: %v", err)
		}
	})
	endCancel()
	if err != nil {
		log.Printf("Warning: could not end games: %v", err)
	}

	if err := sched.Stop(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	router.Stop()
	recorder.Close()
	log.Println("Shutdown complete")
}

// CLI helper variables
var baseURL = "http://localhost:8080"

// loadCLIConfigFromFlags loads config using pre-parsed flag values
func loadCLIConfigFromFlags(configPath, url string) *config.Config {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		if url != "" {
			baseURL = url
		}
		return nil
	}

	// Derive URL from config, but allow --url flag to override
	if url != "" {
		baseURL = url
	} else {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	}
	return cfg
}

func getJSON(path string, target interface{}) error {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

func cmdArenas(args []string) {
	fs := flag.NewFlagSet("arenas", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	url := fs.String("url", "", "base URL of the spleefx server")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var statuses []struct {
		Key       string `json:"key"`
		Mode      string `json:"mode"`
		Type      string `json:"type"`
		Stage     string `json:"stage"`
		Players   int    `json:"players"`
		Maximum   int    `json:"maximum"`
		Alive     int    `json:"alive"`
		TimeLeft  int    `json:"time_left"`
		Countdown int    `json:"countdown"`
	}
	if err := getJSON("/api/arenas", &statuses); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ARENA\tMODE\tTYPE\tSTAGE\tPLAYERS\tALIVE\tCLOCK")
	fmt.Fprintln(w, "-----\t----\t----\t-----\t-------\t-----\t-----")
	for _, s := range statuses {
		clock := "-"
		switch s.Stage {
		case "ACTIVE":
			clock = fmt.Sprintf("%d:%02d", s.TimeLeft/60, s.TimeLeft%60)
		case "COUNTDOWN":
			clock = fmt.Sprintf("%ds", s.Countdown)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			s.Key, s.Mode, s.Type, s.Stage, s.Players, s.Maximum, s.Alive, clock)
	}
	w.Flush()
}

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	url := fs.String("url", "", "base URL of the spleefx server")
	mode := fs.String("mode", "", "game mode (default: first configured mode)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: spleefx stats [--mode M] <player-id>")
		os.Exit(1)
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid player id: %v\n", err)
		os.Exit(1)
	}

	loadCLIConfigFromFlags(*configPath, *url)

	path := fmt.Sprintf("/api/players/%s/stats", id)
	if *mode != "" {
		path += "?mode=" + neturlEscape(*mode)
	}
	var stats struct {
		Name     string           `json:"name"`
		Mode     string           `json:"mode"`
		Counters map[string]int64 `json:"counters"`
		Coins    int              `json:"coins"`
		Perks    map[string]int   `json:"perks"`
	}
	if err := getJSON(path, &stats); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	name := stats.Name
	if name == "" {
		name = id.String()
	}
	fmt.Printf("%s (%s)\n\n", name, stats.Mode)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, st := range domain.Statistics {
		fmt.Fprintf(w, "%s\t%d\n", st, stats.Counters[string(st)])
	}
	fmt.Fprintf(w, "coins\t%d\n", stats.Coins)
	for perk, n := range stats.Perks {
		fmt.Fprintf(w, "perk %s\t%d\n", perk, n)
	}
	w.Flush()
}

func cmdLeaderboard(args []string) {
	fs := flag.NewFlagSet("leaderboard", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	url := fs.String("url", "", "base URL of the spleefx server")
	mode := fs.String("mode", "", "game mode (default: first configured mode)")
	stat := fs.String("stat", "wins", "statistic to rank by")
	limit := fs.Int("top", 10, "number of top players to show")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	path := fmt.Sprintf("/api/leaderboard?stat=%s&limit=%d", neturlEscape(*stat), *limit)
	if *mode != "" {
		path += "&mode=" + neturlEscape(*mode)
	}
	var response struct {
		Mode    string `json:"mode"`
		Stat    string `json:"stat"`
		Entries []struct {
			Rank  int    `json:"rank"`
			Name  string `json:"name"`
			Value int64  `json:"value"`
		} `json:"entries"`
	}
	if err := getJSON(path, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tPLAYER\t%s\n", strings.ToUpper(response.Stat))
	fmt.Fprintln(w, "----\t------\t-----")
	for _, e := range response.Entries {
		fmt.Fprintf(w, "%d\t%s\t%d\n", e.Rank, e.Name, e.Value)
	}
	w.Flush()
}

// cmdToken mints a JWT for the play socket or the admin routes
func cmdToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	admin := fs.Bool("admin", false, "allow arena management")
	idFlag := fs.String("id", "", "player UUID (default: random)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: spleefx token [--admin] [--id UUID] <name>")
		os.Exit(1)
	}
	name := fs.Arg(0)

	id := uuid.New()
	if *idFlag != "" {
		parsed, err := uuid.Parse(*idFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid player id: %v\n", err)
			os.Exit(1)
		}
		id = parsed
	}

	secret := os.Getenv(config.EnvJWTSecret)
	duration := 24 * time.Hour
	if cfg, err := loadConfig(*configPath); err == nil {
		secret = cfg.Auth.JWTSecret
		duration = cfg.Auth.TokenDuration
	} else if secret == "" {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if secret == "" && interactive {
		fmt.Print("JWT secret: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading secret: %v\n", err)
			os.Exit(1)
		}
		secret = string(raw)
	}

	token, err := auth.NewService(secret, duration).GenerateToken(id, name, *admin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Bare token when piped so it can be captured by scripts
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(token)
		return
	}
	role := "player"
	if *admin {
		role = "admin"
	}
	fmt.Printf("Token for %s %s (%s), valid for %v:\n\n%s\n", role, name, id, duration, token)
}

func neturlEscape(s string) string {
	return url.QueryEscape(s)
}
