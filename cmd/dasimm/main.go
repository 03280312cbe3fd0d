// Package main is the entry point for the dasimm server.
//
// dasimm serves a spreadsheet-backed station inventory: grids over the
// master workbook, a saved inspection subset, report downloads and admin
// uploads, as a JSON HTTP API. Configuration is read from CLI flags, a .env
// file in the data directory, and config.yaml (JWT secret, users, quotas,
// rate limits, file layout).
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/timsamar3/dasimm/internal/server"
	"github.com/timsamar3/dasimm/internal/server/handlers"
	"github.com/timsamar3/dasimm/internal/server/ratelimit"
	"github.com/timsamar3/dasimm/internal/sheetdb"
	"github.com/timsamar3/dasimm/internal/storage"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "dasimm: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080). Use 0.0.0.0:port to listen on all interfaces.")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	hashPassword := flag.String("hash-password", "", "Print the bcrypt hash of this password for config.yaml and exit")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}
	if *hashPassword != "" {
		hash, err := storage.HashPassword(*hashPassword)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop time when running under systemd.
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Drop localhost IPs (not useful in logs).
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}

	// Override with .env file values if not explicitly set via flags
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if !set["http"] {
		if v := env["HTTP"]; v != "" {
			*httpAddr = v
		}
	}
	if !set["log-level"] {
		if v := env["LOG_LEVEL"]; v != "" {
			*logLevel = v
		}
	}

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	// Load config.yaml (creates with defaults if missing)
	serverCfg, err := storage.LoadServerConfig(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", storage.ConfigFile, err)
	}
	if err := bootstrapAdmin(ctx, serverCfg, env["ADMIN_PASSWORD"]); err != nil {
		return err
	}

	codec := sheetdb.XLSX{NumericHints: serverCfg.Schema.NumericHints}
	master, err := sheetdb.NewStore(serverCfg.Path(serverCfg.Files.Data), codec, sheetdb.Options{
		Sequence:     true,
		NumericHints: serverCfg.Schema.NumericHints,
	})
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	savedStore, err := sheetdb.NewStore(serverCfg.Path(serverCfg.Files.Saved), codec, storage.SavedOptions(serverCfg.Schema.DisplayColumns))
	if err != nil {
		return fmt.Errorf("failed to open saved data file: %w", err)
	}
	for _, s := range []*sheetdb.Store{master, savedStore} {
		if err := s.Watch(ctx); err != nil {
			slog.WarnContext(ctx, "Not watching table file", "path", s.Path(), "err", err)
		}
	}

	uploads, err := storage.NewUploadArea(serverCfg.Path(serverCfg.Files.Uploads), serverCfg.Quotas.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("failed to initialize upload area: %w", err)
	}
	userService, err := storage.NewUserService(serverCfg.Users)
	if err != nil {
		return fmt.Errorf("failed to initialize user service: %w", err)
	}
	sessionService := storage.NewSessionService()
	go cleanupSessions(ctx, sessionService, time.Hour)

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	svc := &handlers.Services{
		Stations: storage.NewStationService(master, uploads, serverCfg.Schema.RequiredColumns),
		Saved:    storage.NewSavedService(savedStore, serverCfg.Schema.DisplayColumns),
		User:     userService,
		Session:  sessionService,
	}
	buildVersion, _, _, _ := getBuildInfo()
	cfg := &handlers.Config{
		JWTSecret:      serverCfg.Secret(),
		Version:        buildVersion,
		Quotas:         serverCfg.Quotas,
		Template:       serverCfg.Path(serverCfg.Files.Template),
		DisplayColumns: serverCfg.Schema.DisplayColumns,
	}
	limits := ratelimit.NewConfig(serverCfg.RateLimits)
	defer limits.Close()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(svc, cfg, limits),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "data", master.Path(), "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		// Graceful shutdown
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// bootstrapAdmin makes sure the admin account exists. ADMIN_PASSWORD sets
// its password; without it a first run generates one and logs it once.
func bootstrapAdmin(ctx context.Context, cfg *storage.ServerConfig, password string) error {
	generated := false
	if password == "" && !cfg.HasUser("admin") {
		b := make([]byte, 9)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("failed to generate admin password: %w", err)
		}
		password = hex.EncodeToString(b)
		generated = true
	}
	changed, err := cfg.EnsureAdmin(password)
	if err != nil {
		return fmt.Errorf("failed to set up admin account: %w", err)
	}
	if !changed {
		return nil
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	if generated {
		slog.WarnContext(ctx, "Created admin account; store this password, it is not shown again", "username", "admin", "password", password)
	} else {
		slog.InfoContext(ctx, "Admin password set from ADMIN_PASSWORD")
	}
	return nil
}

func cleanupSessions(ctx context.Context, sessions *storage.SessionService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := sessions.CleanupExpired(); n > 0 {
				slog.InfoContext(ctx, "Cleaned up expired sessions", "count", n)
			}
		}
	}
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("dasimm %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// loadDotEnv reads dataDir/.env. A missing file yields an empty map.
func loadDotEnv(dataDir string) (map[string]string, error) {
	path := filepath.Join(dataDir, ".env")
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return env, nil
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected. This enables seamless
// restarts during development.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
