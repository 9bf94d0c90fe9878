// Package main provides the panel daemon entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/vlcpanel/internal/api/connect"
	"github.com/osa030/vlcpanel/internal/app/notification"
	"github.com/osa030/vlcpanel/internal/app/panel"
	"github.com/osa030/vlcpanel/internal/app/render"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
	"github.com/osa030/vlcpanel/internal/infra/config"
	"github.com/osa030/vlcpanel/internal/infra/logger"
	"github.com/osa030/vlcpanel/internal/infra/vlc"
)

var (
	app        = kingpin.New("vlcpanel", "Remote control panel for the VLC HTTP interface")
	configPath = app.Flag("config", "Path to config file").Default("config/panel.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	noColor    = app.Flag("no-color", "Disable colored console logs").Bool()

	// list-sinks command
	listSinksCmd = app.Command("list-sinks", "List available render sinks and exit")
)

func init() {
	// start command (default)
	app.Command("start", "Start the panel (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listSinksCmd.FullCommand() {
		printSinks()
		return
	}

	loggerConfig := logger.Config{
		Output:  "stdout",
		Level:   "info",
		NoColor: *noColor,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Panel error: %v", err)
		os.Exit(1)
	}
}

// run executes the main panel logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	sinks, err := render.Build(cfg.Render.EnabledSinks())
	if err != nil {
		return fmt.Errorf("invalid render config: %w", err)
	}

	player, err := vlc.New(vlc.Config{
		BaseURL:  cfg.Player.BaseURL,
		Password: cfg.Player.Password,
		Timeout:  cfg.Player.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create player client: %w", err)
	}

	// Watchers receive every batch after the configured sinks
	hub := notification.NewManager(notification.DefaultBuffer)
	renderSinks := append(lo.Map(sinks, func(p render.Plugin, _ int) render.Sink { return p }), hub)

	queue, _ := snapshot.ParseQueue(cfg.Poll.InitialQueue)
	mgr := panel.New(panel.Config{
		Player:       player,
		Sinks:        renderSinks,
		InitialQueue: queue,
		Interval:     cfg.Poll.Interval(),
		RetryDelay:   cfg.Poll.RetryDelay(),
		LockTimeout:  cfg.Poll.LockTimeout(),
		Extensions:   cfg.Browse.Extensions,
		MaxErrors:    cfg.Poll.MaxErrors,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zlog.Info().Msgf("Polling %s at %s", queue, player.BaseURL())
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start panel: %w", err)
	}
	defer mgr.Close()

	service := apiconnect.NewPanelService(mgr, hub)
	path, handler := apiconnect.NewHandler(
		service,
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(cfg.Server.Token)),
	)

	mux := http.NewServeMux()
	mux.Handle(path, handler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// End watch streams so Shutdown does not wait on them
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Panel stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return nil
}

// printSinks prints available render sinks.
func printSinks() {
	registry := render.GetRegistered()
	names := lo.Keys(registry)
	slices.Sort(names)

	fmt.Println("Available Render Sinks:")
	for _, name := range names {
		s := registry[name]()
		fmt.Printf("  %-20s - %s\n", s.Name(), s.Description())
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
