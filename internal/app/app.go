package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"campaignready/internal/app/bootstrap"
	"campaignready/internal/app/server"
	"campaignready/internal/config"
	"campaignready/internal/database"
	"campaignready/internal/events"
	"campaignready/internal/support"
)

const defaultPort = 8787

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	portFlag := flag.Int("port", defaultPort, "Port for API server")
	productionFlag := flag.Bool("production", false, "Run in production mode")
	logLevelFlag := flag.String("log-level", support.GetEnv("LOG_LEVEL", "debug"), "Log level (debug, info, warn, error)")
	flag.Parse()

	log.SetLevel(parseLevel(*logLevelFlag))
	config.SetProductionMode(*productionFlag)

	port := resolvePort("PORT", "BACKEND_PORT", *portFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.Warn("error releasing resources", "error", err)
		}
	}()

	if components.Poller != nil {
		go components.Poller.Run(ctx)
	}

	go components.Publisher.Subscribe(ctx, func(event events.ScanEvent) {
		log.Debug("Scan event from peer", "type", event.Type, "scan_id", event.ScanID, "origin", event.Origin)
	})

	opts := []server.Option{
		server.WithGatherer(components.Registry),
	}
	if cfg := config.GetConfig(); cfg.Inbound.Enabled {
		opts = append(opts, server.WithInboundDomain(cfg.Inbound.Domain))
	}
	if database.Enabled() {
		opts = append(opts,
			server.WithHistory(database.RecentScansByDomain),
			server.WithVerdictCounts(database.VerdictCounts),
		)
	}

	if err := server.New(components.Scans, components.Tokens, opts...).ListenAndServe(ctx, port); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func parseLevel(raw string) log.Level {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		log.Warn("invalid log level, using debug", "value", raw)
		return log.DebugLevel
	}
	return level
}

func resolvePort(primaryEnv, legacyEnv string, fallback int) int {
	if port := readPort(primaryEnv); port != 0 {
		return port
	}
	if port := readPort(legacyEnv); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
