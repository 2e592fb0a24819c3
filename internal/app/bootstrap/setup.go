package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"

	"campaignready/internal/auth"
	"campaignready/internal/browserprobe"
	"campaignready/internal/config"
	"campaignready/internal/database"
	"campaignready/internal/events"
	"campaignready/internal/geo"
	"campaignready/internal/inbound"
	"campaignready/internal/metrics"
	"campaignready/internal/sampler"
	"campaignready/internal/scan"
	"campaignready/internal/store"
	"campaignready/internal/support"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Components is everything the API and the background routines share.
type Components struct {
	Scans     *scan.Service
	Tokens    *auth.TokenService
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Publisher *events.Publisher
	Poller    *inbound.Poller
	Redis     *redis.Client

	closers []func() error
}

// Setup loads settings and wires the optional backends. Redis and the
// database are only used when REDIS_ENABLED / DATABASE_ENABLED are set.
func Setup(ctx context.Context) (*Components, error) {
	config.ReadSettings()
	cfg := config.GetConfig()

	c := &Components{Registry: prometheus.NewRegistry()}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.New(c.Registry)

	if support.GetEnvBool("REDIS_ENABLED", false) {
		client, err := support.GetRedisClient()
		if err != nil {
			return nil, fmt.Errorf("failed to get redis client: %w", err)
		}
		c.Redis = client
		c.closers = append(c.closers, support.CloseRedisClient)
		config.EnableRedisSynchronization(ctx, client)
	}
	c.Publisher = events.NewPublisher(c.Redis)

	tokens, err := setupTokens()
	if err != nil {
		return nil, err
	}
	c.Tokens = tokens

	st, err := store.Open(cfg.StoreDir())
	if err != nil {
		return nil, err
	}
	log.Info("Scan store ready", "dir", st.Dir())

	smp := sampler.New(sampler.WithUserAgent(cfg.Sampler.UserAgent))
	opts := []scan.Option{
		scan.WithMetrics(c.Metrics),
		scan.WithPublisher(c.Publisher),
	}

	if support.GetEnvBool("DATABASE_ENABLED", false) {
		if _, err := database.SetupDB(); err != nil {
			return nil, fmt.Errorf("failed to set up database: %w", err)
		}
		c.closers = append(c.closers, database.Close)
		opts = append(opts, scan.WithLedger(database.RecordScan))
	}

	if cfg.Browser.Enabled {
		probe := browserprobe.New(cfg.BrowserTimeout(), cfg.Browser.ThirdPartyThreshold)
		c.closers = append(c.closers, probe.Close)
		opts = append(opts, scan.WithBrowserProbe(probe))
		log.Info("Browser probe enabled", "timeout", cfg.BrowserTimeout())
	}

	if cfg.Geo.Enabled {
		downloader := geo.NewDownloader(support.GetEnv("GEOLITE_LICENSE_KEY", ""))
		if _, err := downloader.EnsureEditions(ctx,
			geo.Edition{ID: geo.EditionCity, Path: cfg.Geo.CityDB},
			geo.Edition{ID: geo.EditionASN, Path: cfg.Geo.ASNDB},
		); err != nil {
			log.Warn("GeoLite download skipped", "error", err)
		}

		resolver, err := geo.Open(cfg.Geo.CityDB, cfg.Geo.ASNDB)
		if err != nil {
			log.Warn("GeoLite databases incomplete", "error", err)
		}
		if resolver != nil {
			c.closers = append(c.closers, resolver.Close)
			opts = append(opts, scan.WithGeoResolver(resolver))
		}
	}

	c.Scans = scan.NewService(st, smp, opts...)

	if cfg.Inbound.Enabled {
		poller, err := setupPoller(c, st, cfg.Inbound)
		if err != nil {
			log.Warn("Inbound verification disabled", "error", err)
		} else {
			c.Poller = poller
		}
	}

	return c, nil
}

// Close releases resources in reverse setup order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

func setupTokens() (*auth.TokenService, error) {
	tokens, err := auth.DefaultTokenService()
	if err == nil {
		return tokens, nil
	}
	if !errors.Is(err, auth.ErrMissingSecret) || config.InProductionMode {
		return nil, err
	}

	// Tokens from an ephemeral secret stop validating after a restart.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate ephemeral token secret: %w", err)
	}
	log.Warn("REPORT_TOKEN_SECRET not set, using an ephemeral secret")
	return auth.NewTokenService(hex.EncodeToString(secret))
}

func setupPoller(c *Components, st *store.ScanStore, cfg config.InboundConfig) (*inbound.Poller, error) {
	address := support.GetEnv(cfg.AddressEnv, "")
	username := support.GetEnv(cfg.UsernameEnv, "")
	password := support.GetEnv(cfg.PasswordEnv, "")
	if address == "" || username == "" || password == "" {
		return nil, fmt.Errorf("imap credentials missing (%s, %s, %s)", cfg.AddressEnv, cfg.UsernameEnv, cfg.PasswordEnv)
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "993")
	}
	if cfg.Domain == "" {
		return nil, errors.New("inbound domain not configured")
	}

	mailbox := inbound.NewIMAPMailbox(address, username, password, cfg.Mailbox)
	return inbound.NewPoller(mailbox, st, c.Scans, cfg.Domain,
		inbound.WithMetrics(c.Metrics),
		inbound.WithPublisher(c.Publisher),
		inbound.WithLeaderElection(c.Redis),
	), nil
}
