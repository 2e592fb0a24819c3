package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type Config struct {
	Sampler struct {
		NoCacheSamples int    `json:"no_cache_samples"`
		CacheSamples   int    `json:"cache_samples"`
		TimeoutMs      uint32 `json:"timeout_ms"`
		UserAgent      string `json:"user_agent"`
	} `json:"sampler"`

	Store struct {
		Dir string `json:"dir"`
	} `json:"store"`

	Browser struct {
		Enabled             bool   `json:"enabled"`
		TimeoutMs           uint32 `json:"timeout_ms"`
		ThirdPartyThreshold int    `json:"third_party_threshold"`
	} `json:"browser"`

	Inbound InboundConfig `json:"inbound"`

	Geo struct {
		Enabled bool   `json:"enabled"`
		ASNDB   string `json:"asn_db"`
		CityDB  string `json:"city_db"`
	} `json:"geo"`

	ScannerRegion    string   `json:"scanner_region"`
	WebsiteBlacklist []string `json:"website_blacklist"`
}

// InboundConfig names the env variables holding IMAP credentials; secrets
// never live in the settings file.
type InboundConfig struct {
	Enabled     bool   `json:"enabled"`
	Domain      string `json:"domain"`
	AddressEnv  string `json:"imap_address_env"`
	UsernameEnv string `json:"imap_username_env"`
	PasswordEnv string `json:"imap_password_env"`
	Mailbox     string `json:"mailbox"`
	PollTimer   Timer  `json:"poll_timer"`
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

var (
	//go:embed default_settings.json
	defaultConfig []byte

	settingsFilePath = filepath.Join("data", "settings.json")

	configValue atomic.Value
	configMu    sync.Mutex

	InProductionMode bool
)

func init() {
	configValue.Store(Config{})
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		log.Error("Error unmarshalling embedded default settings", "error", err)
	}
	return cfg
}

func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration", "path", settingsFilePath)

			if err := os.MkdirAll(filepath.Dir(settingsFilePath), 0o755); err != nil {
				log.Error("Error creating directory for settings file", "error", err)
				return
			}
			if err := os.WriteFile(settingsFilePath, defaultConfig, 0o644); err != nil {
				log.Error("Error writing default settings file", "error", err)
				return
			}

			data = defaultConfig
		} else {
			log.Error("Error reading settings file", "error", err)
			return
		}
	}

	newConfig := DefaultConfig()
	if err := json.Unmarshal(data, &newConfig); err != nil {
		log.Error("Error unmarshalling settings file", "error", err)
		return
	}

	if err := applyConfigUpdate(newConfig, configUpdateOptions{source: "file"}); err != nil {
		log.Error("Error applying configuration from settings file", "error", err)
		return
	}

	log.Debug("Settings file loaded successfully")
}

func SetConfig(newConfig Config) {
	if err := applyConfigUpdate(newConfig, configUpdateOptions{persistToFile: true, broadcast: true, source: "local"}); err != nil {
		log.Error("Error applying configuration update", "error", err)
		return
	}

	log.Debug("Configuration updated and written to file successfully")
}

type configUpdateOptions struct {
	persistToFile bool
	broadcast     bool
	source        string
}

func applyConfigUpdate(newConfig Config, opts configUpdateOptions) error {
	configMu.Lock()
	defer configMu.Unlock()

	newConfig.WebsiteBlacklist = NormalizeWebsiteBlacklist(newConfig.WebsiteBlacklist)
	configValue.Store(newConfig)
	updateWebsiteBlocklist(newConfig.WebsiteBlacklist)
	SetBetweenTime()

	var errs []error

	if opts.persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			log.Error("Error marshalling new configuration", "error", err)
			errs = append(errs, err)
		} else if err := os.WriteFile(settingsFilePath, data, 0o644); err != nil {
			log.Error("Error writing new configuration to file", "error", err)
			errs = append(errs, err)
		}
	}

	if opts.broadcast {
		if err := broadcastConfigUpdate(newConfig); err != nil {
			log.Error("Error broadcasting configuration update", "error", err)
			errs = append(errs, err)
		}
	}

	if opts.source != "" {
		log.Debug("Configuration applied", "source", opts.source)
	} else {
		log.Debug("Configuration applied")
	}

	return errors.Join(errs...)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

func SetProductionMode(productionMode bool) {
	InProductionMode = productionMode
}

// SamplerTimeout converts the configured per-probe timeout, falling back to 15s.
func (c Config) SamplerTimeout() time.Duration {
	if c.Sampler.TimeoutMs == 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Sampler.TimeoutMs) * time.Millisecond
}

func (c Config) BrowserTimeout() time.Duration {
	if c.Browser.TimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Browser.TimeoutMs) * time.Millisecond
}

// StoreDir returns the scan store directory, defaulting to data/scans.
func (c Config) StoreDir() string {
	if c.Store.Dir == "" {
		return filepath.Join("data", "scans")
	}
	return c.Store.Dir
}
