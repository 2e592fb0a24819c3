package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"campaignready/internal/support"
)

const (
	redisConfigKey     = "campaignready:config:settings"
	redisConfigChannel = "campaignready:config:updates"
	redisOpTimeout     = 5 * time.Second
)

// settingsEnvelope is what nodes exchange over redis. Origin lets a node
// ignore its own broadcasts.
type settingsEnvelope struct {
	Origin   string          `json:"origin"`
	Settings json.RawMessage `json:"settings"`
}

type redisSync struct {
	client *redis.Client
	origin string
	cancel context.CancelFunc
}

var (
	syncMu     sync.Mutex
	activeSync *redisSync
)

// EnableRedisSynchronization shares settings between scanner nodes. The first
// node seeds redis; later nodes adopt the stored settings and every node
// follows updates on the config channel until ctx ends.
func EnableRedisSynchronization(ctx context.Context, client *redis.Client) {
	if client == nil {
		log.Warn("Config synchronization disabled: redis client is nil")
		return
	}

	syncMu.Lock()
	if activeSync != nil {
		syncMu.Unlock()
		return
	}
	syncCtx, cancel := context.WithCancel(ctx)
	rs := &redisSync{client: client, origin: support.NodeID(), cancel: cancel}
	activeSync = rs
	syncMu.Unlock()

	adopted, err := rs.adoptStored(syncCtx)
	if err != nil {
		log.Error("Config sync: failed to load configuration from redis", "error", err)
	}
	if !adopted {
		if err := rs.broadcast(syncCtx, GetConfig()); err != nil {
			log.Error("Config sync: failed to seed redis", "error", err)
		}
	}

	go rs.follow(syncCtx)
}

// DisableRedisSynchronization stops following updates; broadcasts become no-ops.
func DisableRedisSynchronization() {
	syncMu.Lock()
	defer syncMu.Unlock()
	if activeSync != nil {
		activeSync.cancel()
		activeSync = nil
	}
}

func (rs *redisSync) adoptStored(ctx context.Context) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	payload, err := rs.client.Get(opCtx, redisConfigKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, rs.apply(payload, true)
}

func (rs *redisSync) follow(ctx context.Context) {
	pubsub := rs.client.Subscribe(ctx, redisConfigChannel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			log.Error("Config sync: subscription error", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if err := rs.apply([]byte(msg.Payload), false); err != nil {
			log.Error("Config sync: failed to apply remote update", "error", err)
		}
	}
}

// apply layers remote settings over the embedded defaults so nodes with an
// older settings file still get new sections filled in.
func (rs *redisSync) apply(payload []byte, acceptOwn bool) error {
	var env settingsEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("invalid config payload: %w", err)
	}
	if env.Origin == rs.origin && !acceptOwn {
		return nil
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(env.Settings, &cfg); err != nil {
		return fmt.Errorf("invalid config settings: %w", err)
	}
	return applyConfigUpdate(cfg, configUpdateOptions{persistToFile: true, source: "redis"})
}

func (rs *redisSync) broadcast(ctx context.Context, cfg Config) error {
	settings, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(settingsEnvelope{Origin: rs.origin, Settings: settings})
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := rs.client.Set(opCtx, redisConfigKey, payload, 0).Err(); err != nil {
		return err
	}
	return rs.client.Publish(opCtx, redisConfigChannel, payload).Err()
}

// broadcastConfigUpdate shares a locally applied config with the other nodes.
func broadcastConfigUpdate(cfg Config) error {
	syncMu.Lock()
	rs := activeSync
	syncMu.Unlock()

	if rs == nil {
		return nil
	}
	return rs.broadcast(context.Background(), cfg)
}
