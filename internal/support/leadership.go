package support

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL = 45 * time.Second
	leaderRetryDelay     = time.Second
	leaderOpTimeout      = 5 * time.Second
)

var (
	ErrLeadershipLost = errors.New("support: leadership lost")

	leaderCounter atomic.Uint64

	// Both scripts only touch the key while this node still owns it.
	renewIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	deleteIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// LeaderLock is a redis key owned by at most one node at a time.
type LeaderLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

func NewLeaderLock(client *redis.Client, key string, ttl time.Duration) *LeaderLock {
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}
	return &LeaderLock{client: client, key: key, owner: generateLeaderID(), ttl: ttl}
}

func (l *LeaderLock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
}

// Renew extends the lock and returns ErrLeadershipLost once another node owns it.
func (l *LeaderLock) Renew(ctx context.Context) error {
	res, err := renewIfOwner.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrLeadershipLost
	}
	return nil
}

func (l *LeaderLock) Release(ctx context.Context) error {
	err := deleteIfOwner.Run(ctx, l.client, []string{l.key}, l.owner).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// hold runs fn while renewing the lock every third of its ttl. fn's context
// is cancelled as soon as a renewal fails.
func (l *LeaderLock) hold(ctx context.Context, fn func(context.Context)) {
	leaderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(leaderCtx)
	}()

	ticker := time.NewTicker(max(l.ttl/3, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-done:
			l.release()
			return
		case <-ticker.C:
			renewCtx, cancelRenew := context.WithTimeout(context.Background(), leaderOpTimeout)
			err := l.Renew(renewCtx)
			cancelRenew()
			if err != nil {
				log.Warn("leader lock: renewal failed", "key", l.key, "error", err)
				cancel()
				<-done
				return
			}
		}
	}
}

func (l *LeaderLock) release() {
	ctx, cancel := context.WithTimeout(context.Background(), leaderOpTimeout)
	defer cancel()
	if err := l.Release(ctx); err != nil {
		log.Warn("leader lock: release failed", "key", l.key, "error", err)
	}
}

// RunWithLeader runs fn on whichever node holds the lock at key, handing over
// to another node when the holder goes away. Without a redis client fn runs
// directly.
func RunWithLeader(ctx context.Context, client *redis.Client, key string, ttl time.Duration, fn func(context.Context)) error {
	if fn == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if client == nil {
		log.Debug("leader lock: no redis client, running locally", "key", key)
		fn(ctx)
		return ctx.Err()
	}

	lock := NewLeaderLock(client, key, ttl)
	for {
		acquired, err := lock.TryAcquire(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			log.Warn("leader lock: failed to acquire", "key", key, "error", err)
		case acquired:
			log.Debug("leader lock: acquired", "key", key)
			lock.hold(ctx, fn)
			log.Debug("leader lock: released", "key", key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(leaderRetryDelay):
		}
	}
}

func generateLeaderID() string {
	return fmt.Sprintf("%s-%d-%d", NodeID(), time.Now().UnixNano(), leaderCounter.Add(1))
}
