package config

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultInboundPollInterval = time.Minute

var (
	inboundPollInterval  atomic.Value
	inboundPollListeners []chan time.Duration
	listenersMu          sync.Mutex
)

func init() {
	inboundPollInterval.Store(defaultInboundPollInterval)
}

func SetBetweenTime() {
	cfg := GetConfig()
	setInboundPollInterval(calculateInboundPollInterval(cfg))
}

// CalculateBetweenTime converts a timer into a duration of at least one second.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := CalculateMilliseconds(timer)

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func CalculateMilliseconds(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

func GetInboundPollInterval() time.Duration {
	return inboundPollInterval.Load().(time.Duration)
}

// InboundPollIntervalUpdates delivers the current interval immediately and
// every later change. Slow readers miss intermediate values, never the latest.
func InboundPollIntervalUpdates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	listenersMu.Lock()
	inboundPollListeners = append(inboundPollListeners, ch)
	listenersMu.Unlock()

	ch <- GetInboundPollInterval()
	return ch
}

func setInboundPollInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultInboundPollInterval
	}

	if GetInboundPollInterval() == interval {
		return
	}
	inboundPollInterval.Store(interval)

	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, ch := range inboundPollListeners {
		select {
		case ch <- interval:
		default:
			// drop the stale value so the newest one lands
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- interval:
			default:
			}
		}
	}
}

func calculateInboundPollInterval(cfg Config) time.Duration {
	if cfg.Inbound.PollTimer.IsZero() {
		return defaultInboundPollInterval
	}
	return CalculateBetweenTime(cfg.Inbound.PollTimer)
}
