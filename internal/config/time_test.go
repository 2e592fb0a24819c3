package config

import (
	"testing"
	"time"
)

func TestCalculateMilliseconds(t *testing.T) {
	timer := Timer{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}
	want := uint64((24*60*60 + 2*60*60 + 3*60 + 4) * 1000)

	if got := CalculateMilliseconds(timer); got != want {
		t.Fatalf("CalculateMilliseconds returned %d, want %d", got, want)
	}
}

func TestCalculateBetweenTime(t *testing.T) {
	t.Run("enforces minimum interval", func(t *testing.T) {
		if got := CalculateBetweenTime(Timer{}); got != time.Second {
			t.Fatalf("CalculateBetweenTime returned %s, want 1s", got)
		}
	})

	t.Run("returns configured duration", func(t *testing.T) {
		if got := CalculateBetweenTime(Timer{Minutes: 1, Seconds: 30}); got != 90*time.Second {
			t.Fatalf("CalculateBetweenTime returned %s, want 1m30s", got)
		}
	})
}

func TestSetBetweenTime(t *testing.T) {
	origCfg := GetConfig()
	origInterval := GetInboundPollInterval()
	origListeners := inboundPollListeners

	t.Cleanup(func() {
		configValue.Store(origCfg)
		inboundPollInterval.Store(origInterval)
		inboundPollListeners = origListeners
	})

	inboundPollListeners = nil

	testCfg := Config{}
	testCfg.Inbound.PollTimer = Timer{Seconds: 45}
	configValue.Store(testCfg)
	SetBetweenTime()

	if got := GetInboundPollInterval(); got != 45*time.Second {
		t.Fatalf("GetInboundPollInterval returned %s, want 45s", got)
	}

	configValue.Store(Config{})
	SetBetweenTime()

	if got := GetInboundPollInterval(); got != defaultInboundPollInterval {
		t.Fatalf("GetInboundPollInterval returned %s, want default %s", got, defaultInboundPollInterval)
	}
}

func TestInboundPollIntervalUpdates(t *testing.T) {
	origInterval := GetInboundPollInterval()
	origListeners := inboundPollListeners

	t.Cleanup(func() {
		inboundPollInterval.Store(origInterval)
		inboundPollListeners = origListeners
	})

	inboundPollInterval.Store(time.Minute)
	inboundPollListeners = nil

	ch := InboundPollIntervalUpdates()
	if first := <-ch; first != time.Minute {
		t.Fatalf("initial update = %s, want 1m", first)
	}

	setInboundPollInterval(5 * time.Second)

	select {
	case next := <-ch:
		if next != 5*time.Second {
			t.Fatalf("next update = %s, want 5s", next)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for interval update")
	}

	setInboundPollInterval(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("unexpected update when interval unchanged")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInboundPollIntervalUpdatesKeepsLatest(t *testing.T) {
	origInterval := GetInboundPollInterval()
	origListeners := inboundPollListeners

	t.Cleanup(func() {
		inboundPollInterval.Store(origInterval)
		inboundPollListeners = origListeners
	})

	inboundPollInterval.Store(time.Minute)
	inboundPollListeners = nil

	ch := InboundPollIntervalUpdates()
	setInboundPollInterval(10 * time.Second)
	setInboundPollInterval(20 * time.Second)

	if got := <-ch; got != 20*time.Second {
		t.Fatalf("buffered update = %s, want 20s", got)
	}
}
