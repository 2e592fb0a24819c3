package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"campaignready/internal/support"
)

const (
	scanEventChannel        = "campaignready:scan:events"
	scanEventPublishTimeout = 5 * time.Second
	subscribeBackoff        = time.Second

	TypeScanCreated     = "scan_created"
	TypeWebsiteSampled  = "website_sampled"
	TypeReportGenerated = "report_generated"
	TypeInboundReceived = "inbound_received"
)

// ScanEvent is the cross-node notification for one step of a scan.
type ScanEvent struct {
	Type    string         `json:"type"`
	Origin  string         `json:"origin"`
	ScanID  string         `json:"scan_id"`
	At      time.Time      `json:"at"`
	Verdict string         `json:"verdict,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Publisher fans scan events out over redis. A nil Publisher or one without
// a client drops events silently, which is the single-node setup.
type Publisher struct {
	client *redis.Client
	origin string
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client, origin: support.NodeID()}
}

func (p *Publisher) Publish(ctx context.Context, event ScanEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	if event.Type == "" {
		return errors.New("events: type is required")
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	event.Origin = p.origin

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", event.Type, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithTimeout(ctx, scanEventPublishTimeout)
	defer cancel()

	if err := p.client.Publish(opCtx, scanEventChannel, payload).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe delivers events published by other nodes until ctx is done.
func (p *Publisher) Subscribe(ctx context.Context, handle func(ScanEvent)) {
	if p == nil || p.client == nil || handle == nil {
		return
	}

	pubsub := p.client.Subscribe(ctx, scanEventChannel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) || ctx.Err() != nil {
				return
			}
			log.Error("Scan events: subscription error", "error", err)
			time.Sleep(subscribeBackoff)
			continue
		}

		if event, ok := p.decode(msg.Payload); ok {
			handle(event)
		}
	}
}

// decode drops malformed payloads and events this node published itself.
func (p *Publisher) decode(payload string) (ScanEvent, bool) {
	var event ScanEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Error("Scan events: invalid payload", "error", err)
		return ScanEvent{}, false
	}
	if event.Origin == p.origin || event.Type == "" {
		return ScanEvent{}, false
	}
	return event, true
}
