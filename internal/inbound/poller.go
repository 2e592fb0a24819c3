package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaignready/internal/config"
	"campaignready/internal/domain"
	"campaignready/internal/events"
	"campaignready/internal/metrics"
	"campaignready/internal/store"
	"campaignready/internal/support"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/redis/go-redis/v9"
)

const (
	pollerLockKey = "campaignready:leader:inbound_poller"

	resultApplied     = "applied"
	resultUnmatched   = "unmatched"
	resultUnknownScan = "unknown_scan"
	resultError       = "error"
)

// Regenerator rebuilds the stored report after the scan document changed.
type Regenerator interface {
	Regenerate(ctx context.Context, scanID string) (domain.Report, error)
}

// Poller applies verification mail to the scans it names.
type Poller struct {
	mailbox       Mailbox
	store         *store.ScanStore
	regen         Regenerator
	inboundDomain string

	metrics   *metrics.Metrics
	publisher *events.Publisher
	redis     *redis.Client
}

type PollerOption func(*Poller)

func WithMetrics(m *metrics.Metrics) PollerOption {
	return func(p *Poller) { p.metrics = m }
}

func WithPublisher(pub *events.Publisher) PollerOption {
	return func(p *Poller) { p.publisher = pub }
}

// WithLeaderElection restricts polling to one node of a redis-connected cluster.
func WithLeaderElection(client *redis.Client) PollerOption {
	return func(p *Poller) { p.redis = client }
}

func NewPoller(mb Mailbox, st *store.ScanStore, regen Regenerator, inboundDomain string, opts ...PollerOption) *Poller {
	p := &Poller{
		mailbox:       mb,
		store:         st,
		regen:         regen,
		inboundDomain: strings.ToLower(strings.TrimSpace(inboundDomain)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled, following live changes of the configured
// poll interval.
func (p *Poller) Run(ctx context.Context) {
	updates := config.InboundPollIntervalUpdates()

	err := support.RunWithLeader(ctx, p.redis, pollerLockKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		p.loop(leaderCtx, updates)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Inbound poller stopped", "error", err)
	}
}

func (p *Poller) loop(ctx context.Context, updates <-chan time.Duration) {
	interval := config.GetInboundPollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("Inbound poller started", "domain", p.inboundDomain, "interval", interval)
	p.pollAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("Inbound poller stopped")
			return
		case <-ticker.C:
			p.pollAndLog(ctx)
		case next := <-updates:
			if next <= 0 || next == interval {
				continue
			}
			interval = next
			ticker.Reset(interval)
			log.Debug("Inbound poll interval changed", "interval", interval)
		}
	}
}

func (p *Poller) pollAndLog(ctx context.Context) {
	applied, err := p.PollOnce(ctx)
	if err != nil {
		log.Error("Inbound poll failed", "error", err)
		return
	}
	if applied > 0 {
		log.Info("Inbound verification mail applied", "count", applied)
	}
}

// PollOnce handles every unseen message and returns how many updated a scan.
// Messages are marked seen once handled; messages that failed on our side
// stay unseen and are retried on the next poll.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	messages, err := p.mailbox.FetchUnseen(ctx)
	if err != nil && len(messages) == 0 {
		return 0, err
	}

	var (
		applied int
		seen    []imap.UID
		errs    []error
	)
	if err != nil {
		errs = append(errs, err)
	}

	for _, msg := range messages {
		result, handleErr := p.handle(ctx, msg)
		p.metrics.IncrementInbound(result)

		if handleErr != nil {
			errs = append(errs, fmt.Errorf("message %d: %w", msg.UID, handleErr))
			continue
		}
		if result == resultApplied {
			applied++
		}
		seen = append(seen, msg.UID)
	}

	if err := p.mailbox.MarkSeen(ctx, seen); err != nil {
		errs = append(errs, err)
	}
	return applied, errors.Join(errs...)
}

func (p *Poller) handle(ctx context.Context, msg Message) (string, error) {
	scanID, ok := ExtractScanToken(msg.Header, p.inboundDomain)
	if !ok {
		log.Debug("Inbound message without verify address", "uid", msg.UID)
		return resultUnmatched, nil
	}

	var doc domain.ScanDocument
	found, err := p.store.Load(scanID, &doc)
	if err != nil {
		return resultError, err
	}
	if !found {
		log.Warn("Inbound message for unknown scan", "scan_id", scanID)
		return resultUnknownScan, nil
	}

	res := ParseAuthenticationResults(strings.Join(msg.Header["Authentication-Results"], "; "))
	if !res.Empty() {
		ev := ToEmailEvidence(res, support.EmailDomain(doc.Inputs.SendingEmail))
		if _, err := p.store.Update(scanID, map[string]any{"email_scan": ev}); err != nil {
			return resultError, err
		}
	}

	fields := map[string]any{
		"from":       msg.Header.Get("From"),
		"message_id": msg.Header.Get("Message-Id"),
		"auth":       res,
	}
	if err := p.store.AppendEvent(scanID, store.NewEvent(events.TypeInboundReceived, fields)); err != nil {
		return resultError, err
	}

	rep, err := p.regen.Regenerate(ctx, scanID)
	if err != nil {
		return resultError, err
	}

	if err := p.publisher.Publish(ctx, events.ScanEvent{
		Type:    events.TypeInboundReceived,
		ScanID:  scanID,
		Verdict: string(rep.Verdict),
	}); err != nil {
		log.Warn("Could not publish inbound event", "scan_id", scanID, "error", err)
	}

	log.Info("Verification mail received", "scan_id", scanID, "verdict", rep.Verdict)
	return resultApplied, nil
}
