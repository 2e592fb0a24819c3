package scan

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"campaignready/internal/browserprobe"
	"campaignready/internal/config"
	"campaignready/internal/database"
	"campaignready/internal/domain"
	"campaignready/internal/events"
	"campaignready/internal/metrics"
	"campaignready/internal/report"
	"campaignready/internal/store"
	"campaignready/internal/support"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	reportArtifact = "report.json"

	defaultSampleCount = 3
	defaultTimezone    = "Europe/Amsterdam"
)

// scanIDPattern matches generated uuids as well as ids taken from verify+ addresses.
var scanIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,127}$`)

var (
	ErrInvalidRequest = errors.New("invalid scan request")
	ErrBlockedTarget  = errors.New("target website is blocked")
	ErrNotFound       = store.ErrNotFound
)

// Request is the input of a new scan. Hostname is accepted in place of
// WebsiteURL and is prefixed with https:// when it has no scheme.
type Request struct {
	WebsiteURL   string                `json:"website_url"`
	Hostname     string                `json:"hostname"`
	SendingEmail string                `json:"sending_email"`
	ContactEmail string                `json:"contact_email"`
	SendWindow   *domain.SendWindow    `json:"send_window,omitempty"`
	EmailScan    *domain.EmailEvidence `json:"email_scan,omitempty"`
	Tenant       *domain.Tenant        `json:"tenant,omitempty"`
}

type WebsiteSampler interface {
	Sample(ctx context.Context, rawURL string, noCacheCount, cacheCount int, timeout time.Duration) domain.WebsiteEvidence
}

type BrowserCollector interface {
	Collect(ctx context.Context, pageURL string) (browserprobe.Result, error)
}

type OriginResolver interface {
	Lookup(ctx context.Context, host string) (domain.Origin, bool)
}

// LedgerFunc persists the flattened result of a scored scan.
type LedgerFunc func(ctx context.Context, rec domain.ScanRecord) error

// Service runs the evidence-to-verdict pipeline and owns the scan store.
type Service struct {
	store   *store.ScanStore
	sampler WebsiteSampler

	browser   BrowserCollector
	geo       OriginResolver
	publisher *events.Publisher
	metrics   *metrics.Metrics
	ledger    LedgerFunc

	now       func() time.Time
	newID     func() string
	isBlocked func(string) bool
	config    func() config.Config
}

type Option func(*Service)

func WithBrowserProbe(b BrowserCollector) Option {
	return func(s *Service) { s.browser = b }
}

func WithGeoResolver(r OriginResolver) Option {
	return func(s *Service) { s.geo = r }
}

func WithPublisher(p *events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLedger(fn LedgerFunc) Option {
	return func(s *Service) { s.ledger = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithBlocklist(isBlocked func(string) bool) Option {
	return func(s *Service) {
		if isBlocked != nil {
			s.isBlocked = isBlocked
		}
	}
}

// WithConfig replaces the live configuration source.
func WithConfig(fn func() config.Config) Option {
	return func(s *Service) {
		if fn != nil {
			s.config = fn
		}
	}
}

func NewService(st *store.ScanStore, smp WebsiteSampler, opts ...Option) *Service {
	s := &Service{
		store:     st,
		sampler:   smp,
		now:       time.Now,
		newID:     uuid.NewString,
		isBlocked: config.IsWebsiteBlocked,
		config:    config.GetConfig,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Store() *store.ScanStore { return s.store }

// Create persists a new scan, collects website evidence and derives the first report.
// Website failures never fail the scan; they end up as failed samples.
func (s *Service) Create(ctx context.Context, req Request) (domain.ScanDocument, domain.Report, error) {
	start := s.now()

	websiteURL, err := NormalizeWebsiteURL(firstNonEmpty(req.WebsiteURL, req.Hostname))
	if err != nil {
		return domain.ScanDocument{}, domain.Report{}, err
	}
	if s.isBlocked(websiteURL) {
		return domain.ScanDocument{}, domain.Report{}, fmt.Errorf("%w: %s", ErrBlockedTarget, support.HostFromURL(websiteURL))
	}

	sendingEmail, err := normalizeEmail(req.SendingEmail, "sending_email")
	if err != nil {
		return domain.ScanDocument{}, domain.Report{}, err
	}
	contactEmail, err := normalizeEmail(req.ContactEmail, "contact_email")
	if err != nil {
		return domain.ScanDocument{}, domain.Report{}, err
	}

	cfg := s.config()
	inputs := domain.ScanInputs{
		WebsiteURL:   websiteURL,
		SendingEmail: sendingEmail,
		ContactEmail: contactEmail,
		SendWindow:   domain.SendWindow{Timezone: defaultTimezone},
	}
	if req.SendWindow != nil {
		inputs.SendWindow = *req.SendWindow
	}

	doc := domain.NewScanDocument(s.newID(), start, inputs, cfg.ScannerRegion)
	doc.Tenant = req.Tenant
	if req.EmailScan != nil {
		doc.EmailScan = *req.EmailScan
	}

	if err := s.store.Save(doc.ScanID, doc); err != nil {
		return domain.ScanDocument{}, domain.Report{}, err
	}
	s.index(doc)
	s.event(ctx, doc.ScanID, events.TypeScanCreated, "", map[string]any{"website_url": websiteURL})

	website := s.collectWebsite(ctx, websiteURL, cfg)
	doc.WebsiteScan = &website
	doc.Meta.RuntimeMs = s.now().Sub(start).Milliseconds()

	s.event(ctx, doc.ScanID, events.TypeWebsiteSampled, "", map[string]any{
		"samples":   len(website.Aggregates.HTTP.Samples),
		"stability": website.Aggregates.Stability,
	})

	rep, err := s.finish(ctx, &doc)
	if err != nil {
		return doc, rep, err
	}

	s.metrics.IncrementScan(string(rep.Verdict))
	s.metrics.ObserveScanDuration(s.now().Sub(start))
	log.Info("Scan completed", "scan_id", doc.ScanID, "host", support.HostFromURL(websiteURL),
		"verdict", rep.Verdict, "runtime_ms", doc.Meta.RuntimeMs)
	return doc, rep, nil
}

// Regenerate re-derives the report from the stored document, e.g. after
// inbound verification mail patched the email evidence.
func (s *Service) Regenerate(ctx context.Context, scanID string) (domain.Report, error) {
	doc, err := s.Document(scanID)
	if err != nil {
		return domain.Report{}, err
	}
	return s.finish(ctx, &doc)
}

// Report returns the stored report, deriving it when only the document exists.
func (s *Service) Report(ctx context.Context, scanID string) (domain.Report, error) {
	if !validScanID(scanID) {
		return domain.Report{}, fmt.Errorf("%w: %s", ErrNotFound, scanID)
	}
	var rep domain.Report
	found, err := s.store.ReadArtifact(scanID, reportArtifact, &rep)
	if err != nil {
		return domain.Report{}, err
	}
	if found {
		return rep, nil
	}
	return s.Regenerate(ctx, scanID)
}

func (s *Service) Document(scanID string) (domain.ScanDocument, error) {
	if !validScanID(scanID) {
		return domain.ScanDocument{}, fmt.Errorf("%w: %s", ErrNotFound, scanID)
	}
	var doc domain.ScanDocument
	found, err := s.store.Load(scanID, &doc)
	if err != nil {
		return domain.ScanDocument{}, err
	}
	if !found {
		return domain.ScanDocument{}, fmt.Errorf("%w: %s", ErrNotFound, scanID)
	}
	return doc, nil
}

func (s *Service) FindByEmail(email string) []string {
	return s.store.FindByEmail(strings.TrimSpace(email))
}

// FindByDomain matches on the registrable domain, so subdomains share results.
func (s *Service) FindByDomain(host string) []string {
	return s.store.FindByDomain(support.RegistrableDomain(host))
}

// collectWebsite samples the target and then runs the browser probe, so the
// target never sees overlapping requests from one scan. The geo lookup only
// touches DNS and runs alongside.
func (s *Service) collectWebsite(ctx context.Context, websiteURL string, cfg config.Config) domain.WebsiteEvidence {
	noCache := sampleCount(cfg.Sampler.NoCacheSamples, defaultSampleCount)
	cached := sampleCount(cfg.Sampler.CacheSamples, defaultSampleCount)

	var (
		evidence domain.WebsiteEvidence
		probe    *browserprobe.Result
		origin   *domain.Origin
		g        errgroup.Group
	)

	g.Go(func() error {
		evidence = s.sampler.Sample(ctx, websiteURL, noCache, cached, cfg.SamplerTimeout())
		if s.browser == nil {
			return nil
		}
		res, err := s.browser.Collect(ctx, websiteURL)
		if err != nil {
			log.Warn("Browser probe failed, keeping HTTP-only evidence", "url", websiteURL, "error", err)
			return nil
		}
		probe = &res
		return nil
	})

	if s.geo != nil {
		g.Go(func() error {
			if o, ok := s.geo.Lookup(ctx, support.HostFromURL(websiteURL)); ok {
				origin = &o
			}
			return nil
		})
	}

	_ = g.Wait()

	if probe != nil {
		browserprobe.Merge(&evidence.Aggregates, *probe)
	}
	evidence.Origin = origin

	for _, sample := range evidence.Aggregates.HTTP.Samples {
		s.metrics.IncrementProbeSample(string(sample.Mode), sample.OK)
	}
	return evidence
}

// finish scores the document, persists document and report, and notifies
// the ledger, the event bus and metrics.
func (s *Service) finish(ctx context.Context, doc *domain.ScanDocument) (domain.Report, error) {
	in := report.InputFromDocument(*doc)
	scores := report.ComputeScores(in)
	rep := report.Build(in, scores, s.now())

	doc.Scores = report.DocumentScores(scores)
	doc.Summary = summaryFor(rep)

	if err := s.store.Save(doc.ScanID, doc); err != nil {
		return rep, err
	}
	if err := s.store.WriteArtifact(doc.ScanID, reportArtifact, rep); err != nil {
		return rep, err
	}

	s.event(ctx, doc.ScanID, events.TypeReportGenerated, string(rep.Verdict), map[string]any{
		"verdict":       rep.Verdict,
		"ready_to_send": rep.ReadyToSend,
	})

	if s.ledger != nil {
		if err := s.ledger(ctx, database.NewScanRecord(*doc, rep, scores.Campaign.HardStopReasons)); err != nil {
			log.Error("Could not record scan in ledger", "scan_id", doc.ScanID, "error", err)
		}
	}
	return rep, nil
}

// event appends to the scan's log and fans the event out to other nodes.
func (s *Service) event(ctx context.Context, scanID, eventType, verdict string, fields map[string]any) {
	if err := s.store.AppendEvent(scanID, store.NewEvent(eventType, fields)); err != nil {
		log.Warn("Could not append scan event", "scan_id", scanID, "type", eventType, "error", err)
	}
	if err := s.publisher.Publish(ctx, events.ScanEvent{Type: eventType, ScanID: scanID, Verdict: verdict}); err != nil {
		log.Warn("Could not publish scan event", "scan_id", scanID, "type", eventType, "error", err)
	}
}

func (s *Service) index(doc domain.ScanDocument) {
	var errs []error
	if email := doc.Inputs.SendingEmail; email != "" {
		errs = append(errs, s.store.IndexByEmail(email, doc.ScanID))
		errs = append(errs, s.store.IndexByDomain(support.SendingDomain(email), doc.ScanID))
	}
	if site := support.RegistrableDomain(support.HostFromURL(doc.Inputs.WebsiteURL)); site != "" {
		errs = append(errs, s.store.IndexByDomain(site, doc.ScanID))
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("Could not index scan", "scan_id", doc.ScanID, "error", err)
	}
}

func summaryFor(rep domain.Report) *domain.ScanSummary {
	sum := &domain.ScanSummary{KeyInsight: rep.Headline}
	for i, a := range rep.TopActions {
		sum.TopPriorities = append(sum.TopPriorities, domain.FindingPriority{FindingID: string(a.ID), Priority: i + 1})
	}
	return sum
}

// NormalizeWebsiteURL accepts a bare hostname or an http(s) URL.
func NormalizeWebsiteURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: website_url or hostname required", ErrInvalidRequest)
	}
	if !strings.HasPrefix(strings.ToLower(raw), "http://") && !strings.HasPrefix(strings.ToLower(raw), "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: invalid website url %q", ErrInvalidRequest, raw)
	}
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

func normalizeEmail(raw, field string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || support.EmailDomain(addr.Address) == "" {
		return "", fmt.Errorf("%w: invalid %s %q", ErrInvalidRequest, field, raw)
	}
	return strings.ToLower(addr.Address), nil
}

func validScanID(id string) bool {
	return scanIDPattern.MatchString(id) && !strings.Contains(id, "..")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// sampleCount honours an explicit zero; only negative counts fall back.
func sampleCount(v, fallback int) int {
	if v < 0 {
		return fallback
	}
	return v
}
