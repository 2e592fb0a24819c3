package browserprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"campaignready/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	connectRetries = 10
)

// vitalsScript collects buffered paint, layout-shift and interaction entries
// for a short window after load and resolves with their summary.
const vitalsScript = `() => new Promise((resolve) => {
	const out = { lcp: null, cls: 0, inp: null, ttfb: null };
	try {
		const nav = performance.getEntriesByType('navigation')[0];
		if (nav) { out.ttfb = nav.responseStart; }
		new PerformanceObserver((list) => {
			const entries = list.getEntries();
			const last = entries[entries.length - 1];
			if (last) { out.lcp = last.renderTime || last.loadTime || last.startTime; }
		}).observe({ type: 'largest-contentful-paint', buffered: true });
		new PerformanceObserver((list) => {
			for (const e of list.getEntries()) { if (!e.hadRecentInput) { out.cls += e.value; } }
		}).observe({ type: 'layout-shift', buffered: true });
		new PerformanceObserver((list) => {
			for (const e of list.getEntries()) {
				if (e.interactionId && (out.inp === null || e.duration > out.inp)) { out.inp = e.duration; }
			}
		}).observe({ type: 'event', buffered: true, durationThreshold: 16 });
	} catch (e) {}
	setTimeout(() => resolve(JSON.stringify(out)), 1500);
})`

// Result is the browser-side evidence for one page load.
type Result struct {
	Vitals   domain.Vitals       `json:"vitals"`
	Findings HTMLFindings        `json:"findings"`
	Blockers domain.BlockerFlags `json:"blockers"`
}

type Probe struct {
	mu                  sync.Mutex
	browser             *rod.Browser
	timeout             time.Duration
	thirdPartyThreshold int
}

func New(timeout time.Duration, thirdPartyThreshold int) *Probe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if thirdPartyThreshold <= 0 {
		thirdPartyThreshold = DefaultThirdPartyThreshold
	}
	return &Probe{timeout: timeout, thirdPartyThreshold: thirdPartyThreshold}
}

// Collect loads pageURL in a stealth page and measures it. The browser is
// launched on first use and reused afterwards.
func (p *Probe) Collect(ctx context.Context, pageURL string) (Result, error) {
	b, err := p.ensureBrowser()
	if err != nil {
		return Result{}, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return Result{}, fmt.Errorf("open stealth page: %w", err)
	}
	defer func() {
		if err := rod.Try(func() { page.MustClose() }); err != nil {
			log.Debug("browser probe: close page failed", "error", err)
		}
	}()

	page = page.Context(ctx).Timeout(p.timeout)

	_ = proto.PageSetDownloadBehavior{
		Behavior: proto.PageSetDownloadBehaviorBehaviorDeny,
	}.Call(page)

	if err := page.Navigate(pageURL); err != nil {
		return Result{}, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return Result{}, fmt.Errorf("wait load %s: %w", pageURL, err)
	}

	vitals, err := readVitals(page)
	if err != nil {
		log.Warn("browser probe: vitals unavailable", "url", pageURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return Result{}, fmt.Errorf("read html %s: %w", pageURL, err)
	}

	findings, err := AnalyzeHTML(strings.NewReader(html), pageURL)
	if err != nil {
		return Result{}, err
	}

	rb, consent, thirdParty := findings.Blockers(p.thirdPartyThreshold)
	return Result{
		Vitals:   vitals,
		Findings: findings,
		Blockers: domain.BlockerFlags{
			RenderBlockingJS:         rb,
			ConsentBlocksInteraction: consent,
			ExcessiveThirdParties:    thirdParty,
		},
	}, nil
}

func readVitals(page *rod.Page) (domain.Vitals, error) {
	obj, err := page.Eval(vitalsScript)
	if err != nil {
		return domain.Vitals{}, err
	}

	var raw struct {
		LCP  *float64 `json:"lcp"`
		CLS  *float64 `json:"cls"`
		INP  *float64 `json:"inp"`
		TTFB *float64 `json:"ttfb"`
	}
	if err := json.Unmarshal([]byte(obj.Value.Str()), &raw); err != nil {
		return domain.Vitals{}, fmt.Errorf("decode vitals: %w", err)
	}
	return domain.Vitals{TTFBMs: raw.TTFB, LCPMs: raw.LCP, CLS: raw.CLS, INPMs: raw.INP}, nil
}

func (p *Probe) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		return p.browser, nil
	}

	controlURL, err := launcher.New().
		Leakless(true).
		Headless(true).
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	for i := 0; i < connectRetries; i++ {
		if err = b.Connect(); err == nil {
			break
		}
		time.Sleep(time.Duration(250*(i+1)) * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("browser connect failed: %w", err)
	}

	if err := (proto.BrowserSetDownloadBehavior{
		Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
		BrowserContextID: b.BrowserContextID,
	}).Call(b); err != nil {
		log.Warn("browser probe: disable downloads failed", "error", err)
	}

	p.browser = b
	return b, nil
}

// Close shuts the browser down; a later Collect launches a new one.
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser == nil {
		return nil
	}
	err := p.browser.Close()
	p.browser = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Merge folds browser evidence into HTTP aggregates. Measured vitals fill
// both device slots only where HTTP sampling left them empty, and blocker
// flags only ever turn on.
func Merge(agg *domain.WebsiteAggregates, r Result) {
	if agg == nil {
		return
	}
	// One mobile-emulated page load feeds both devices, mirroring the HTTP-only
	// desktop TTFB, so desktop parity never diverges from mobile here.
	for _, dev := range []*domain.DeviceVitals{&agg.Mobile, &agg.Desktop} {
		fill(&dev.P95.LCPMs, r.Vitals.LCPMs)
		fill(&dev.P95.CLS, r.Vitals.CLS)
		fill(&dev.P95.INPMs, r.Vitals.INPMs)
		fill(&dev.P95.TTFBMs, r.Vitals.TTFBMs)
	}
	agg.Blockers.RenderBlockingJS = agg.Blockers.RenderBlockingJS || r.Blockers.RenderBlockingJS
	agg.Blockers.ConsentBlocksInteraction = agg.Blockers.ConsentBlocksInteraction || r.Blockers.ConsentBlocksInteraction
	agg.Blockers.ExcessiveThirdParties = agg.Blockers.ExcessiveThirdParties || r.Blockers.ExcessiveThirdParties
}

func fill(dst **float64, v *float64) {
	if *dst != nil || v == nil {
		return
	}
	cp := *v
	*dst = &cp
}
