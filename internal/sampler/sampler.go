package sampler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"campaignready/internal/config"
	"campaignready/internal/domain"
)

const (
	maxRedirectHops = 10
	cacheBustParam  = "__crs_cb"

	DefaultNoCacheSamples = 3
	DefaultCacheSamples   = 3
	DefaultTimeout        = 15 * time.Second

	errRedirectWithoutLocation = "Redirect without Location header"
	errTooManyRedirects        = "Too many redirects"
	errFetchFallback           = "Fetch error"
	errBlockedTarget           = "Target website is blocked"
)

// Sampler probes one URL with a fixed sequence of no-cache and cache requests.
// Probes run one after another; a probe never fails the whole sample run.
type Sampler struct {
	client    *http.Client
	userAgent string
	now       func() time.Time
	isBlocked func(string) bool
	observe   func(domain.Sample)
}

type Option func(*Sampler)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sampler) {
		if c == nil {
			return
		}
		clone := *c
		clone.CheckRedirect = stopAtFirstResponse
		s.client = &clone
	}
}

func WithUserAgent(ua string) Option {
	return func(s *Sampler) { s.userAgent = ua }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBlocklist replaces the host blocklist check applied to every hop.
func WithBlocklist(isBlocked func(string) bool) Option {
	return func(s *Sampler) { s.isBlocked = isBlocked }
}

// WithObserver registers a callback invoked after each finished probe.
func WithObserver(fn func(domain.Sample)) Option {
	return func(s *Sampler) { s.observe = fn }
}

func New(opts ...Option) *Sampler {
	s := &Sampler{
		client:    &http.Client{CheckRedirect: stopAtFirstResponse},
		now:       time.Now,
		isBlocked: config.IsWebsiteBlocked,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func stopAtFirstResponse(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Sample runs noCacheCount no-cache probes followed by cacheCount cache probes
// against rawURL and aggregates them. timeout bounds each probe including its
// redirect hops; zero means no per-probe limit beyond ctx.
func (s *Sampler) Sample(ctx context.Context, rawURL string, noCacheCount, cacheCount int, timeout time.Duration) domain.WebsiteEvidence {
	samples := make([]domain.Sample, 0, max(noCacheCount, 0)+max(cacheCount, 0))

	for i := 0; i < noCacheCount; i++ {
		samples = append(samples, s.probe(ctx, rawURL, domain.ModeNoCache, timeout))
	}
	for i := 0; i < cacheCount; i++ {
		samples = append(samples, s.probe(ctx, rawURL, domain.ModeCache, timeout))
	}

	return domain.WebsiteEvidence{Aggregates: Aggregate(samples)}
}

func (s *Sampler) probe(ctx context.Context, rawURL string, mode domain.CacheMode, timeout time.Duration) domain.Sample {
	sample := s.fetch(ctx, rawURL, mode, timeout)
	if s.observe != nil {
		s.observe(sample)
	}
	return sample
}

func (s *Sampler) fetch(ctx context.Context, rawURL string, mode domain.CacheMode, timeout time.Duration) domain.Sample {
	current, err := parseTarget(rawURL)
	if err != nil {
		return errorSample(mode, rawURL, 0, err.Error())
	}
	if mode == domain.ModeNoCache {
		current = s.withCacheBust(current)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	redirects := 0
	started := time.Now()

	for hop := 0; hop < maxRedirectHops; hop++ {
		if s.isBlocked != nil && s.isBlocked(current.String()) {
			return errorSample(mode, current.String(), redirects, errBlockedTarget)
		}

		resp, err := s.do(ctx, current, mode)
		if err != nil {
			return errorSample(mode, current.String(), redirects, fetchErrorMessage(err))
		}
		ttfb := roundMs(time.Since(started))
		discard(resp)

		hit, snapshot := detectCacheHit(resp.Header)
		status := resp.StatusCode

		if status >= 300 && status < 400 {
			redirects++
			loc := resp.Header.Get("Location")
			if loc == "" {
				return domain.Sample{
					Mode:         mode,
					URL:          current.String(),
					Status:       &status,
					OK:           false,
					Redirects:    redirects,
					TTFBMs:       &ttfb,
					CacheHit:     hit,
					CacheHeaders: snapshot,
					Error:        errRedirectWithoutLocation,
				}
			}
			next, err := current.Parse(loc)
			if err != nil {
				return errorSample(mode, current.String(), redirects, err.Error())
			}
			current = next
			continue
		}

		return domain.Sample{
			Mode:         mode,
			URL:          current.String(),
			Status:       &status,
			OK:           status >= 200 && status < 400,
			Redirects:    redirects,
			TTFBMs:       &ttfb,
			CacheHit:     hit,
			CacheHeaders: snapshot,
		}
	}

	return errorSample(mode, current.String(), redirects, errTooManyRedirects)
}

func (s *Sampler) do(ctx context.Context, target *url.URL, mode domain.CacheMode) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if mode == domain.ModeNoCache {
		req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		req.Header.Set("Pragma", "no-cache")
	}
	return s.client.Do(req)
}

func (s *Sampler) withCacheBust(u *url.URL) *url.URL {
	out := *u
	q := out.Query()
	q.Set(cacheBustParam, fmt.Sprintf("%d_%s", s.now().UnixMilli(), randomHex(6)))
	out.RawQuery = q.Encode()
	return &out
}

func parseTarget(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q is not absolute", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL: unsupported scheme %q", u.Scheme)
	}
	return u, nil
}

func errorSample(mode domain.CacheMode, target string, redirects int, msg string) domain.Sample {
	if msg == "" {
		msg = errFetchFallback
	}
	return domain.Sample{
		Mode:         mode,
		URL:          target,
		Redirects:    redirects,
		CacheHeaders: map[string]*string{},
		Error:        msg,
	}
}

func fetchErrorMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// discard closes the body without downloading it; only headers are timed.
func discard(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)
	_ = resp.Body.Close()
}

func roundMs(d time.Duration) float64 {
	return math.Round(float64(d) / float64(time.Millisecond))
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
