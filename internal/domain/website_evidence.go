package domain

// Stability classifies how consistently a site answered during sampling.
type Stability string

const (
	StabilityStable   Stability = "stable"
	StabilityVariable Stability = "variable"
	StabilityUnstable Stability = "unstable"
	StabilityUnknown  Stability = "unknown"
)

// OrUnknown maps the zero value to StabilityUnknown.
func (s Stability) OrUnknown() Stability {
	if s == "" {
		return StabilityUnknown
	}
	return s
}

type CacheMode string

const (
	ModeNoCache CacheMode = "no-cache"
	ModeCache   CacheMode = "cache"
)

const HTTPOnlyNote = "HTTP-only scan (no Lighthouse). Mobile metrics not measured yet."

// WebsiteEvidence is produced once per scan by the sampler and never mutated afterwards.
type WebsiteEvidence struct {
	Aggregates WebsiteAggregates `json:"aggregates"`
	Origin     *Origin           `json:"origin,omitempty"`
}

type WebsiteAggregates struct {
	Mobile    DeviceVitals   `json:"mobile"`
	Desktop   DeviceVitals   `json:"desktop"`
	Redirects RedirectCount  `json:"redirects"`
	Stability Stability      `json:"stability"`
	Cache     CacheAggregate `json:"cache"`
	HTTP      HTTPEvidence   `json:"http"`
	Blockers  BlockerFlags   `json:"blockers"`
}

type DeviceVitals struct {
	P95 Vitals `json:"p95"`
}

// Vitals holds p95 web metrics. Nil means not measured.
type Vitals struct {
	TTFBMs *float64 `json:"ttfb_ms"`
	LCPMs  *float64 `json:"lcp_ms,omitempty"`
	CLS    *float64 `json:"cls,omitempty"`
	INPMs  *float64 `json:"inp_ms,omitempty"`
}

type RedirectCount struct {
	Count int `json:"count"`
}

type CacheAggregate struct {
	ConsistentHit *bool    `json:"consistent_hit"`
	SampleHits    int      `json:"sample_hits"`
	SampleTotal   int      `json:"sample_total"`
	Notes         []string `json:"notes,omitempty"`
}

type HTTPEvidence struct {
	Samples []Sample     `json:"samples"`
	Summary *HTTPSummary `json:"summary,omitempty"`
}

// Sample is one probe: a single request chain against the target URL.
type Sample struct {
	Mode         CacheMode          `json:"mode"`
	URL          string             `json:"url"`
	Status       *int               `json:"status"`
	OK           bool               `json:"ok"`
	Redirects    int                `json:"redirects"`
	TTFBMs       *float64           `json:"ttfb_ms"`
	CacheHit     *bool              `json:"cache_hit"`
	CacheHeaders map[string]*string `json:"cache_headers"`
	Error        string             `json:"error,omitempty"`
}

type HTTPSummary struct {
	Overall ModeSummary `json:"overall"`
	NoCache ModeSummary `json:"no_cache"`
	Cache   ModeSummary `json:"cache"`
}

type ModeSummary struct {
	P95       P95TTFB   `json:"p95"`
	Stability Stability `json:"stability"`
	OKCount   int       `json:"ok_count"`
	Total     int       `json:"total"`
}

type P95TTFB struct {
	TTFBMs *float64 `json:"ttfb_ms"`
}

type BlockerFlags struct {
	RenderBlockingJS         bool `json:"render_blocking_js"`
	ConsentBlocksInteraction bool `json:"consent_blocks_interaction"`
	ExcessiveThirdParties    bool `json:"excessive_third_parties"`
}

// Any reports whether at least one blocker flag is set.
func (b BlockerFlags) Any() bool {
	return b.RenderBlockingJS || b.ConsentBlocksInteraction || b.ExcessiveThirdParties
}

// Origin describes where the probed host is served from.
type Origin struct {
	Host         string `json:"host"`
	IP           string `json:"ip,omitempty"`
	Country      string `json:"country,omitempty"`
	ASN          uint   `json:"asn,omitempty"`
	Organization string `json:"organization,omitempty"`
	HostingType  string `json:"hosting_type,omitempty"`
}

// MobileLCP returns the mobile p95 LCP in milliseconds when measured.
func (w WebsiteEvidence) MobileLCP() (float64, bool) {
	return deref(w.Aggregates.Mobile.P95.LCPMs)
}

// MobileTTFB returns the mobile p95 TTFB in milliseconds when measured.
func (w WebsiteEvidence) MobileTTFB() (float64, bool) {
	return deref(w.Aggregates.Mobile.P95.TTFBMs)
}

// HasVitals reports whether mobile LCP or TTFB evidence exists.
func (w WebsiteEvidence) HasVitals() bool {
	_, lcp := w.MobileLCP()
	_, ttfb := w.MobileTTFB()
	return lcp || ttfb
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
