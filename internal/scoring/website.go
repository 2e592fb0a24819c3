package scoring

import "campaignready/internal/domain"

const (
	ttfbPenaltyCap     = 30
	cwvPenaltyCap      = 40
	blockingPenaltyCap = 10
	desktopPenaltyCap  = 10
	websiteBonusCap    = 5
)

type WebsitePenalties struct {
	TTFB      int `json:"ttfb"`
	CWV       int `json:"cwv"`
	Stability int `json:"stability"`
	Blocking  int `json:"blocking"`
	Desktop   int `json:"desktop"`
}

func (p WebsitePenalties) total() int {
	return p.TTFB + p.CWV + p.Stability + p.Blocking + p.Desktop
}

type WebsiteSignals struct {
	Stability         domain.Stability `json:"stability"`
	SendWindowEnabled bool             `json:"send_window_enabled"`
	MobileLCPP95Ms    *float64         `json:"mobile_lcp_p95_ms"`
	MobileTTFBP95Ms   *float64         `json:"mobile_ttfb_p95_ms"`
}

type WebsiteScore struct {
	Score        int                    `json:"score"`
	Status       domain.ReadinessStatus `json:"status"`
	BonusApplied int                    `json:"bonus_applied"`
	Penalties    WebsitePenalties       `json:"penalties"`
	Signals      WebsiteSignals         `json:"signals"`
}

// ScoreWebsite rates landing-page performance. Stability only counts against
// the site when a send window is configured.
func ScoreWebsite(ev domain.WebsiteEvidence, sendWindowEnabled bool) WebsiteScore {
	agg := ev.Aggregates
	mobile := agg.Mobile.P95
	desktop := agg.Desktop.P95
	stability := agg.Stability.OrUnknown()

	ttfb := penaltyTTFB(mobile.TTFBMs)
	if agg.Cache.ConsistentHit != nil && !*agg.Cache.ConsistentHit {
		ttfb += 5
	}
	if agg.Redirects.Count > 1 {
		ttfb += 3
	}

	cwv := penaltyLCP(mobile.LCPMs) + penaltyCLS(mobile.CLS) + penaltyINP(mobile.INPMs)

	stabilityPenalty := 0
	if sendWindowEnabled {
		switch stability {
		case domain.StabilityUnstable:
			stabilityPenalty = 20
		case domain.StabilityVariable:
			stabilityPenalty = 10
		}
	}

	blocking := 0
	if agg.Blockers.RenderBlockingJS {
		blocking += 5
	}
	if agg.Blockers.ConsentBlocksInteraction {
		blocking += 3
	}
	if agg.Blockers.ExcessiveThirdParties {
		blocking += 2
	}

	desktopPenalty := 0
	if desktop.LCPMs != nil && mobile.LCPMs != nil && *desktop.LCPMs > *mobile.LCPMs*1.25 {
		desktopPenalty += 5
	}
	if desktop.TTFBMs != nil && mobile.TTFBMs != nil && *desktop.TTFBMs > *mobile.TTFBMs*1.3 {
		desktopPenalty += 5
	}

	bonus := 0
	if agg.Cache.ConsistentHit != nil && *agg.Cache.ConsistentHit {
		bonus += 2
	}
	bonus = capAt(bonus, websiteBonusCap)

	penalties := WebsitePenalties{
		TTFB:      capAt(ttfb, ttfbPenaltyCap),
		CWV:       capAt(cwv, cwvPenaltyCap),
		Stability: stabilityPenalty,
		Blocking:  capAt(blocking, blockingPenaltyCap),
		Desktop:   capAt(desktopPenalty, desktopPenaltyCap),
	}
	score := ClampScore(100 - penalties.total() + bonus)

	return WebsiteScore{
		Score:        score,
		Status:       StatusFromScore(score),
		BonusApplied: bonus,
		Penalties:    penalties,
		Signals: WebsiteSignals{
			Stability:         stability,
			SendWindowEnabled: sendWindowEnabled,
			MobileLCPP95Ms:    copyFloat(mobile.LCPMs),
			MobileTTFBP95Ms:   copyFloat(mobile.TTFBMs),
		},
	}
}

func penaltyTTFB(ttfb *float64) int {
	if ttfb == nil {
		return 0
	}
	switch v := *ttfb; {
	case v <= 600:
		return 0
	case v <= 900:
		return 5
	case v <= 1200:
		return 10
	case v <= 1800:
		return 20
	default:
		return 30
	}
}

func penaltyLCP(lcpMs *float64) int {
	if lcpMs == nil {
		return 0
	}
	switch seconds := *lcpMs / 1000; {
	case seconds <= 2.5:
		return 0
	case seconds <= 3.0:
		return 5
	case seconds <= 4.0:
		return 15
	default:
		return 25
	}
}

func penaltyCLS(cls *float64) int {
	if cls == nil {
		return 0
	}
	switch {
	case *cls <= 0.1:
		return 0
	case *cls <= 0.25:
		return 5
	default:
		return 10
	}
}

func penaltyINP(inp *float64) int {
	if inp == nil {
		return 0
	}
	switch {
	case *inp <= 200:
		return 0
	case *inp <= 500:
		return 5
	default:
		return 10
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
