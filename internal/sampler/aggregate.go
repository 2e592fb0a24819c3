package sampler

import (
	"campaignready/internal/domain"
	"campaignready/internal/stats"
)

// Aggregate derives timing, stability and cache-consistency evidence from a
// finished sample set. The result does not depend on the order probes ran in.
func Aggregate(samples []domain.Sample) domain.WebsiteAggregates {
	var noCache, cache []domain.Sample
	for _, s := range samples {
		if s.Mode == domain.ModeNoCache {
			noCache = append(noCache, s)
		} else {
			cache = append(cache, s)
		}
	}

	overall := summarize(samples)
	redirects := 0
	for _, s := range samples {
		redirects = max(redirects, s.Redirects)
	}

	hits, known := 0, 0
	for _, s := range cache {
		if s.CacheHit == nil {
			continue
		}
		known++
		if *s.CacheHit {
			hits++
		}
	}
	consistent := known > 0 && hits == known

	if samples == nil {
		samples = []domain.Sample{}
	}

	return domain.WebsiteAggregates{
		Mobile:    domain.DeviceVitals{P95: domain.Vitals{TTFBMs: overall.P95.TTFBMs}},
		Desktop:   domain.DeviceVitals{P95: domain.Vitals{TTFBMs: copyPtr(overall.P95.TTFBMs)}},
		Redirects: domain.RedirectCount{Count: redirects},
		Stability: overall.Stability,
		Cache: domain.CacheAggregate{
			ConsistentHit: &consistent,
			SampleHits:    hits,
			SampleTotal:   known,
			Notes:         []string{domain.HTTPOnlyNote},
		},
		HTTP: domain.HTTPEvidence{
			Samples: samples,
			Summary: &domain.HTTPSummary{
				Overall: overall,
				NoCache: summarize(noCache),
				Cache:   summarize(cache),
			},
		},
		Blockers: domain.BlockerFlags{},
	}
}

func summarize(samples []domain.Sample) domain.ModeSummary {
	var ttfbs []float64
	okCount := 0
	for _, s := range samples {
		if !s.OK {
			continue
		}
		okCount++
		if s.TTFBMs != nil {
			ttfbs = append(ttfbs, *s.TTFBMs)
		}
	}
	return domain.ModeSummary{
		P95:       domain.P95TTFB{TTFBMs: stats.P95Ptr(ttfbs)},
		Stability: stats.Stability(ttfbs, okCount, len(samples)),
		OKCount:   okCount,
		Total:     len(samples),
	}
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
