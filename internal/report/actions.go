package report

import "campaignready/internal/domain"

var catalogue = map[domain.ActionID]domain.Action{
	domain.ActionDMARCEnforce: {
		Title:  "Enforce DMARC (policy=quarantine → reject)",
		Why:    "Without enforcement, mailbox providers can’t reliably protect your domain from spoofing, and your sending reputation stays fragile.",
		Impact: domain.RatingHigh,
		Effort: domain.RatingLow,
		Steps: []string{
			"Set DMARC policy to quarantine (keep pct=100 if possible).",
			"Monitor DMARC rua reports for 7–14 days and fix misaligned sources.",
			"Move policy to reject once the legitimate sources are stable.",
		},
	},
	domain.ActionDMARCAdd: {
		Title:  "Publish a DMARC record",
		Why:    "DMARC is the control plane for email authentication. No DMARC means no policy and weak domain protection.",
		Impact: domain.RatingHigh,
		Effort: domain.RatingLow,
		Steps: []string{
			"Start with policy=none and rua reporting enabled.",
			"Confirm all legitimate sources are aligned (SPF/DKIM).",
			"Then move to quarantine/reject.",
		},
	},
	domain.ActionDKIMAdd: {
		Title:  "Enable DKIM signing for your sending domain",
		Why:    "DKIM is required for stable inbox placement and for DMARC alignment.",
		Impact: domain.RatingHigh,
		Effort: domain.RatingMedium,
		Steps: []string{
			"Enable DKIM in your ESP (generate selector + DNS records).",
			"Publish the DKIM DNS records and verify they resolve publicly.",
			"Send a test to multiple mailbox providers and confirm DKIM=pass.",
		},
	},
	domain.ActionDKIMFix: {
		Title:  "Fix DKIM failures and alignment",
		Why:    "DKIM failures are treated as authentication breakage and can cause spam placement or rejection under DMARC enforcement.",
		Impact: domain.RatingHigh,
		Effort: domain.RatingMedium,
		Steps: []string{
			"Verify the correct DKIM selector is published in DNS.",
			"Confirm the ESP is signing with the same selector/domain.",
			"Check for message modification in transit (forwarders, gateways).",
		},
	},
	domain.ActionSPFAdd: {
		Title:  "Publish an SPF record for your sending domain",
		Why:    "SPF helps mailbox providers validate your sending sources and supports DMARC alignment.",
		Impact: domain.RatingMedium,
		Effort: domain.RatingLow,
		Steps: []string{
			"List only your legitimate sending sources (ESP, CRM, transactional).",
			"End with ~all initially if you’re unsure, then move to -all when stable.",
			"Keep DNS lookups ≤ 10.",
		},
	},
	domain.ActionSPFFix: {
		Title:  "Fix SPF failures and reduce DNS lookups",
		Why:    "SPF fail/permerror increases spam risk. Excessive DNS lookups can invalidate SPF entirely.",
		Impact: domain.RatingMedium,
		Effort: domain.RatingLow,
		Steps: []string{
			"Remove obsolete includes and flatten where needed.",
			"Ensure lookups ≤ 10 (includes + redirects + a/mx).",
			"Validate with a known-good SPF checker after changes.",
		},
	},
	domain.ActionBlacklistCleanup: {
		Title:  "Investigate blacklist listings and remediate",
		Why:    "Blacklist hits are a direct deliverability blocker. Fixing this is priority zero before sending campaigns.",
		Impact: domain.RatingHigh,
		Effort: domain.RatingHigh,
		Steps: []string{
			"Identify which IP/domain is listed and why (abuse, open relay, poor list hygiene).",
			"Fix the root cause (authentication, list hygiene, consent, complaint rates).",
			"Request delisting only after remediation and monitoring.",
		},
	},
	domain.ActionReduceLCP: {
		Title:  "Improve mobile LCP (largest contentful paint)",
		Why:    "Slow mobile LCP reduces conversion and amplifies the impact of a campaign spike.",
		Impact: domain.RatingHigh,
		Effort: domain.RatingMedium,
		Steps: []string{
			"Optimize hero image (size, format, preload) and reduce layout shifts.",
			"Remove or defer non-critical JS and third-party tags on landing pages.",
			"Use server-side caching/CDN for above-the-fold resources.",
		},
	},
	domain.ActionReduceTTFB: {
		Title:  "Reduce TTFB (server response time)",
		Why:    "High TTFB means your origin can’t respond fast enough. Campaign traffic will amplify the issue.",
		Impact: domain.RatingHigh,
		Effort: domain.RatingMedium,
		Steps: []string{
			"Enable full-page caching where possible and verify consistent cache hits.",
			"Reduce redirects and expensive origin work (DB queries, heavy middleware).",
			"Use CDN + keep origin close to users and properly sized.",
		},
	},
	domain.ActionStabilizeSendWindow: {
		Title:  "Stabilize the website during the send window",
		Why:    "If the site becomes unstable during send time, you pay for traffic you can’t convert.",
		Impact: domain.RatingHigh,
		Effort: domain.RatingMedium,
		Steps: []string{
			"Run a load test for expected peak traffic around send time.",
			"Scale up critical services (origin, DB, cache) or add queueing/backpressure.",
			"Temporarily reduce heavy scripts and non-essential integrations.",
		},
	},
	domain.ActionReduceRenderBlocking: {
		Title:  "Remove render-blocking scripts on landing pages",
		Why:    "Render-blocking JS delays first meaningful paint and increases bounce, especially on mobile.",
		Impact: domain.RatingMedium,
		Effort: domain.RatingMedium,
		Steps: []string{
			"Defer non-critical scripts; load critical CSS first.",
			"Audit tag manager/consent tooling for blocking behavior.",
			"Reduce third-party tags to the minimum required.",
		},
	},
	domain.ActionCacheConsistency: {
		Title:  "Fix cache inconsistency",
		Why:    "Inconsistent cache hits create unpredictable performance, especially under campaign load.",
		Impact: domain.RatingMedium,
		Effort: domain.RatingLow,
		Steps: []string{
			"Confirm CDN/page cache is enabled for landing pages.",
			"Fix cache keys (cookies/headers) that prevent caching.",
			"Verify hit ratio across geos and during peak.",
		},
	},
}

// ActionFor returns a copy of the catalogue entry for id with the given priority.
func ActionFor(id domain.ActionID, priority int) domain.Action {
	a := catalogue[id]
	a.ID = id
	a.Priority = priority
	a.Steps = append([]string(nil), a.Steps...)
	return a
}
