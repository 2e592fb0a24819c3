package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignready/internal/domain"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func strongInput() Input {
	return Input{
		ScanID: "scan-strong",
		Email: domain.EmailEvidence{Checks: domain.EmailChecks{
			SPF:    &domain.SPFCheck{Present: domain.Bool(true), Result: "pass"},
			DKIM:   &domain.DKIMCheck{Present: domain.Bool(true), Result: "pass"},
			DMARC:  &domain.DMARCCheck{Present: domain.Bool(true), Policy: "reject"},
			MTASTS: &domain.MTASTSCheck{Present: domain.Bool(true)},
		}},
		Website: domain.WebsiteEvidence{Aggregates: domain.WebsiteAggregates{
			Mobile:    domain.DeviceVitals{P95: domain.Vitals{TTFBMs: domain.Float(300)}},
			Desktop:   domain.DeviceVitals{P95: domain.Vitals{TTFBMs: domain.Float(300)}},
			Stability: domain.StabilityStable,
			Cache:     domain.CacheAggregate{ConsistentHit: domain.Bool(true), SampleHits: 3, SampleTotal: 3},
		}},
		Inputs: domain.ScanInputs{WebsiteURL: "https://shop.example.com", SendingEmail: "news@example.com"},
	}
}

func troubledInput() Input {
	return Input{
		ScanID: "scan-troubled",
		Email: domain.EmailEvidence{Checks: domain.EmailChecks{
			SPF:        &domain.SPFCheck{Present: domain.Bool(true), Result: "softfail", DNSLookupCount: domain.Int(12)},
			Blacklists: &domain.BlacklistCheck{Listed: domain.Bool(true)},
		}},
		Website: domain.WebsiteEvidence{Aggregates: domain.WebsiteAggregates{
			Mobile:    domain.DeviceVitals{P95: domain.Vitals{TTFBMs: domain.Float(2000), LCPMs: domain.Float(4500)}},
			Stability: domain.StabilityUnstable,
			Cache:     domain.CacheAggregate{ConsistentHit: domain.Bool(false)},
			Blockers:  domain.BlockerFlags{RenderBlockingJS: true},
		}},
		Inputs: domain.ScanInputs{SendWindow: domain.SendWindow{Enabled: true, Timezone: "Europe/Amsterdam"}},
	}
}

func actionIDs(actions []domain.Action) []domain.ActionID {
	ids := make([]domain.ActionID, 0, len(actions))
	for _, a := range actions {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestGenerateStrongScan(t *testing.T) {
	r := Generate(strongInput(), fixedNow)

	assert.Equal(t, "1.0", r.ReportVersion)
	assert.Equal(t, fixedNow, r.GeneratedAt)
	assert.Equal(t, "scan-strong", r.ScanID)
	assert.Equal(t, domain.RiskLow, r.Verdict)
	assert.Equal(t, domain.ConfidenceHigh, r.Confidence)
	assert.True(t, r.ReadyToSend)
	assert.Empty(t, r.Blockers)
	assert.Empty(t, r.TopActions)
	assert.Equal(t, []string{"No critical blockers detected. Keep monitoring and iterate on small wins."}, r.Why)
	assert.Equal(t, "Looks good: you’re close to send-ready.", r.Headline)
	assert.Equal(t, 100, r.Scores.Email.Score)
	assert.Equal(t, domain.StatusStrong, r.Scores.Website.Status)
}

func TestGenerateEmptyEvidence(t *testing.T) {
	r := Generate(Input{ScanID: "empty"}, fixedNow)

	assert.Equal(t, domain.ConfidenceLow, r.Confidence)
	assert.Equal(t, domain.RiskHigh, r.Verdict)
	assert.False(t, r.ReadyToSend)
	assert.Equal(t, "High risk: fix authentication and stability before sending.", r.Headline)
	assert.Equal(t, []domain.ActionID{domain.ActionDMARCAdd, domain.ActionDKIMAdd, domain.ActionSPFAdd}, actionIDs(r.TopActions))
	assert.Equal(t, 95, r.TopActions[1].Priority)
	assert.Equal(t, []string{
		"DMARC is missing (no policy enforcement possible).",
		"DKIM signing is missing.",
		"SPF record is missing.",
	}, r.Why)
}

func TestDeriveBlockersOrder(t *testing.T) {
	in := troubledInput()
	scores := ComputeScores(in)

	blockers := DeriveBlockers(in, scores.Website.Score)

	require.Len(t, blockers, 7)
	want := []domain.Blocker{
		{ID: domain.BlockerAuthCritical, Severity: domain.SeverityHard, Message: "DKIM record not detected via DNS."},
		{ID: domain.BlockerAuthCritical, Severity: domain.SeveritySoft, Message: "SPF is weak (softfail/neutral)."},
		{ID: domain.BlockerBlacklisted, Severity: domain.SeverityHard, Message: "Blacklist signal detected."},
		{ID: domain.BlockerDMARCMissing, Severity: domain.SeverityHard, Message: "DMARC is missing."},
		{ID: domain.BlockerWebsiteUnstable, Severity: domain.SeverityHard, Message: "Website is unstable during the planned send window."},
		{ID: domain.BlockerMobileLCPOver4s, Severity: domain.SeveritySoft, Message: "Mobile LCP exceeds 4 seconds during send window."},
		{ID: domain.BlockerWebsiteScoreLow, Severity: domain.SeveritySoft, Message: "Website readiness score is below 50."},
	}
	assert.Equal(t, want, blockers)
}

func TestDeriveBlockersIgnoresSendWindowRulesWhenDisabled(t *testing.T) {
	in := troubledInput()
	in.Inputs.SendWindow.Enabled = false

	for _, b := range DeriveBlockers(in, 80) {
		assert.NotEqual(t, domain.BlockerWebsiteUnstable, b.ID)
		assert.NotEqual(t, domain.BlockerMobileLCPOver4s, b.ID)
		assert.NotEqual(t, domain.BlockerWebsiteScoreLow, b.ID)
	}
}

func TestDeriveBlockersPolicyNoneIsSoft(t *testing.T) {
	in := strongInput()
	in.Email.Checks.DMARC.Policy = "none"

	blockers := DeriveBlockers(in, 100)

	require.Len(t, blockers, 1)
	assert.Equal(t, domain.BlockerDMARCPolicyNone, blockers[0].ID)
	assert.Equal(t, domain.SeveritySoft, blockers[0].Severity)
}

func TestSelectTopActionsRanksAndDedupes(t *testing.T) {
	in := troubledInput()
	scores := ComputeScores(in)

	actions := SelectTopActions(in, scores.Email.Score, scores.Website.Score)

	assert.Equal(t, []domain.ActionID{
		domain.ActionBlacklistCleanup,
		domain.ActionDMARCAdd,
		domain.ActionStabilizeSendWindow,
		domain.ActionDKIMAdd,
		domain.ActionReduceLCP,
	}, actionIDs(actions))

	seen := map[domain.ActionID]bool{}
	for i, a := range actions {
		assert.False(t, seen[a.ID], "duplicate action %s", a.ID)
		seen[a.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, actions[i-1].Priority, a.Priority)
		}
		assert.NotEmpty(t, a.Title)
		assert.NotEmpty(t, a.Steps)
	}
}

func TestSelectTopActionsHigherPriorityWins(t *testing.T) {
	in := strongInput()
	in.Email.Checks.SPF = &domain.SPFCheck{Present: domain.Bool(true), Result: "neutral", DNSLookupCount: domain.Int(11)}

	actions := SelectTopActions(in, 90, 90)

	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionSPFFix, actions[0].ID)
	assert.Equal(t, 60, actions[0].Priority)
}

func TestSelectTopActionsLowWebsiteBoost(t *testing.T) {
	actions := SelectTopActions(strongInput(), 100, 35)

	assert.Equal(t, []domain.ActionID{domain.ActionReduceTTFB, domain.ActionReduceLCP}, actionIDs(actions))
	for _, a := range actions {
		assert.Equal(t, 90, a.Priority)
	}
}

func TestIsReadyToSend(t *testing.T) {
	soft := []domain.Blocker{{ID: domain.BlockerDMARCPolicyNone, Severity: domain.SeveritySoft}}
	hard := []domain.Blocker{{ID: domain.BlockerDMARCMissing, Severity: domain.SeverityHard}}

	assert.True(t, IsReadyToSend(domain.RiskMedium, soft))
	assert.False(t, IsReadyToSend(domain.RiskLow, hard))
	assert.False(t, IsReadyToSend(domain.RiskHigh, nil))
}

func TestBuildWhyListCapAndFallback(t *testing.T) {
	in := troubledInput()
	why := BuildWhyList(in, 5, 20, domain.RiskHigh)
	assert.Len(t, why, 5)
	assert.Equal(t, "Website is unstable during the planned send window.", why[4])

	fallback := BuildWhyList(strongInput(), 88, 77, domain.RiskMedium)
	assert.Equal(t, []string{
		"Email readiness: 88/100, Website readiness: 77/100.",
		"Address the top issues below before your next send.",
	}, fallback)
}

func TestDeriveConfidence(t *testing.T) {
	in := strongInput()
	assert.Equal(t, domain.ConfidenceHigh, DeriveConfidence(in))

	in.Website = domain.WebsiteEvidence{}
	assert.Equal(t, domain.ConfidenceMedium, DeriveConfidence(in))

	in.Email = domain.EmailEvidence{}
	assert.Equal(t, domain.ConfidenceLow, DeriveConfidence(in))
}

func TestHeadline(t *testing.T) {
	assert.Equal(t, "Moderate risk: address key issues to improve deliverability and performance.", Headline(domain.RiskMedium, 95, 95))
	assert.Equal(t, "Low risk: a few improvements will make this even stronger.", Headline(domain.RiskLow, 79, 95))
}

func TestGenerateIsDeterministic(t *testing.T) {
	in := troubledInput()
	assert.Equal(t, Generate(in, fixedNow), Generate(in, fixedNow))
}

func TestFormatMarkdown(t *testing.T) {
	md := FormatMarkdown(Generate(troubledInput(), fixedNow))

	for _, want := range []string{
		"# Campaign Readiness Report",
		"- **Scan ID:** scan-troubled",
		"- **Verdict:** HIGH",
		"- **Ready to send:** No",
		"## Why this verdict",
		"- **hard** · DMARC is missing. _(id: dmarc_missing)_",
		"### 1. Investigate blacklist listings and remediate",
		"Steps:",
	} {
		assert.True(t, strings.Contains(md, want), "missing %q", want)
	}

	empty := FormatMarkdown(domain.Report{ScanID: "x"})
	assert.Contains(t, empty, "## Blockers\n- None")
	assert.Contains(t, empty, "- No additional reasoning available.")
}
