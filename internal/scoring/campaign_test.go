package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"campaignready/internal/domain"
)

func healthyInput() CampaignRiskInput {
	return CampaignRiskInput{
		EmailScore:     95,
		EmailSignals:   EmailSignals{DMARCEnforced: true},
		WebsiteScore:   95,
		WebsiteSignals: WebsiteSignals{Stability: domain.StabilityStable},
	}
}

func TestScoreCampaignRiskHealthy(t *testing.T) {
	res := ScoreCampaignRisk(healthyInput())

	assert.Equal(t, 100, res.Score)
	assert.Equal(t, domain.RiskLow, res.Level)
	assert.False(t, res.HardStopApplied)
	assert.Empty(t, res.HardStopReasons)
}

func TestScoreCampaignRiskHardStopOverridesHighScores(t *testing.T) {
	in := healthyInput()
	policy := "none"
	in.DMARCPolicy = &policy

	res := ScoreCampaignRisk(in)

	assert.Equal(t, domain.RiskHigh, res.Level)
	assert.LessOrEqual(t, res.Score, 59)
	assert.True(t, res.HardStopApplied)
	assert.Equal(t, []string{ReasonDMARCPolicyNone}, res.HardStopReasons)
}

func TestScoreCampaignRiskHardStopReasonOrder(t *testing.T) {
	in := healthyInput()
	in.DMARCPresent = domain.Bool(false)
	in.EmailSignals.Blacklisted = true
	in.WebsiteScore = 40
	in.WebsiteSignals = WebsiteSignals{
		Stability:         domain.StabilityUnstable,
		SendWindowEnabled: true,
		MobileLCPP95Ms:    domain.Float(4200),
	}

	res := ScoreCampaignRisk(in)

	assert.Equal(t, []string{
		ReasonDMARCMissing,
		ReasonBlacklisted,
		ReasonWebsiteUnstable,
		ReasonMobileLCPInSendWindow,
		ReasonWebsiteScoreBelowFifty,
	}, res.HardStopReasons)
	assert.Equal(t, domain.RiskHigh, res.Level)
}

func TestScoreCampaignRiskUnknownDMARCIsNotAHardStop(t *testing.T) {
	in := healthyInput()
	in.EmailScore = 85

	res := ScoreCampaignRisk(in)

	assert.False(t, res.HardStopApplied)
	assert.Equal(t, 90, res.Score)
}

func TestScoreCampaignRiskDeductions(t *testing.T) {
	in := healthyInput()
	in.EmailScore = 70
	in.EmailSignals.AuthCritical = true
	in.WebsiteScore = 80
	in.WebsiteSignals.MobileLCPP95Ms = domain.Float(3500)
	in.WebsiteSignals.MobileTTFBP95Ms = domain.Float(1300)
	in.WebsiteSignals.Stability = domain.StabilityVariable

	res := ScoreCampaignRisk(in)

	// 100 - 20 - 20 - 5 - 10 - 10 - 10
	assert.Equal(t, 25, res.Score)
	assert.Equal(t, domain.RiskHigh, res.Level)
	assert.False(t, res.HardStopApplied)
}

func TestScoreCampaignRiskMediumBand(t *testing.T) {
	in := healthyInput()
	in.EmailScore = 80
	in.WebsiteScore = 80

	res := ScoreCampaignRisk(in)

	assert.Equal(t, 85, res.Score)
	assert.Equal(t, domain.RiskLow, res.Level)

	in.EmailScore = 70
	res = ScoreCampaignRisk(in)
	assert.Equal(t, 75, res.Score)
	assert.Equal(t, domain.RiskMedium, res.Level)
}

func TestCampaignInputFromCarriesExplicitDMARCFlags(t *testing.T) {
	ev := domain.EmailEvidence{Checks: domain.EmailChecks{
		DMARC: &domain.DMARCCheck{Present: domain.Bool(true), Policy: "None"},
	}}

	in := CampaignInputFrom(ev, ScoreEmail(ev), ScoreWebsite(domain.WebsiteEvidence{}, false))

	if assert.NotNil(t, in.DMARCPresent) {
		assert.True(t, *in.DMARCPresent)
	}
	if assert.NotNil(t, in.DMARCPolicy) {
		assert.Equal(t, "none", *in.DMARCPolicy)
	}

	empty := CampaignInputFrom(domain.EmailEvidence{}, ScoreEmail(domain.EmailEvidence{}), WebsiteScore{})
	assert.Nil(t, empty.DMARCPresent)
	assert.Nil(t, empty.DMARCPolicy)
}

func TestScoresStayInRangeForRandomEvidence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	results := []string{"pass", "fail", "softfail", "neutral", "permerror", "unknown", ""}
	policies := []string{"none", "quarantine", "reject", "", "bogus"}
	stabilities := []domain.Stability{domain.StabilityStable, domain.StabilityVariable, domain.StabilityUnstable, ""}

	maybeBool := func() *bool {
		switch rng.Intn(3) {
		case 0:
			return nil
		case 1:
			return domain.Bool(true)
		default:
			return domain.Bool(false)
		}
	}
	maybeFloat := func(limit float64) *float64 {
		if rng.Intn(4) == 0 {
			return nil
		}
		return domain.Float(rng.Float64() * limit)
	}

	for i := 0; i < 500; i++ {
		email := domain.EmailEvidence{Checks: domain.EmailChecks{
			SPF:        &domain.SPFCheck{Present: maybeBool(), Result: results[rng.Intn(len(results))], DNSLookupCount: domain.Int(rng.Intn(20))},
			DKIM:       &domain.DKIMCheck{Present: maybeBool(), Result: results[rng.Intn(len(results))], Alignment: "not_aligned"},
			DMARC:      &domain.DMARCCheck{Present: maybeBool(), Policy: policies[rng.Intn(len(policies))], Pct: domain.Int(rng.Intn(101))},
			MX:         &domain.MXCheck{TLS: &domain.TLSCheck{Supported: maybeBool()}},
			Blacklists: &domain.BlacklistCheck{Listed: maybeBool()},
		}}
		web := domain.WebsiteEvidence{Aggregates: domain.WebsiteAggregates{
			Mobile:    domain.DeviceVitals{P95: domain.Vitals{TTFBMs: maybeFloat(5000), LCPMs: maybeFloat(9000), CLS: maybeFloat(1), INPMs: maybeFloat(1500)}},
			Desktop:   domain.DeviceVitals{P95: domain.Vitals{TTFBMs: maybeFloat(5000), LCPMs: maybeFloat(9000)}},
			Stability: stabilities[rng.Intn(len(stabilities))],
			Redirects: domain.RedirectCount{Count: rng.Intn(5)},
			Cache:     domain.CacheAggregate{ConsistentHit: maybeBool()},
			Blockers:  domain.BlockerFlags{RenderBlockingJS: rng.Intn(2) == 0, ExcessiveThirdParties: rng.Intn(2) == 0},
		}}
		sendWindow := rng.Intn(2) == 0

		e := ScoreEmail(email)
		w := ScoreWebsite(web, sendWindow)
		c := ScoreCampaignRisk(CampaignInputFrom(email, e, w))

		for _, s := range []int{e.Score, w.Score, c.Score} {
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
		}
		if c.HardStopApplied {
			assert.Equal(t, domain.RiskHigh, c.Level)
			assert.LessOrEqual(t, c.Score, 59)
		}
	}
}

func TestStatusFromScore(t *testing.T) {
	assert.Equal(t, domain.StatusStrong, StatusFromScore(90))
	assert.Equal(t, domain.StatusGood, StatusFromScore(75))
	assert.Equal(t, domain.StatusNeedsImprovement, StatusFromScore(60))
	assert.Equal(t, domain.StatusHighRisk, StatusFromScore(59))
	assert.Equal(t, 0, ClampScore(-12))
	assert.Equal(t, 100, ClampScore(130))
}
