package scoring

import "campaignready/internal/domain"

const hardStopScoreCeiling = 59

const (
	ReasonDMARCMissing           = "dmarc_missing"
	ReasonDMARCPolicyNone        = "dmarc_policy_none"
	ReasonBlacklisted            = "blacklisted"
	ReasonWebsiteUnstable        = "website_unstable"
	ReasonMobileLCPInSendWindow  = "mobile_lcp_gt_4s_during_send_window"
	ReasonWebsiteScoreBelowFifty = "website_score_lt_50"
)

// CampaignRiskInput carries the component scores plus the explicit DMARC flags.
// DMARCPresent and DMARCPolicy are nil when the evidence did not state them.
type CampaignRiskInput struct {
	EmailScore   int
	EmailSignals EmailSignals
	DMARCPresent *bool
	DMARCPolicy  *string

	WebsiteScore   int
	WebsiteSignals WebsiteSignals
}

type CampaignRisk struct {
	Score           int              `json:"score"`
	Level           domain.RiskLevel `json:"level"`
	HardStopApplied bool             `json:"hard_stop_applied"`
	HardStopReasons []string         `json:"hard_stop_reasons"`
}

// CampaignInputFrom assembles the campaign input from both component results.
func CampaignInputFrom(ev domain.EmailEvidence, email EmailScore, web WebsiteScore) CampaignRiskInput {
	in := CampaignRiskInput{
		EmailScore:     email.Score,
		EmailSignals:   email.Signals,
		WebsiteScore:   web.Score,
		WebsiteSignals: web.Signals,
	}
	if present, known := ev.DMARCPresence(); known {
		in.DMARCPresent = &present
	}
	if policy, known := ev.DMARCPolicyKnown(); known {
		in.DMARCPolicy = &policy
	}
	return in
}

// ScoreCampaignRisk folds both component scores into a send/no-send risk level.
// Hard-stop conditions force the level to high regardless of the weighted score.
func ScoreCampaignRisk(in CampaignRiskInput) CampaignRisk {
	reasons := hardStopReasons(in)

	risk := 100

	switch e := in.EmailScore; {
	case e < 60:
		risk -= 30
	case e < 75:
		risk -= 20
	case e < 90:
		risk -= 10
	}
	if in.EmailSignals.AuthCritical {
		risk -= 20
	}

	switch w := in.WebsiteScore; {
	case w < 60:
		risk -= 25
	case w < 75:
		risk -= 15
	case w < 90:
		risk -= 5
	}

	web := in.WebsiteSignals
	if web.MobileLCPP95Ms != nil && *web.MobileLCPP95Ms > 3000 {
		risk -= 10
	}
	if web.MobileTTFBP95Ms != nil && *web.MobileTTFBP95Ms > 1200 {
		risk -= 10
	}
	switch web.Stability {
	case domain.StabilityVariable:
		risk -= 10
	case domain.StabilityUnstable:
		risk -= 20
	}

	risk = ClampScore(risk)

	if len(reasons) > 0 {
		return CampaignRisk{
			Score:           min(risk, hardStopScoreCeiling),
			Level:           domain.RiskHigh,
			HardStopApplied: true,
			HardStopReasons: reasons,
		}
	}

	return CampaignRisk{
		Score:           risk,
		Level:           levelFromRiskScore(risk),
		HardStopReasons: []string{},
	}
}

func hardStopReasons(in CampaignRiskInput) []string {
	var reasons []string
	if in.DMARCPresent != nil && !*in.DMARCPresent {
		reasons = append(reasons, ReasonDMARCMissing)
	}
	if in.DMARCPolicy != nil && *in.DMARCPolicy == domain.PolicyNone {
		reasons = append(reasons, ReasonDMARCPolicyNone)
	}
	if in.EmailSignals.Blacklisted {
		reasons = append(reasons, ReasonBlacklisted)
	}
	web := in.WebsiteSignals
	if web.Stability == domain.StabilityUnstable {
		reasons = append(reasons, ReasonWebsiteUnstable)
	}
	if web.SendWindowEnabled && web.MobileLCPP95Ms != nil && *web.MobileLCPP95Ms > 4000 {
		reasons = append(reasons, ReasonMobileLCPInSendWindow)
	}
	if in.WebsiteScore < 50 {
		reasons = append(reasons, ReasonWebsiteScoreBelowFifty)
	}
	return reasons
}

func levelFromRiskScore(score int) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskLow
	case score >= 60:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}
