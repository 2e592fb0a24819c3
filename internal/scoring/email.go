package scoring

import "campaignready/internal/domain"

const emailBonusCap = 5

type EmailPenalties struct {
	SPF        int `json:"spf"`
	DKIM       int `json:"dkim"`
	DMARC      int `json:"dmarc"`
	Transport  int `json:"transport"`
	Reputation int `json:"reputation"`
}

func (p EmailPenalties) total() int {
	return p.SPF + p.DKIM + p.DMARC + p.Transport + p.Reputation
}

type EmailSignals struct {
	DMARCEnforced bool `json:"dmarc_enforced"`
	AuthCritical  bool `json:"auth_critical"`
	Blacklisted   bool `json:"blacklisted"`
}

type EmailScore struct {
	Score        int                    `json:"score"`
	Status       domain.ReadinessStatus `json:"status"`
	BonusApplied int                    `json:"bonus_applied"`
	Penalties    EmailPenalties         `json:"penalties"`
	Signals      EmailSignals           `json:"signals"`
}

// ScoreEmail rates the authentication posture of the sending domain.
func ScoreEmail(ev domain.EmailEvidence) EmailScore {
	penalties := EmailPenalties{
		DMARC:      dmarcPenalty(ev),
		DKIM:       dkimPenalty(ev),
		SPF:        spfPenalty(ev),
		Transport:  transportPenalty(ev),
		Reputation: reputationPenalty(ev),
	}
	bonus := emailBonus(ev)

	score := ClampScore(100 - penalties.total() + bonus)

	return EmailScore{
		Score:        score,
		Status:       StatusFromScore(score),
		BonusApplied: bonus,
		Penalties:    penalties,
		Signals:      emailSignals(ev),
	}
}

func dmarcPenalty(ev domain.EmailEvidence) int {
	if !ev.DMARCPresent() {
		return 30
	}
	penalty := 0
	switch ev.DMARCPolicy() {
	case domain.PolicyNone:
		penalty += 20
	case domain.PolicyQuarantine:
		penalty += 10
	}
	if ev.DMARCPct() < 100 {
		penalty += 5
	}
	return penalty
}

func dkimPenalty(ev domain.EmailEvidence) int {
	if !ev.DKIMPresent() {
		return 20
	}
	penalty := 0
	if ev.DKIMResult() == domain.ResultFail {
		penalty += 20
	}
	if ev.DKIMAlignment() == domain.AlignmentNotAligned {
		penalty += 10
	}
	return penalty
}

func spfPenalty(ev domain.EmailEvidence) int {
	if !ev.SPFPresent() {
		return 15
	}
	penalty := 0
	result := ev.SPFResult()
	switch {
	case domain.IsSPFFailing(result):
		penalty += 15
	case domain.IsSPFWeak(result):
		penalty += 5
	}
	if ev.SPFAlignment() == domain.AlignmentNotAligned {
		penalty += 5
	}
	if ev.SPFLookups() > 10 {
		penalty += 5
	}
	return penalty
}

func transportPenalty(ev domain.EmailEvidence) int {
	penalty := 0
	if ev.MXTLSExplicitlyUnsupported() {
		penalty += 10
	}
	if !ev.MTASTSPresent() {
		penalty += 5
	}
	return penalty
}

func reputationPenalty(ev domain.EmailEvidence) int {
	if ev.Blacklisted() {
		return 30
	}
	return 0
}

func emailBonus(ev domain.EmailEvidence) int {
	bonus := 0
	if ev.DMARCAlignmentMode() == domain.AlignmentStrict {
		bonus += 3
	}
	if ev.DKIMSelectorCount() >= 2 {
		bonus += 2
	}
	if ev.MTASTSMode() == domain.MTASTSEnforce {
		bonus += 2
	}
	if ev.TLSRPTPresent() {
		bonus++
	}
	if ev.BIMIPresent() {
		bonus += 2
	}
	return capAt(bonus, emailBonusCap)
}

func emailSignals(ev domain.EmailEvidence) EmailSignals {
	dmarcPresent := ev.DMARCPresent()
	policy := ev.DMARCPolicy()

	authCritical := !dmarcPresent || policy == domain.PolicyNone
	if ev.DKIMPresent() && ev.DKIMResult() == domain.ResultFail {
		authCritical = true
	}
	if ev.SPFPresent() && domain.IsSPFFailing(ev.SPFResult()) {
		authCritical = true
	}

	return EmailSignals{
		DMARCEnforced: dmarcPresent && (policy == domain.PolicyQuarantine || policy == domain.PolicyReject),
		AuthCritical:  authCritical,
		Blacklisted:   ev.Blacklisted(),
	}
}
