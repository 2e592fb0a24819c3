package report

import (
	"fmt"
	"sort"

	"campaignready/internal/domain"
	"campaignready/internal/scoring"
)

const (
	maxBlockers   = 8
	maxWhyEntries = 5
	maxTopActions = 5
)

// Input is everything a report is derived from.
type Input struct {
	ScanID  string
	Email   domain.EmailEvidence
	Website domain.WebsiteEvidence
	Inputs  domain.ScanInputs
}

// InputFromDocument extracts the report input from a stored scan.
func InputFromDocument(doc domain.ScanDocument) Input {
	return Input{
		ScanID:  doc.ScanID,
		Email:   doc.EmailScan,
		Website: doc.Website(),
		Inputs:  doc.Inputs,
	}
}

func (in Input) sendWindowEnabled() bool {
	return in.Inputs.SendWindow.Enabled
}

// Scores bundles the three scorer results for one report pass.
type Scores struct {
	Email    scoring.EmailScore
	Website  scoring.WebsiteScore
	Campaign scoring.CampaignRisk
}

func (s Scores) Verdict() domain.RiskLevel {
	return s.Campaign.Level
}

// ComputeScores runs all three scorers over the report input.
func ComputeScores(in Input) Scores {
	email := scoring.ScoreEmail(in.Email)
	web := scoring.ScoreWebsite(in.Website, in.sendWindowEnabled())
	risk := scoring.ScoreCampaignRisk(scoring.CampaignInputFrom(in.Email, email, web))
	return Scores{Email: email, Website: web, Campaign: risk}
}

func DeriveConfidence(in Input) domain.Confidence {
	auth := in.Email.HasAuthEvidence()
	vitals := in.Website.HasVitals()
	switch {
	case auth && vitals:
		return domain.ConfidenceHigh
	case auth || vitals:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func DeriveBlockers(in Input, websiteScore int) []domain.Blocker {
	ev := in.Email
	blockers := make([]domain.Blocker, 0, maxBlockers)
	add := func(id domain.BlockerID, severity domain.Severity, message string) {
		blockers = append(blockers, domain.Blocker{ID: id, Severity: severity, Message: message})
	}

	if !ev.DKIMPresent() {
		add(domain.BlockerAuthCritical, domain.SeverityHard, "DKIM record not detected via DNS.")
	}

	if !ev.SPFPresent() {
		add(domain.BlockerAuthCritical, domain.SeverityHard, "SPF record is missing.")
	} else if domain.IsSPFWeak(ev.SPFResult()) {
		add(domain.BlockerAuthCritical, domain.SeveritySoft, "SPF is weak (softfail/neutral).")
	}

	if ev.Blacklisted() {
		add(domain.BlockerBlacklisted, domain.SeverityHard, "Blacklist signal detected.")
	}

	if !ev.DMARCPresent() {
		add(domain.BlockerDMARCMissing, domain.SeverityHard, "DMARC is missing.")
	} else if ev.DMARCPolicy() == domain.PolicyNone {
		add(domain.BlockerDMARCPolicyNone, domain.SeveritySoft, "DMARC policy is not enforced (policy=none).")
	}

	stability := in.Website.Aggregates.Stability.OrUnknown()
	lcp, hasLCP := in.Website.MobileLCP()

	if in.sendWindowEnabled() && stability == domain.StabilityUnstable {
		add(domain.BlockerWebsiteUnstable, domain.SeverityHard, "Website is unstable during the planned send window.")
	}
	if in.sendWindowEnabled() && hasLCP && lcp > 4000 {
		add(domain.BlockerMobileLCPOver4s, domain.SeveritySoft, "Mobile LCP exceeds 4 seconds during send window.")
	}
	if websiteScore < 50 {
		add(domain.BlockerWebsiteScoreLow, domain.SeveritySoft, "Website readiness score is below 50.")
	}

	if len(blockers) > maxBlockers {
		blockers = blockers[:maxBlockers]
	}
	return blockers
}

// IsReadyToSend is false for a high verdict or any hard blocker.
func IsReadyToSend(verdict domain.RiskLevel, blockers []domain.Blocker) bool {
	if verdict == domain.RiskHigh {
		return false
	}
	for _, b := range blockers {
		if b.Severity == domain.SeverityHard {
			return false
		}
	}
	return true
}

func BuildWhyList(in Input, emailScore, websiteScore int, verdict domain.RiskLevel) []string {
	ev := in.Email
	var why []string

	if !ev.DMARCPresent() {
		why = append(why, "DMARC is missing (no policy enforcement possible).")
	} else if ev.DMARCPolicy() == domain.PolicyNone {
		why = append(why, "DMARC policy is not enforced (policy=none).")
	}

	if !ev.DKIMPresent() {
		why = append(why, "DKIM signing is missing.")
	}

	spfResult := ev.SPFResult()
	switch {
	case !ev.SPFPresent():
		why = append(why, "SPF record is missing.")
	case domain.IsSPFWeak(spfResult):
		why = append(why, "SPF is weak (softfail/neutral).")
	case domain.IsSPFFailing(spfResult):
		why = append(why, "SPF is failing (fail/permerror).")
	}

	if ev.Blacklisted() {
		why = append(why, "Blacklist signal detected (needs immediate investigation).")
	}

	stability := in.Website.Aggregates.Stability.OrUnknown()
	lcp, hasLCP := in.Website.MobileLCP()
	ttfb, hasTTFB := in.Website.MobileTTFB()

	if in.sendWindowEnabled() && stability == domain.StabilityUnstable {
		why = append(why, "Website is unstable during the planned send window.")
	}
	if in.sendWindowEnabled() && hasLCP && lcp > 4000 {
		why = append(why, "Mobile LCP exceeds 4 seconds during send window.")
	}
	if hasTTFB && ttfb > 1200 {
		why = append(why, "High server response time (TTFB).")
	}

	if len(why) > maxWhyEntries {
		why = why[:maxWhyEntries]
	}
	if len(why) > 0 {
		return why
	}

	if verdict == domain.RiskLow {
		return []string{"No critical blockers detected. Keep monitoring and iterate on small wins."}
	}
	return []string{
		fmt.Sprintf("Email readiness: %d/100, Website readiness: %d/100.", emailScore, websiteScore),
		"Address the top issues below before your next send.",
	}
}

// actionSet keeps the best priority seen per action id, remembering first-seen
// order so equal priorities rank deterministically.
type actionSet struct {
	order []domain.ActionID
	best  map[domain.ActionID]int
}

func newActionSet() *actionSet {
	return &actionSet{best: make(map[domain.ActionID]int)}
}

func (s *actionSet) add(id domain.ActionID, priority int) {
	current, seen := s.best[id]
	if !seen {
		s.order = append(s.order, id)
		s.best[id] = priority
		return
	}
	if priority > current {
		s.best[id] = priority
	}
}

func (s *actionSet) ranked(limit int) []domain.Action {
	actions := make([]domain.Action, 0, len(s.order))
	for _, id := range s.order {
		actions = append(actions, ActionFor(id, s.best[id]))
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})
	if len(actions) > limit {
		actions = actions[:limit]
	}
	return actions
}

func SelectTopActions(in Input, emailScore, websiteScore int) []domain.Action {
	ev := in.Email
	set := newActionSet()

	dmarcPresent := ev.DMARCPresent()
	dmarcPolicy := ev.DMARCPolicy()
	dkimPresent := ev.DKIMPresent()

	if !dmarcPresent {
		set.add(domain.ActionDMARCAdd, 100)
	} else if dmarcPolicy == domain.PolicyNone {
		set.add(domain.ActionDMARCEnforce, 95)
	}

	if !dkimPresent {
		set.add(domain.ActionDKIMAdd, 90)
	} else if ev.DKIMResult() == domain.ResultFail {
		set.add(domain.ActionDKIMFix, 90)
	}

	spfResult := ev.SPFResult()
	switch {
	case !ev.SPFPresent():
		set.add(domain.ActionSPFAdd, 70)
	case domain.IsSPFFailing(spfResult):
		set.add(domain.ActionSPFFix, 70)
	case domain.IsSPFWeak(spfResult):
		set.add(domain.ActionSPFFix, 55)
	}
	if ev.SPFLookups() > 10 {
		set.add(domain.ActionSPFFix, 60)
	}

	if ev.Blacklisted() {
		set.add(domain.ActionBlacklistCleanup, 110)
	}

	agg := in.Website.Aggregates
	if in.sendWindowEnabled() && agg.Stability.OrUnknown() == domain.StabilityUnstable {
		set.add(domain.ActionStabilizeSendWindow, 100)
	}

	if lcp, ok := in.Website.MobileLCP(); ok {
		switch {
		case lcp > 4000:
			set.add(domain.ActionReduceLCP, 85)
		case lcp > 3000:
			set.add(domain.ActionReduceLCP, 70)
		}
	}
	if ttfb, ok := in.Website.MobileTTFB(); ok {
		switch {
		case ttfb > 1800:
			set.add(domain.ActionReduceTTFB, 85)
		case ttfb > 1200:
			set.add(domain.ActionReduceTTFB, 70)
		}
	}

	if agg.Blockers.Any() {
		set.add(domain.ActionReduceRenderBlocking, 60)
	}
	if agg.Cache.ConsistentHit != nil && !*agg.Cache.ConsistentHit {
		set.add(domain.ActionCacheConsistency, 55)
	}

	if websiteScore < 40 {
		set.add(domain.ActionReduceTTFB, 90)
		set.add(domain.ActionReduceLCP, 90)
	}
	if emailScore < 60 {
		if !dmarcPresent {
			set.add(domain.ActionDMARCAdd, 100)
		}
		if dmarcPolicy == domain.PolicyNone {
			set.add(domain.ActionDMARCEnforce, 98)
		}
		if !dkimPresent {
			set.add(domain.ActionDKIMAdd, 95)
		}
	}

	return set.ranked(maxTopActions)
}

// Headline picks the summary line for the verdict. A low verdict only reads as
// near send-ready when both component scores reach 80.
func Headline(verdict domain.RiskLevel, emailScore, websiteScore int) string {
	switch verdict {
	case domain.RiskHigh:
		return "High risk: fix authentication and stability before sending."
	case domain.RiskMedium:
		return "Moderate risk: address key issues to improve deliverability and performance."
	}
	if emailScore >= 80 && websiteScore >= 80 {
		return "Looks good: you’re close to send-ready."
	}
	return "Low risk: a few improvements will make this even stronger."
}
