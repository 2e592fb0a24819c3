package domain

import "time"

const ReportVersion = "1.0"

type ReadinessStatus string

const (
	StatusStrong           ReadinessStatus = "strong"
	StatusGood             ReadinessStatus = "good"
	StatusNeedsImprovement ReadinessStatus = "needs_improvement"
	StatusHighRisk         ReadinessStatus = "high_risk"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

type BlockerID string

const (
	BlockerBlacklisted     BlockerID = "blacklisted"
	BlockerDMARCMissing    BlockerID = "dmarc_missing"
	BlockerDMARCPolicyNone BlockerID = "dmarc_policy_none"
	BlockerAuthCritical    BlockerID = "auth_critical"
	BlockerWebsiteUnstable BlockerID = "website_unstable"
	BlockerMobileLCPOver4s BlockerID = "mobile_lcp_gt_4s"
	BlockerWebsiteScoreLow BlockerID = "website_score_lt_50"
)

type Blocker struct {
	ID       BlockerID `json:"id"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

type ActionID string

const (
	ActionDMARCEnforce         ActionID = "dmarc_enforce"
	ActionDMARCAdd             ActionID = "dmarc_add"
	ActionDKIMAdd              ActionID = "dkim_add"
	ActionDKIMFix              ActionID = "dkim_fix"
	ActionSPFAdd               ActionID = "spf_add"
	ActionSPFFix               ActionID = "spf_fix"
	ActionBlacklistCleanup     ActionID = "blacklist_cleanup"
	ActionReduceLCP            ActionID = "reduce_lcp"
	ActionReduceTTFB           ActionID = "reduce_ttfb"
	ActionStabilizeSendWindow  ActionID = "stabilize_send_window"
	ActionReduceRenderBlocking ActionID = "reduce_render_blocking"
	ActionCacheConsistency     ActionID = "cache_consistency"
)

type Rating string

const (
	RatingHigh   Rating = "high"
	RatingMedium Rating = "medium"
	RatingLow    Rating = "low"
)

// Action is a remediation recommendation. Priority only orders the list.
type Action struct {
	ID       ActionID `json:"id"`
	Title    string   `json:"title"`
	Why      string   `json:"why"`
	Impact   Rating   `json:"impact"`
	Effort   Rating   `json:"effort"`
	Steps    []string `json:"steps"`
	Priority int      `json:"-"`
}

type Report struct {
	ReportVersion string       `json:"report_version"`
	GeneratedAt   time.Time    `json:"generated_at"`
	ScanID        string       `json:"scan_id"`
	Headline      string       `json:"headline"`
	Verdict       RiskLevel    `json:"verdict"`
	Confidence    Confidence   `json:"confidence"`
	ReadyToSend   bool         `json:"ready_to_send"`
	Blockers      []Blocker    `json:"blockers"`
	Scores        ReportScores `json:"scores"`
	Why           []string     `json:"why"`
	TopActions    []Action     `json:"top_actions"`
}

type ReportScores struct {
	Email    StatusScore   `json:"email"`
	Website  StatusScore   `json:"website"`
	Campaign CampaignScore `json:"campaign"`
}

type StatusScore struct {
	Score  int             `json:"score"`
	Status ReadinessStatus `json:"status"`
}

type CampaignScore struct {
	Score int       `json:"score"`
	Level RiskLevel `json:"level"`
}
