package domain

import "time"

const SchemaVersion = "1.0"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type RunMode string

const (
	RunSingle          RunMode = "single"
	RunScheduledWindow RunMode = "scheduled_window"
)

// ScanDocument is the persisted envelope of one scan.
type ScanDocument struct {
	SchemaVersion string           `json:"schema_version"`
	ScanID        string           `json:"scan_id"`
	CreatedAt     time.Time        `json:"created_at"`
	Tenant        *Tenant          `json:"tenant,omitempty"`
	Inputs        ScanInputs       `json:"inputs"`
	Scores        ScanScores       `json:"scores"`
	EmailScan     EmailEvidence    `json:"email_scan"`
	WebsiteScan   *WebsiteEvidence `json:"website_scan"`
	Summary       *ScanSummary     `json:"summary,omitempty"`
	Meta          ScanMeta         `json:"meta"`
}

type Tenant struct {
	BrandID     string      `json:"brand_id,omitempty"`
	OwnerUserID string      `json:"owner_user_id,omitempty"`
	WhiteLabel  *WhiteLabel `json:"white_label,omitempty"`
}

type WhiteLabel struct {
	BrandName    string `json:"brand_name,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`
	PrimaryColor string `json:"primary_color,omitempty"`
	ReportDomain string `json:"report_domain,omitempty"`
	CTAURL       string `json:"cta_url,omitempty"`
}

type ScanInputs struct {
	WebsiteURL   string     `json:"website_url"`
	SendingEmail string     `json:"sending_email"`
	ContactEmail string     `json:"contact_email,omitempty"`
	SendWindow   SendWindow `json:"send_window"`
}

type SendWindow struct {
	Enabled         bool       `json:"enabled"`
	Timezone        string     `json:"timezone"`
	ScheduledSendAt *time.Time `json:"scheduled_send_at,omitempty"`
}

type ScanScores struct {
	EmailReadiness   ScoreOutOf `json:"email_readiness"`
	WebsiteReadiness ScoreOutOf `json:"website_readiness"`
	CampaignRisk     RiskOutOf  `json:"campaign_risk"`
}

type ScoreOutOf struct {
	Score int `json:"score"`
	Max   int `json:"max"`
}

type RiskOutOf struct {
	Level RiskLevel `json:"level"`
	Score int       `json:"score"`
	Max   int       `json:"max"`
}

type ScanSummary struct {
	KeyInsight    string            `json:"key_insight,omitempty"`
	TopPriorities []FindingPriority `json:"top_priorities,omitempty"`
}

type FindingPriority struct {
	FindingID string `json:"finding_id"`
	Priority  int    `json:"priority"`
}

type ScanMeta struct {
	RunMode       RunMode `json:"run_mode"`
	ScannerRegion string  `json:"scanner_region"`
	RuntimeMs     int64   `json:"runtime_ms"`
}

// NewScanDocument returns a document with empty evidence and zeroed scores.
func NewScanDocument(scanID string, createdAt time.Time, inputs ScanInputs, region string) ScanDocument {
	if inputs.SendWindow.Timezone == "" {
		inputs.SendWindow.Timezone = "Europe/Amsterdam"
	}
	return ScanDocument{
		SchemaVersion: SchemaVersion,
		ScanID:        scanID,
		CreatedAt:     createdAt.UTC(),
		Inputs:        inputs,
		Scores: ScanScores{
			EmailReadiness:   ScoreOutOf{Max: 100},
			WebsiteReadiness: ScoreOutOf{Max: 100},
			CampaignRisk:     RiskOutOf{Level: RiskLow, Max: 100},
		},
		Meta: ScanMeta{RunMode: RunSingle, ScannerRegion: region},
	}
}

// Website returns the website evidence or an empty value when sampling has not run.
func (d ScanDocument) Website() WebsiteEvidence {
	if d.WebsiteScan == nil {
		return WebsiteEvidence{}
	}
	return *d.WebsiteScan
}
