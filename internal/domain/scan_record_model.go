package domain

import "time"

// ScanRecord is the queryable ledger row written once a scan has a report.
// The scan document itself stays in the file store.
type ScanRecord struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	ScanID            string     `gorm:"size:64;not null;uniqueIndex" json:"scan_id"`
	Domain            string     `gorm:"size:255;not null;index:idx_scan_records_domain_created,priority:1" json:"domain"`
	WebsiteHost       string     `gorm:"size:255" json:"website_host"`
	SendingEmail      string     `gorm:"size:320" json:"sending_email"`
	EmailScore        int        `gorm:"not null" json:"email_score"`
	WebsiteScore      int        `gorm:"not null" json:"website_score"`
	CampaignScore     int        `gorm:"not null" json:"campaign_score"`
	Verdict           RiskLevel  `gorm:"size:16;not null;index" json:"verdict"`
	ReadyToSend       bool       `gorm:"not null" json:"ready_to_send"`
	Confidence        Confidence `gorm:"size:16" json:"confidence"`
	BlockerIDs        StringList `gorm:"type:text" json:"blocker_ids"`
	HardStopReasons   StringList `gorm:"type:text" json:"hard_stop_reasons"`
	RuntimeMs         int64      `json:"runtime_ms"`
	ScannerRegion     string     `gorm:"size:64" json:"scanner_region"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index:idx_scan_records_domain_created,priority:2" json:"created_at"`
	ReportGeneratedAt time.Time  `json:"report_generated_at"`
}
