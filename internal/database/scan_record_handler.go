package database

import (
	"context"
	"fmt"
	"strings"

	"campaignready/internal/domain"
	"campaignready/internal/support"

	"gorm.io/gorm/clause"
)

const defaultHistoryLimit = 20

// NewScanRecord flattens a scored document and its report into a ledger row.
// Rows are keyed by the sending domain, falling back to the website domain.
func NewScanRecord(doc domain.ScanDocument, rep domain.Report, hardStopReasons []string) domain.ScanRecord {
	host := support.HostFromURL(doc.Inputs.WebsiteURL)
	key := support.SendingDomain(doc.Inputs.SendingEmail)
	if key == "" {
		key = support.RegistrableDomain(host)
	}

	blockers := make(domain.StringList, 0, len(rep.Blockers))
	for _, b := range rep.Blockers {
		blockers = append(blockers, string(b.ID))
	}

	return domain.ScanRecord{
		ScanID:            doc.ScanID,
		Domain:            key,
		WebsiteHost:       host,
		SendingEmail:      strings.ToLower(strings.TrimSpace(doc.Inputs.SendingEmail)),
		EmailScore:        rep.Scores.Email.Score,
		WebsiteScore:      rep.Scores.Website.Score,
		CampaignScore:     rep.Scores.Campaign.Score,
		Verdict:           rep.Verdict,
		ReadyToSend:       rep.ReadyToSend,
		Confidence:        rep.Confidence,
		BlockerIDs:        blockers,
		HardStopReasons:   domain.StringList(append([]string(nil), hardStopReasons...)),
		RuntimeMs:         doc.Meta.RuntimeMs,
		ScannerRegion:     doc.Meta.ScannerRegion,
		CreatedAt:         doc.CreatedAt,
		ReportGeneratedAt: rep.GeneratedAt,
	}
}

// RecordScan inserts the row or, when the scan was re-scored, replaces its scores.
func RecordScan(ctx context.Context, rec domain.ScanRecord) error {
	if DB == nil {
		return errNotConfigured
	}
	if rec.ScanID == "" {
		return fmt.Errorf("scan record: scan id is required")
	}

	tx := DB
	if ctx != nil {
		tx = tx.WithContext(ctx)
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scan_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email_score", "website_score", "campaign_score", "verdict", "ready_to_send",
			"confidence", "blocker_ids", "hard_stop_reasons", "runtime_ms", "report_generated_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("scan record: upsert %s: %w", rec.ScanID, err)
	}
	return nil
}

// RecentScansByDomain returns the newest ledger rows for a domain, newest first.
func RecentScansByDomain(ctx context.Context, domainName string, limit int) ([]domain.ScanRecord, error) {
	if DB == nil {
		return nil, errNotConfigured
	}

	key := support.RegistrableDomain(domainName)
	if key == "" {
		return []domain.ScanRecord{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	tx := DB
	if ctx != nil {
		tx = tx.WithContext(ctx)
	}

	rows := make([]domain.ScanRecord, 0, limit)
	if err := tx.Where("domain = ?", key).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan record: history for %s: %w", key, err)
	}
	return rows, nil
}

// VerdictCounts aggregates ledger rows per verdict for a domain.
func VerdictCounts(ctx context.Context, domainName string) (map[domain.RiskLevel]int64, error) {
	if DB == nil {
		return nil, errNotConfigured
	}

	tx := DB
	if ctx != nil {
		tx = tx.WithContext(ctx)
	}

	var counts []struct {
		Verdict domain.RiskLevel
		Total   int64
	}
	if err := tx.Model(&domain.ScanRecord{}).
		Select("verdict, COUNT(*) AS total").
		Where("domain = ?", support.RegistrableDomain(domainName)).
		Group("verdict").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("scan record: verdict counts: %w", err)
	}

	out := make(map[domain.RiskLevel]int64, len(counts))
	for _, row := range counts {
		out[row.Verdict] = row.Total
	}
	return out, nil
}
