package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"campaignready/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"
)

func setupScanRecordTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	_, err := SetupDB(
		WithDialector(sqlite.Open(dsn)),
		WithLogger(logger.Discard),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = Close()
	})
}

func sampleRecord(id string, created time.Time, verdict domain.RiskLevel) domain.ScanRecord {
	return domain.ScanRecord{
		ScanID:        id,
		Domain:        "shop.co.uk",
		WebsiteHost:   "www.shop.co.uk",
		SendingEmail:  "news@mail.shop.co.uk",
		EmailScore:    90,
		WebsiteScore:  80,
		CampaignScore: 85,
		Verdict:       verdict,
		ReadyToSend:   verdict == domain.RiskLow,
		Confidence:    domain.ConfidenceHigh,
		BlockerIDs:    domain.StringList{},
		CreatedAt:     created,
	}
}

func TestRecordScanAndHistory(t *testing.T) {
	setupScanRecordTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, RecordScan(ctx, sampleRecord("a", base, domain.RiskLow)))
	require.NoError(t, RecordScan(ctx, sampleRecord("b", base.Add(time.Hour), domain.RiskHigh)))
	require.NoError(t, RecordScan(ctx, sampleRecord("c", base.Add(2*time.Hour), domain.RiskMedium)))

	rows, err := RecentScansByDomain(ctx, "mail.shop.co.uk", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].ScanID)
	assert.Equal(t, "b", rows[1].ScanID)

	none, err := RecentScansByDomain(ctx, "other.example", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordScanUpsertsRescoredScan(t *testing.T) {
	setupScanRecordTestDB(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := sampleRecord("same", created, domain.RiskHigh)
	first.BlockerIDs = domain.StringList{string(domain.BlockerDMARCMissing)}
	require.NoError(t, RecordScan(ctx, first))

	second := sampleRecord("same", created, domain.RiskLow)
	second.CampaignScore = 92
	require.NoError(t, RecordScan(ctx, second))

	rows, err := RecentScansByDomain(ctx, "shop.co.uk", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.RiskLow, rows[0].Verdict)
	assert.Equal(t, 92, rows[0].CampaignScore)
	assert.Empty(t, rows[0].BlockerIDs)
}

func TestVerdictCounts(t *testing.T) {
	setupScanRecordTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, RecordScan(ctx, sampleRecord("1", now, domain.RiskLow)))
	require.NoError(t, RecordScan(ctx, sampleRecord("2", now, domain.RiskLow)))
	require.NoError(t, RecordScan(ctx, sampleRecord("3", now, domain.RiskHigh)))

	counts, err := VerdictCounts(ctx, "shop.co.uk")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.RiskLow])
	assert.Equal(t, int64(1), counts[domain.RiskHigh])
}

func TestRecordScanRequiresConnection(t *testing.T) {
	DB = nil
	assert.Error(t, RecordScan(context.Background(), sampleRecord("x", time.Now(), domain.RiskLow)))
	_, err := RecentScansByDomain(context.Background(), "shop.co.uk", 1)
	assert.Error(t, err)
}

func TestNewScanRecord(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := domain.NewScanDocument("id-1", created, domain.ScanInputs{
		WebsiteURL:   "https://www.shop.co.uk/landing",
		SendingEmail: " News@Mail.Shop.co.uk ",
	}, "eu-west")
	doc.Meta.RuntimeMs = 321
	rep := domain.Report{
		ScanID:      "id-1",
		GeneratedAt: created.Add(time.Second),
		Verdict:     domain.RiskHigh,
		Blockers: []domain.Blocker{
			{ID: domain.BlockerBlacklisted, Severity: domain.SeverityHard},
		},
	}

	rec := NewScanRecord(doc, rep, []string{"blacklisted"})

	assert.Equal(t, "shop.co.uk", rec.Domain)
	assert.Equal(t, "www.shop.co.uk", rec.WebsiteHost)
	assert.Equal(t, "news@mail.shop.co.uk", rec.SendingEmail)
	assert.Equal(t, domain.StringList{"blacklisted"}, rec.BlockerIDs)
	assert.Equal(t, domain.StringList{"blacklisted"}, rec.HardStopReasons)
	assert.Equal(t, int64(321), rec.RuntimeMs)
	assert.Equal(t, "eu-west", rec.ScannerRegion)
}

func TestNewScanRecordFallsBackToWebsiteDomain(t *testing.T) {
	doc := domain.NewScanDocument("id-2", time.Now(), domain.ScanInputs{WebsiteURL: "https://blog.example.org"}, "local")

	rec := NewScanRecord(doc, domain.Report{}, nil)

	assert.Equal(t, "example.org", rec.Domain)
}

func TestSetupDBWithSQLiteDriverFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "file:"+t.Name()+"?mode=memory&cache=shared")
	t.Cleanup(func() { _ = Close() })

	db, err := SetupDB(WithLogger(logger.Discard))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())
	assert.True(t, Enabled())
	assert.True(t, db.Migrator().HasTable(&domain.ScanRecord{}))
}

func TestSetupDBRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	_, err := SetupDB()
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}
