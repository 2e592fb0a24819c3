package report

import (
	"time"

	"campaignready/internal/domain"
)

// Generate derives a complete report. It is a pure function of its input and
// the supplied timestamp.
func Generate(in Input, now time.Time) domain.Report {
	scores := ComputeScores(in)
	return Build(in, scores, now)
}

// Build assembles a report from precomputed scores.
func Build(in Input, scores Scores, now time.Time) domain.Report {
	verdict := scores.Verdict()
	emailScore := scores.Email.Score
	webScore := scores.Website.Score

	blockers := DeriveBlockers(in, webScore)

	return domain.Report{
		ReportVersion: domain.ReportVersion,
		GeneratedAt:   now.UTC(),
		ScanID:        in.ScanID,
		Headline:      Headline(verdict, emailScore, webScore),
		Verdict:       verdict,
		Confidence:    DeriveConfidence(in),
		ReadyToSend:   IsReadyToSend(verdict, blockers),
		Blockers:      blockers,
		Scores: domain.ReportScores{
			Email:    domain.StatusScore{Score: emailScore, Status: scores.Email.Status},
			Website:  domain.StatusScore{Score: webScore, Status: scores.Website.Status},
			Campaign: domain.CampaignScore{Score: scores.Campaign.Score, Level: scores.Campaign.Level},
		},
		Why:        BuildWhyList(in, emailScore, webScore, verdict),
		TopActions: SelectTopActions(in, emailScore, webScore),
	}
}

// DocumentScores maps scorer output onto the persisted score envelope.
func DocumentScores(scores Scores) domain.ScanScores {
	return domain.ScanScores{
		EmailReadiness:   domain.ScoreOutOf{Score: scores.Email.Score, Max: 100},
		WebsiteReadiness: domain.ScoreOutOf{Score: scores.Website.Score, Max: 100},
		CampaignRisk:     domain.RiskOutOf{Level: scores.Campaign.Level, Score: scores.Campaign.Score, Max: 100},
	}
}
