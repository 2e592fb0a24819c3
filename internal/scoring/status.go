package scoring

import "campaignready/internal/domain"

func StatusFromScore(score int) domain.ReadinessStatus {
	switch {
	case score >= 90:
		return domain.StatusStrong
	case score >= 75:
		return domain.StatusGood
	case score >= 60:
		return domain.StatusNeedsImprovement
	default:
		return domain.StatusHighRisk
	}
}

func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func capAt(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}
