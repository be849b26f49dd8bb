package kpi

import (
	"math"

	"apar/internal/domain/weights"
)

// KPIScore is achievement against target as a percentage in [0, 100].
func KPIScore(achieved, target float64) float64 {
	if target <= 0 || math.IsNaN(achieved) || math.IsInf(achieved, 0) {
		return 0
	}
	return weights.Round(clamp(achieved/target*100, 0, 100))
}

func RecordStatus(score float64) string {
	switch {
	case score >= 100:
		return RecordStatusAchieved
	case score > 0:
		return RecordStatusInProgress
	default:
		return RecordStatusNotStarted
	}
}

func Grade(score float64) string {
	switch {
	case score >= 90:
		return GradeOutstanding
	case score >= 75:
		return GradeVeryGood
	case score >= 60:
		return GradeGood
	case score >= 40:
		return GradeAverage
	default:
		return GradeBelowAverage
	}
}

// Aggregate combines per-KPI scores by weightage. Weightages that do not sum
// to 100 within tolerance are renormalized first.
func Aggregate(records []Record) ScoreCard {
	card := ScoreCard{Items: make([]ScoreItem, 0, len(records))}
	if len(records) == 0 {
		card.Grade = Grade(0)
		return card
	}

	ws := activeWeightages(records)
	if !weights.ValidateWeightTotal(ws, weights.DefaultTolerance).Valid {
		card.Renormalized = true
		normalized := weights.ToMap(weights.Normalize(ws))
		for i := range ws {
			ws[i].Value = normalized[ws[i].Name]
		}
	}

	var total float64
	for i, rec := range records {
		score := KPIScore(rec.AchievedValue, rec.Target)
		weighted := score * ws[i].Value / 100
		total += weighted
		card.Items = append(card.Items, ScoreItem{
			KPIName:   rec.KPIName,
			Weightage: ws[i].Value,
			Score:     score,
			Weighted:  weights.Round(weighted),
		})
	}
	card.FinalScore = weights.Round(clamp(total, 0, 100))
	card.Grade = Grade(card.FinalScore)
	return card
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
