package kpi

import "testing"

func TestKPIScore(t *testing.T) {
	cases := []struct {
		achieved, target, want float64
	}{
		{50, 100, 50},
		{150, 100, 100},
		{-5, 100, 0},
		{10, 0, 0},
		{1, 3, 33.33},
	}
	for _, tc := range cases {
		if got := KPIScore(tc.achieved, tc.target); got != tc.want {
			t.Fatalf("KPIScore(%v, %v) = %v, want %v", tc.achieved, tc.target, got, tc.want)
		}
	}
}

func TestGradeBands(t *testing.T) {
	cases := map[float64]string{
		95: GradeOutstanding,
		90: GradeOutstanding,
		80: GradeVeryGood,
		60: GradeGood,
		45: GradeAverage,
		10: GradeBelowAverage,
	}
	for score, want := range cases {
		if got := Grade(score); got != want {
			t.Fatalf("Grade(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestAggregateWeightsScores(t *testing.T) {
	card := Aggregate([]Record{
		{KPIName: "a", Weightage: 60, AchievedValue: 100, Target: 100},
		{KPIName: "b", Weightage: 40, AchievedValue: 25, Target: 100},
	})
	if card.Renormalized {
		t.Fatal("weights already sum to 100")
	}
	if card.FinalScore != 70 {
		t.Fatalf("expected 70, got %v", card.FinalScore)
	}
	if card.Grade != GradeGood {
		t.Fatalf("unexpected grade %q", card.Grade)
	}
}

func TestAggregateRenormalizesDriftedWeights(t *testing.T) {
	card := Aggregate([]Record{
		{KPIName: "a", Weightage: 30, AchievedValue: 10, Target: 10},
		{KPIName: "b", Weightage: 30, AchievedValue: 0, Target: 10},
		{KPIName: "c", Weightage: 0, AchievedValue: 10, Target: 10},
	})
	if !card.Renormalized {
		t.Fatal("expected renormalization")
	}
	if card.FinalScore != 50 {
		t.Fatalf("expected 50, got %v", card.FinalScore)
	}
	if card.Items[2].Weightage != 0 {
		t.Fatalf("untracked kpi must stay at zero, got %+v", card.Items[2])
	}
}

func TestAggregateEmpty(t *testing.T) {
	card := Aggregate(nil)
	if card.FinalScore != 0 || card.Grade != GradeBelowAverage {
		t.Fatalf("unexpected card %+v", card)
	}
}
