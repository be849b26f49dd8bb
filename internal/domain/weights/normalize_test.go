package weights

import (
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"
)

func named(values ...float64) []Weight {
	out := make([]Weight, 0, len(values))
	for i, v := range values {
		out = append(out, Weight{Name: fmt.Sprintf("k%d", i), Value: v})
	}
	return out
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNormalizeEmpty(t *testing.T) {
	out := Normalize(nil)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", out)
	}
}

func TestNormalizeProportional(t *testing.T) {
	out := Normalize([]Weight{{Name: "a", Value: 1}, {Name: "b", Value: 3}})
	got := ToMap(out)
	if got["a"] != 25 || got["b"] != 75 {
		t.Fatalf("unexpected distribution: %+v", got)
	}
	if out[0].Name != "a" || out[1].Name != "b" {
		t.Fatalf("expected input order preserved, got %+v", out)
	}
}

func TestNormalizeZeroFilter(t *testing.T) {
	out := Normalize([]Weight{{Name: "a", Value: 0}, {Name: "b", Value: 0}, {Name: "c", Value: 5}})
	if len(out) != 1 || out[0].Name != "c" || out[0].Value != 100 {
		t.Fatalf("expected only c at 100, got %+v", out)
	}
}

func TestNormalizeEqualSplitWhenNothingPositive(t *testing.T) {
	out, diag := NormalizeWithDiagnostics([]Weight{{Name: "a", Value: -1}, {Name: "b", Value: -5}})
	got := ToMap(out)
	if got["a"] != 50 || got["b"] != 50 {
		t.Fatalf("expected equal split, got %+v", got)
	}
	if !diag.EqualSplit {
		t.Fatal("expected equal split diagnostic")
	}
	if len(diag.Dropped) != 2 {
		t.Fatalf("expected both names dropped from the pool, got %v", diag.Dropped)
	}
}

func TestNormalizeEqualSplitCorrectsFirstOnTie(t *testing.T) {
	out := Normalize([]Weight{{Name: "x", Value: 0}, {Name: "y", Value: 0}, {Name: "z", Value: 0}})
	if out[0].Value != 33.34 || out[1].Value != 33.33 || out[2].Value != 33.33 {
		t.Fatalf("expected drift on the first entry, got %+v", out)
	}
}

func TestNormalizeDropsNonFinite(t *testing.T) {
	out, diag := NormalizeWithDiagnostics([]Weight{
		{Name: "nan", Value: math.NaN()},
		{Name: "inf", Value: math.Inf(1)},
		{Name: "ok", Value: 2},
		{Name: "ok2", Value: 2},
	})
	got := ToMap(out)
	if len(got) != 2 || got["ok"] != 50 || got["ok2"] != 50 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(diag.Dropped) != 2 {
		t.Fatalf("expected two dropped names, got %v", diag.Dropped)
	}
}

func TestNormalizeDriftGoesToLargest(t *testing.T) {
	// 16.67 + 33.33 + 16.67 + 33.33 = 100.00, no correction needed.
	_, diag := NormalizeWithDiagnostics([]Weight{{Name: "a", Value: 1}, {Name: "b", Value: 2}, {Name: "c", Value: 1}, {Name: "d", Value: 2}})
	if diag.CorrectedName != "" {
		t.Fatalf("did not expect a correction, got %+v", diag)
	}

	out, diag := NormalizeWithDiagnostics(named(1, 1, 1, 2, 2))
	got := ToMap(out)
	// 14.29*3 + 28.57*2 = 100.01 -> -0.01 on k3, the first of the largest.
	if diag.CorrectedName != "k3" {
		t.Fatalf("expected correction on k3, got %+v (%+v)", diag, got)
	}
	if got["k3"] != 28.56 || got["k4"] != 28.57 {
		t.Fatalf("unexpected corrected values: %+v", got)
	}
}

func TestNormalizeHugeValues(t *testing.T) {
	out := Normalize([]Weight{{Name: "a", Value: math.MaxFloat64}, {Name: "b", Value: math.MaxFloat64}})
	got := ToMap(out)
	if got["a"] != 50 || got["b"] != 50 {
		t.Fatalf("expected overflow-safe split, got %+v", got)
	}
}

func TestNormalizeMapIsDeterministic(t *testing.T) {
	raw := map[string]float64{"b": 1, "a": 1, "c": 1}
	first := NormalizeMap(raw)
	for i := 0; i < 20; i++ {
		again := NormalizeMap(raw)
		for k, v := range first {
			if again[k] != v {
				t.Fatalf("run %d differs for %s: %v vs %v", i, k, again[k], v)
			}
		}
	}
	if first["a"] != 33.34 {
		t.Fatalf("expected sorted-first key to absorb drift, got %+v", first)
	}
}

func TestNormalizeDualKeepsEveryName(t *testing.T) {
	out := NormalizeDual([]KPIWeight{
		{Name: "A", FieldWeight: 40, HQWeight: 0},
		{Name: "B", FieldWeight: 0, HQWeight: 10},
		{Name: "C", FieldWeight: 60, HQWeight: 30},
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %+v", out)
	}
	if out[0].FieldWeight != 40 || out[0].HQWeight != 0 {
		t.Fatalf("unexpected A: %+v", out[0])
	}
	if out[1].FieldWeight != 0 || out[1].HQWeight != 25 {
		t.Fatalf("unexpected B: %+v", out[1])
	}
	if out[2].FieldWeight != 60 || out[2].HQWeight != 75 {
		t.Fatalf("unexpected C: %+v", out[2])
	}
}

func TestNormalizeDualEmpty(t *testing.T) {
	if out := NormalizeDual(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %+v", out)
	}
}

func TestDuplicateSourceScenario(t *testing.T) {
	raw := []KPIWeight{
		{Name: "A", FieldWeight: 30, HQWeight: 10},
		{Name: "B", FieldWeight: 30, HQWeight: 40},
		{Name: "A", FieldWeight: 40, HQWeight: 5},
	}
	deduped := DedupePairs(raw)
	if len(deduped) != 2 || deduped[0] != (KPIWeight{Name: "A", FieldWeight: 40, HQWeight: 10}) {
		t.Fatalf("unexpected dedupe result: %+v", deduped)
	}

	out := NormalizeDual(deduped)
	if out[0].FieldWeight != 57.14 || out[1].FieldWeight != 42.86 {
		t.Fatalf("unexpected field channel: %+v", out)
	}
	if out[0].HQWeight != 20 || out[1].HQWeight != 80 {
		t.Fatalf("unexpected hq channel: %+v", out)
	}
	if !approx(out[0].FieldWeight+out[1].FieldWeight, 100, 0.01) {
		t.Fatalf("field channel does not sum to 100: %+v", out)
	}
}

func TestNormalizeSumsToHundredProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Float64Range(0.001, 1e6), 1, 40).Draw(t, "values")
		out := Normalize(named(values...))
		if !approx(Sum(out), 100, 0.01) {
			t.Fatalf("sum %v for %v", Sum(out), values)
		}
		for _, w := range out {
			if w.Value < 0 || w.Value > 100 {
				t.Fatalf("out of range value %v", w)
			}
		}
	})
}

func TestNormalizeIsStableProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Float64Range(0.5, 1000), 1, 20).Draw(t, "values")
		once := Normalize(named(values...))
		twice := ToMap(Normalize(once))
		for _, w := range once {
			if !approx(twice[w.Name], w.Value, 0.011) {
				t.Fatalf("%s drifted from %v to %v", w.Name, w.Value, twice[w.Name])
			}
		}
	})
}
