package weights

import "testing"

func TestDefaultCatalogTemplates(t *testing.T) {
	if got := len(DefaultCatalog.ForType(EmployeeTypeField)); got != 8 {
		t.Fatalf("expected 8 field KPIs, got %d", got)
	}
	if got := len(DefaultCatalog.ForType(EmployeeTypeHQ)); got != 5 {
		t.Fatalf("expected 5 HQ KPIs, got %d", got)
	}
}

func TestDefaultWeightsAreNormalizedPerChannel(t *testing.T) {
	pairs := DefaultCatalog.DefaultWeights()
	if len(pairs) != len(DefaultCatalog.Names()) {
		t.Fatalf("expected every catalog KPI, got %d", len(pairs))
	}
	for _, et := range []EmployeeType{EmployeeTypeField, EmployeeTypeHQ} {
		res := ValidateWeightTotal(Channel(pairs, et), DefaultTolerance)
		if !res.Valid || res.Total != 100 {
			t.Fatalf("%s channel invalid: %+v", et, res)
		}
	}
}

func TestCatalogFilterRejectsUnknownNames(t *testing.T) {
	kept, rejected := DefaultCatalog.Filter([]KPIWeight{
		{Name: " File Disposal ", HQWeight: 10},
		{Name: "Morale Boost", FieldWeight: 50},
		{Name: "file disposal", HQWeight: 10},
	})
	if len(kept) != 1 || kept[0].Name != "File Disposal" {
		t.Fatalf("unexpected kept entries: %+v", kept)
	}
	if len(rejected) != 2 {
		t.Fatalf("expected two rejected names, got %v", rejected)
	}
}

func TestCatalogPrepare(t *testing.T) {
	out, rejected := DefaultCatalog.Prepare([]KPIWeight{
		{Name: "Site Inspections", FieldWeight: 30, HQWeight: 0},
		{Name: "Site Inspections", FieldWeight: 10, HQWeight: 0},
		{Name: "File Disposal", FieldWeight: 0, HQWeight: 40},
		{Name: "Invented KPI", FieldWeight: 70, HQWeight: 60},
	})
	if len(rejected) != 1 {
		t.Fatalf("expected invented KPI rejected, got %v", rejected)
	}
	if len(out) != 2 {
		t.Fatalf("expected two KPIs, got %+v", out)
	}
	if out[0].FieldWeight != 100 || out[1].HQWeight != 100 {
		t.Fatalf("unexpected normalized pairs: %+v", out)
	}
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	_, err := LoadCatalog([]byte("kpis:\n  - name: A\n  - name: A\n"))
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
}
