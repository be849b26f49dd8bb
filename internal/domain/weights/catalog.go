package weights

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Definition describes one KPI of the fixed catalog.
type Definition struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Unit        string  `yaml:"unit" json:"unit"`
	Target      float64 `yaml:"target" json:"target"`
	FieldWeight float64 `yaml:"fieldWeight" json:"fieldWeight"`
	HQWeight    float64 `yaml:"hqWeight" json:"hqWeight"`
}

// AppliesTo reports whether the KPI belongs to the template for t.
func (d Definition) AppliesTo(t EmployeeType) bool {
	if t == EmployeeTypeHQ {
		return d.HQWeight > 0
	}
	return d.FieldWeight > 0
}

type Catalog struct {
	defs  []Definition
	index map[string]int
}

// DefaultCatalog is parsed once from the embedded catalog.yaml.
var DefaultCatalog = mustLoadCatalog(catalogYAML)

func mustLoadCatalog(data []byte) *Catalog {
	c, err := LoadCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog parses a YAML catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		KPIs []Definition `yaml:"kpis"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse kpi catalog: %w", err)
	}
	c := &Catalog{index: make(map[string]int, len(doc.KPIs))}
	for _, def := range doc.KPIs {
		def.Name = strings.TrimSpace(def.Name)
		if def.Name == "" {
			return nil, fmt.Errorf("kpi catalog: empty name")
		}
		if _, dup := c.index[def.Name]; dup {
			return nil, fmt.Errorf("kpi catalog: duplicate name %q", def.Name)
		}
		c.index[def.Name] = len(c.defs)
		c.defs = append(c.defs, def)
	}
	return c, nil
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def.Name)
	}
	return out
}

func (c *Catalog) Lookup(name string) (Definition, bool) {
	i, ok := c.index[name]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// ForType returns the catalog entries forming the default template of t.
func (c *Catalog) ForType(t EmployeeType) []Definition {
	var out []Definition
	for _, def := range c.defs {
		if def.AppliesTo(t) {
			out = append(out, def)
		}
	}
	return out
}

// DefaultWeights returns the static fallback distribution, normalized per
// channel.
func (c *Catalog) DefaultWeights() []KPIWeight {
	pairs := make([]KPIWeight, 0, len(c.defs))
	for _, def := range c.defs {
		pairs = append(pairs, KPIWeight{Name: def.Name, FieldWeight: def.FieldWeight, HQWeight: def.HQWeight})
	}
	return NormalizeDual(pairs)
}

// Filter keeps entries whose trimmed name is in the catalog and returns the
// rejected names separately. Matching is exact and case-sensitive.
func (c *Catalog) Filter(pairs []KPIWeight) ([]KPIWeight, []string) {
	kept := make([]KPIWeight, 0, len(pairs))
	var rejected []string
	for _, p := range pairs {
		p.Name = strings.TrimSpace(p.Name)
		if _, ok := c.index[p.Name]; !ok {
			rejected = append(rejected, p.Name)
			continue
		}
		kept = append(kept, p)
	}
	return kept, rejected
}

// Prepare runs the canonical pipeline: catalog filter, pairwise dedupe, dual
// normalization.
func (c *Catalog) Prepare(pairs []KPIWeight) ([]KPIWeight, []string) {
	kept, rejected := c.Filter(pairs)
	return NormalizeDual(DedupePairs(kept)), rejected
}
