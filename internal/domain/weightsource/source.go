// Package weightsource produces raw KPI weight proposals for a project and
// resolves them into a canonical distribution, falling back to the static
// catalog defaults whenever the proposal cannot be used.
package weightsource

import (
	"context"
	"errors"

	"apar/internal/domain/weights"
)

var (
	ErrInvalidOutput       = errors.New("weight source returned invalid output")
	ErrUpstreamUnavailable = errors.New("weight source unavailable")
)

const (
	OriginGenAI   = "genai"
	OriginDefault = "default"
)

// ProjectMetadata is what a source knows about a project when proposing
// weights.
type ProjectMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Location    string `json:"location"`
	Category    string `json:"category"`
}

// Source proposes raw, untrusted KPI weights. Names may repeat or fall
// outside the catalog and channels need not sum to 100.
type Source interface {
	Generate(ctx context.Context, meta ProjectMetadata) ([]weights.KPIWeight, error)
}

// DefaultSource serves the catalog's static distribution.
type DefaultSource struct {
	Catalog *weights.Catalog
}

func (s DefaultSource) Generate(context.Context, ProjectMetadata) ([]weights.KPIWeight, error) {
	return GetDefaultWeights(s.Catalog), nil
}

// GetDefaultWeights returns the fallback table, normalized per channel. A nil
// catalog selects weights.DefaultCatalog.
func GetDefaultWeights(c *weights.Catalog) []weights.KPIWeight {
	if c == nil {
		c = weights.DefaultCatalog
	}
	return c.DefaultWeights()
}
