package weightsource

import (
	"context"
	"fmt"
	"strings"

	"apar/internal/domain/weights"
	"apar/internal/platform/genai"
)

// Generator is the slice of the genai client the source depends on.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// GenAISource asks a generative model for a distribution.
type GenAISource struct {
	Client  Generator
	Catalog *weights.Catalog
}

func (s GenAISource) Generate(ctx context.Context, meta ProjectMetadata) ([]weights.KPIWeight, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, genai.ErrNotConfigured)
	}
	catalog := s.Catalog
	if catalog == nil {
		catalog = weights.DefaultCatalog
	}
	text, err := s.Client.GenerateJSON(ctx, BuildPrompt(meta, catalog))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return ParseWeights(text)
}

// BuildPrompt states the output contract: catalog names only and each channel
// summing to 100.
func BuildPrompt(meta ProjectMetadata, catalog *weights.Catalog) string {
	var sb strings.Builder
	sb.WriteString("You assign KPI weightages for a government project.\n")
	fmt.Fprintf(&sb, "Project: %s\n", meta.Name)
	if meta.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", meta.Description)
	}
	if meta.Department != "" {
		fmt.Fprintf(&sb, "Department: %s\n", meta.Department)
	}
	if meta.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", meta.Location)
	}
	if meta.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", meta.Category)
	}
	sb.WriteString("\nUse only these KPI names, spelled exactly:\n")
	for _, name := range catalog.Names() {
		fmt.Fprintf(&sb, "- %s\n", name)
	}
	sb.WriteString("\nRules:\n")
	sb.WriteString("1. fieldWeight values across all KPIs must sum to 100.\n")
	sb.WriteString("2. hqWeight values across all KPIs must sum to 100.\n")
	sb.WriteString("3. Use 0 for a KPI that does not apply to a channel.\n")
	sb.WriteString("4. List each KPI once.\n")
	sb.WriteString("\nRespond with JSON only, in the form ")
	sb.WriteString(`{"weights":[{"name":"...","fieldWeight":0,"hqWeight":0}]}`)
	sb.WriteString("\n")
	return sb.String()
}
