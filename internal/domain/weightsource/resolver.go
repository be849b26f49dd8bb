package weightsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"apar/internal/domain/weights"
	"apar/internal/platform/genai"
)

const DefaultTimeout = 20 * time.Second

// Resolution is a normalized distribution and where it came from.
type Resolution struct {
	Weights        []weights.KPIWeight `json:"weights"`
	Origin         string              `json:"origin"`
	FallbackReason string              `json:"fallbackReason,omitempty"`
	Rejected       []string            `json:"rejected,omitempty"`
}

// Resolver runs a Source through the catalog filter, pairwise dedupe and dual
// normalization. It never fails: every problem with the source ends in the
// catalog defaults.
type Resolver struct {
	Source  Source
	Catalog *weights.Catalog
	Timeout time.Duration
	// OnFallback, when set, is called with the reason each time defaults are
	// used.
	OnFallback func(reason string)
}

func NewResolver(source Source, catalog *weights.Catalog, timeout time.Duration) *Resolver {
	if catalog == nil {
		catalog = weights.DefaultCatalog
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{Source: source, Catalog: catalog, Timeout: timeout}
}

func (r *Resolver) Resolve(ctx context.Context, meta ProjectMetadata) Resolution {
	catalog := r.Catalog
	if catalog == nil {
		catalog = weights.DefaultCatalog
	}
	if r.Source == nil {
		return r.fallback(catalog, nil, "no weight source configured")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := r.Source.Generate(callCtx, meta)
	if err != nil {
		reason := failureReason(err)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = fmt.Sprintf("weight source timed out after %s", timeout)
		}
		slog.Warn("weight source failed", "project", meta.Name, "reason", reason, "err", err)
		return r.fallback(catalog, nil, reason)
	}

	kept, rejected := catalog.Filter(raw)
	if len(rejected) > 0 {
		slog.Info("weight source proposed unknown kpis", "project", meta.Name, "rejected", rejected)
	}
	merged := weights.DedupePairs(kept)
	if len(merged) == 0 {
		return r.fallback(catalog, rejected, "no catalog kpis in weight source output")
	}
	if !hasPositive(merged, weights.EmployeeTypeField) || !hasPositive(merged, weights.EmployeeTypeHQ) {
		return r.fallback(catalog, rejected, "weight source output has an empty channel")
	}
	prepared := weights.NormalizeDual(merged)

	origin := OriginGenAI
	if _, ok := r.Source.(DefaultSource); ok {
		origin = OriginDefault
	}
	return Resolution{Weights: prepared, Origin: origin, Rejected: rejected}
}

func (r *Resolver) fallback(catalog *weights.Catalog, rejected []string, reason string) Resolution {
	slog.Warn("using default kpi weights", "reason", reason)
	if r.OnFallback != nil {
		r.OnFallback(reason)
	}
	return Resolution{
		Weights:        GetDefaultWeights(catalog),
		Origin:         OriginDefault,
		FallbackReason: reason,
		Rejected:       rejected,
	}
}

// failureReason maps a source error to a fixed message. Upstream error text
// can carry endpoints or response bodies and is only logged.
func failureReason(err error) string {
	switch {
	case errors.Is(err, genai.ErrNotConfigured):
		return "weight source not configured"
	case errors.Is(err, ErrInvalidOutput):
		return "weight source returned invalid output"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "weight source unavailable"
	default:
		return "weight source failed"
	}
}

func hasPositive(pairs []weights.KPIWeight, t weights.EmployeeType) bool {
	for _, p := range pairs {
		if v := p.For(t); v > 0 && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
