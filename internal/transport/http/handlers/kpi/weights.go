package kpihandler

import (
	"net/http"

	"apar/internal/domain/weights"
	"apar/internal/transport/http/api"
	"apar/internal/transport/http/middleware"
)

type normalizeRequest struct {
	Weights []weights.Weight    `json:"weights"`
	Pairs   []weights.KPIWeight `json:"pairs"`
	// Catalog restricts pairs to catalog names before normalizing.
	Catalog bool `json:"catalog"`
}

type normalizeResponse struct {
	Weights     []weights.Weight     `json:"weights,omitempty"`
	Total       float64              `json:"total"`
	Diagnostics *weights.Diagnostics `json:"diagnostics,omitempty"`
	Pairs       []weights.KPIWeight  `json:"pairs,omitempty"`
	Rejected    []string             `json:"rejected,omitempty"`
}

type validateRequest struct {
	Weights   []weights.Weight `json:"weights"`
	Tolerance float64          `json:"tolerance"`
	Min       float64          `json:"min"`
	Max       float64          `json:"max"`
}

type validateResponse struct {
	Total weights.TotalResult `json:"total"`
	Range weights.RangeResult `json:"range"`
	Valid bool                `json:"valid"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := h.catalog()
	defs := make([]weights.Definition, 0, len(catalog.Names()))
	for _, name := range catalog.Names() {
		def, _ := catalog.Lookup(name)
		defs = append(defs, def)
	}
	api.Success(w, map[string]any{
		"kpis":     defs,
		"defaults": catalog.DefaultWeights(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var payload normalizeRequest
	if !decode(w, r, &payload, false) {
		return
	}
	if len(payload.Weights) == 0 && len(payload.Pairs) == 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "weights or pairs are required", middleware.GetRequestID(r.Context()))
		return
	}

	var out normalizeResponse
	if len(payload.Weights) > 0 {
		normalized, diag := weights.NormalizeWithDiagnostics(weights.Dedupe(payload.Weights))
		out.Weights = normalized
		out.Total = weights.Round(weights.Sum(normalized))
		out.Diagnostics = &diag
	}
	if len(payload.Pairs) > 0 {
		if payload.Catalog {
			out.Pairs, out.Rejected = h.catalog().Prepare(payload.Pairs)
		} else {
			out.Pairs = weights.NormalizeDual(weights.DedupePairs(payload.Pairs))
		}
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var payload validateRequest
	if !decode(w, r, &payload, false) {
		return
	}
	total := weights.ValidateWeightTotal(payload.Weights, payload.Tolerance)
	rng := weights.ValidateWeightRange(payload.Weights, payload.Min, payload.Max)
	api.Success(w, validateResponse{Total: total, Range: rng, Valid: total.Valid && rng.Valid}, middleware.GetRequestID(r.Context()))
}
