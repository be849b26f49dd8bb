package kpi

import (
	"context"
	"log/slog"
	"time"

	"apar/internal/domain/weights"
	"apar/internal/domain/weightsource"
)

// Publisher delivers domain events. Publishing is best effort.
type Publisher interface {
	Publish(subject string, data any) error
}

// Observer receives operation outcomes for metrics.
type Observer interface {
	ObserveApply(outcome string, records int)
	ObserveRecalc(outcome string, skipped int)
	ObserveResolve(origin string)
}

type Service struct {
	Store    StoreAPI
	Resolver *weightsource.Resolver
	Catalog  *weights.Catalog
	Events   Publisher
	Metrics  Observer
	// RolloutConcurrency bounds concurrent applications in ApplyProjectToMembers.
	RolloutConcurrency int

	now func() time.Time
}

func NewService(store StoreAPI, resolver *weightsource.Resolver) *Service {
	if resolver == nil {
		resolver = weightsource.NewResolver(weightsource.DefaultSource{}, nil, 0)
	}
	catalog := resolver.Catalog
	if catalog == nil {
		catalog = weights.DefaultCatalog
	}
	return &Service{
		Store:              store,
		Resolver:           resolver,
		Catalog:            catalog,
		RolloutConcurrency: 4,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publish(subject string, data any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(subject, data); err != nil {
		slog.Warn("kpi event publish failed", "subject", subject, "err", err)
	}
}

func (s *Service) resolve(ctx context.Context, meta weightsource.ProjectMetadata) weightsource.Resolution {
	res := s.Resolver.Resolve(ctx, meta)
	if s.Metrics != nil {
		s.Metrics.ObserveResolve(res.Origin)
	}
	return res
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
