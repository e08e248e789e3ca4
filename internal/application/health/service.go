package health

import (
	"context"
	"time"

	corehealth "3tcapital/ms_fiscal_core/internal/core/health"
)

const probeTimeout = 2 * time.Second

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service exposes health-check use cases to adapters.
type Service struct {
	meta      Metadata
	startedAt time.Time
	probes    map[string]Pinger
	names     []string
}

func NewService(meta Metadata) *Service {
	return &Service{
		meta:      meta,
		startedAt: time.Now().UTC(),
		probes:    make(map[string]Pinger),
	}
}

// WithDependency registers a backing service probed on every Status call.
func (s *Service) WithDependency(name string, p Pinger) *Service {
	if p == nil {
		return s
	}
	if _, ok := s.probes[name]; !ok {
		s.names = append(s.names, name)
	}
	s.probes[name] = p
	return s
}

// Status returns the current availability snapshot. Any failing dependency
// turns the service DOWN.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	uptime := time.Since(s.startedAt)
	status := corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		Status:      corehealth.StatusUp,
		StartedAt:   s.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}

	for _, name := range s.names {
		dep := corehealth.Dependency{Name: name, Status: corehealth.StatusUp}
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		if err := s.probes[name].Ping(pctx); err != nil {
			dep.Status = corehealth.StatusDown
			dep.Error = err.Error()
			status.Status = corehealth.StatusDown
		}
		cancel()
		status.Dependencies = append(status.Dependencies, dep)
	}
	return status
}
