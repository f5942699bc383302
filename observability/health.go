package observability

import "context"

// HealthStatus represents the health state of a check or the service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes the result of one check.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth describes the overall health of the run service.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	ActiveRuns int64        `json:"active_runs"`
	Components []Health     `json:"components,omitempty"`
}

// CheckFunc reports a problem as an error. Degraded results are expressed
// by returning a *DegradedError.
type CheckFunc func(ctx context.Context) error

// DegradedError marks a check that works with reduced functionality.
type DegradedError struct{ Reason string }

func (e *DegradedError) Error() string { return e.Reason }

// NewServiceHealth creates a ServiceHealth with status up.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  HealthStatusUp,
		Version: version,
	}
}

// Check runs fn and adds its result under name.
func (sh *ServiceHealth) Check(ctx context.Context, name string, fn CheckFunc) {
	h := Health{Name: name, Status: HealthStatusUp}
	if err := fn(ctx); err != nil {
		h.Message = err.Error()
		h.Status = HealthStatusDown
		if _, ok := err.(*DegradedError); ok {
			h.Status = HealthStatusDegraded
		}
	}
	sh.AddComponent(h)
}

// AddComponent adds a check result and degrades overall status if needed.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)

	switch ch.Status {
	case HealthStatusDown:
		sh.Status = HealthStatusDown
	case HealthStatusDegraded:
		if sh.Status != HealthStatusDown {
			sh.Status = HealthStatusDegraded
		}
	}
}
