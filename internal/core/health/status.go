package health

import "time"

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// Status captures the state of the service at a moment in time.
type Status struct {
	Service      string       `json:"service"`
	Version      string       `json:"version"`
	Environment  string       `json:"environment"`
	Status       string       `json:"status"`
	StartedAt    time.Time    `json:"startedAt"`
	Uptime       string       `json:"uptime"`
	UptimeSecs   int64        `json:"uptimeSeconds"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Dependency is the result of probing one backing service.
type Dependency struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Healthy reports whether the service and all its dependencies are up.
func (s Status) Healthy() bool {
	return s.Status == StatusUp
}
