package models

import (
	"time"

	"github.com/kevinfinalboss/VoidMod/internal/moderation"
)

type HealthResponse struct {
	Status     string           `json:"status"`
	Uptime     string           `json:"uptime"`
	Timestamp  string           `json:"timestamp"`
	Reconciler ReconcilerHealth `json:"reconciler"`
}

type ReconcilerHealth struct {
	State     string             `json:"state"`
	LastRun   *moderation.Report `json:"last_run,omitempty"`
	LastError string             `json:"last_error,omitempty"`
}

type ServiceStatus string

const (
	StatusHealthy  ServiceStatus = "healthy"
	StatusDegraded ServiceStatus = "degraded"
)

// NewHealthResponse reports degraded when the last sweep had item failures.
func NewHealthResponse(uptime time.Duration, state moderation.ReconcilerState, last *moderation.Report) HealthResponse {
	resp := HealthResponse{
		Status:    string(StatusHealthy),
		Uptime:    uptime.String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Reconciler: ReconcilerHealth{
			State:   state.String(),
			LastRun: last,
		},
	}
	if last != nil && last.Err != nil {
		resp.Status = string(StatusDegraded)
		resp.Reconciler.LastError = last.Err.Error()
	}
	return resp
}

type SweepResponse struct {
	Report moderation.Report `json:"report"`
	Error  string            `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
