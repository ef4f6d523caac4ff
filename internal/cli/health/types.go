// Package health provides shared types for health check responses.
package health

import (
	"encoding/json"
	"time"
)

// Response is the envelope returned by /health and /health/ready.
type Response struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Healthy reports whether the server declared itself healthy.
func (r *Response) Healthy() bool {
	return r.Status == "healthy"
}

// Liveness is the payload of /health.
type Liveness struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Component is one dependency reported by /health/ready.
type Component struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Liveness decodes the liveness payload.
func (r *Response) Liveness() (*Liveness, error) {
	var l Liveness
	if len(r.Data) == 0 {
		return &l, nil
	}
	if err := json.Unmarshal(r.Data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Components decodes the readiness payload.
func (r *Response) Components() ([]Component, error) {
	var c []Component
	if len(r.Data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(r.Data, &c); err != nil {
		return nil, err
	}
	return c, nil
}
