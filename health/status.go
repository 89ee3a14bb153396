// Package health provides health monitoring for the loop agents and their
// bus connections, plus the HTTP and file probes built on top of it.
package health

import (
	"time"
)

// Status represents the health state of a component or the whole process
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// NewHealthy creates a healthy status
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a degraded status. Degraded still counts as live:
// the process keeps running on its safe fallback.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "degraded",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates an unhealthy status
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == "degraded"
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// Aggregate combines component statuses into one system status. Any
// unhealthy component makes the system unhealthy; otherwise any degraded
// component makes it degraded.
func Aggregate(systemName string, subStatuses []Status) Status {
	status := "healthy"
	message := "All components healthy"

	for _, sub := range subStatuses {
		if sub.IsUnhealthy() {
			status = "unhealthy"
			message = sub.Component + ": " + sub.Message
			break
		}
		if sub.IsDegraded() && status == "healthy" {
			status = "degraded"
			message = sub.Component + ": " + sub.Message
		}
	}

	return Status{
		Component:   systemName,
		Healthy:     status == "healthy",
		Status:      status,
		Message:     message,
		Timestamp:   time.Now(),
		SubStatuses: subStatuses,
	}
}
