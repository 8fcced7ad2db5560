// Package health provides health check implementations for external
// dependencies.
package health

import "context"

// Checker is implemented by components that can report their health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
