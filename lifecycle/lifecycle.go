// Package lifecycle defines the shared lifecycle contract for long-running
// gqlbridge components (the subscription manager and the REST gateway).
package lifecycle

import (
	"context"
	"time"
)

// Component defines the unified lifecycle pattern:
//   - Initialize() error                     // Setup/create only, NO context
//   - Start(ctx context.Context) error      // Start with context passed through
//   - Stop(timeout time.Duration) error     // Stop with timeout for graceful shutdown
//
// Components that outlive Start derive their own run context from the one
// they are given and cancel it in Stop; shutdown is always driven by Stop,
// never by abandoning the component.
type Component interface {
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}
