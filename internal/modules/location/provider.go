// README: Location Provider boundary.
package location

import (
	"context"
	"time"
)

// FixOptions mirrors the device-side acquisition options.
type FixOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

// Provider is the device/location boundary. Implementations must honour the
// context and the options timeout; errors should be *LocationError where the
// cause is classifiable.
type Provider interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context, opts FixOptions) (Position, error)
}
