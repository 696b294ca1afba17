// README: Provider adapter for device-pushed fixes.
package location

import (
	"context"
	"sync"
	"time"
)

// PushProvider satisfies the Provider boundary for clients that push fixes to
// the server instead of being polled. The device reports its permission state
// and fixes over HTTP; acquisition reads the freshest pushed fix.
type PushProvider struct {
	mu      sync.Mutex
	granted bool
	last    *Position
}

func NewPushProvider() *PushProvider {
	return &PushProvider{}
}

// SetPermission records the device-side authorization outcome.
func (p *PushProvider) SetPermission(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = granted
}

// Push records a device-reported fix.
func (p *PushProvider) Push(pos Position) {
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &pos
}

func (p *PushProvider) RequestPermission(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted, nil
}

// CurrentPosition returns the freshest pushed fix. A fix older than twice the
// max-age tolerance counts as unavailable rather than current.
func (p *PushProvider) CurrentPosition(ctx context.Context, opts FixOptions) (Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return Position{}, &LocationError{Kind: ErrPermissionDenied}
	}
	if p.last == nil {
		return Position{}, &LocationError{Kind: ErrUnavailable}
	}
	if opts.MaxAge > 0 && p.last.Age(time.Now()) > 2*opts.MaxAge {
		return Position{}, &LocationError{Kind: ErrUnavailable}
	}
	return *p.last, nil
}
