// README: Location session: permission state, single-fix acquisition, periodic sync feed, guaranteed stop.
package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"rally/internal/metrics"
	"rally/internal/types"
)

// Session owns the caller's permission state and most recent fix for the
// lifetime of a discovery flow. It is the single writer of both.
type Session struct {
	userID   types.ID
	provider Provider
	store    *Store
	logger   *zap.Logger

	feed chan Position

	mu              sync.Mutex
	permission      PermissionState
	lastPosition    *Position
	lastSyncAttempt time.Time

	syncCancel context.CancelFunc
	syncDone   chan struct{}
	stopOnce   sync.Once
	stopped    bool
}

// NewSession creates a session for one user. store may be nil in tests; fixes
// are then kept in memory only.
func NewSession(userID types.ID, provider Provider, store *Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		userID:     userID,
		provider:   provider,
		store:      store,
		logger:     logger,
		permission: PermissionUnrequested,
		feed:       make(chan Position, 4),
	}
}

// RequestPermission asks the provider for authorization. Any provider error
// fails closed to Denied. Re-requesting after a denial is allowed.
func (s *Session) RequestPermission(ctx context.Context) PermissionState {
	granted, err := s.provider.RequestPermission(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || !granted {
		s.permission = PermissionDenied
		if err != nil {
			s.logger.Warn("permission request failed, treating as denied",
				zap.String("user_id", string(s.userID)), zap.Error(err))
		}
		return s.permission
	}
	s.permission = PermissionGranted
	return s.permission
}

// Permission returns the current permission state.
func (s *Session) Permission() PermissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// AcquirePosition requests a single fix. A recent-enough previous fix (within
// opts.MaxAge) is reused without touching the provider. On failure the
// previous fix is kept, stale but usable, and a *LocationError is returned.
func (s *Session) AcquirePosition(ctx context.Context, opts FixOptions) (Position, error) {
	s.mu.Lock()
	if s.permission != PermissionGranted {
		s.mu.Unlock()
		metrics.RecordFix("permission_denied")
		return Position{}, &LocationError{Kind: ErrPermissionDenied}
	}
	if s.lastPosition != nil && opts.MaxAge > 0 && s.lastPosition.Age(time.Now()) <= opts.MaxAge {
		pos := *s.lastPosition
		s.mu.Unlock()
		metrics.RecordFix("cached")
		return pos, nil
	}
	s.mu.Unlock()

	fixCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		fixCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	pos, err := s.provider.CurrentPosition(fixCtx, opts)

	s.mu.Lock()
	s.lastSyncAttempt = time.Now()
	s.mu.Unlock()

	if err != nil {
		lerr := classify(err)
		metrics.RecordFix(string(lerr.Kind))
		return Position{}, lerr
	}
	if !pos.Valid() {
		metrics.RecordFix("invalid")
		return Position{}, &LocationError{Kind: ErrUnavailable, Cause: errors.New("fix outside valid lat/lng range")}
	}
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = time.Now()
	}

	s.mu.Lock()
	s.lastPosition = &pos
	s.mu.Unlock()
	metrics.RecordFix("ok")

	if s.store != nil {
		// Persistence is best-effort; a cache or journal failure must not
		// fail the acquisition.
		if err := s.store.SaveFix(ctx, s.userID, pos); err != nil {
			s.logger.Warn("saving fix failed", zap.String("user_id", string(s.userID)), zap.Error(err))
		}
	}
	return pos, nil
}

// LastKnownOrDefault returns the most recent fix, or DefaultPosition when the
// session never acquired one.
func (s *Session) LastKnownOrDefault() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPosition != nil {
		return *s.lastPosition
	}
	return DefaultPosition
}

// LastSyncAttempt returns when the session last tried to acquire a fix.
func (s *Session) LastSyncAttempt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncAttempt
}

// Positions is the session's position feed, fed by periodic sync. Closed by
// Stop.
func (s *Session) Positions() <-chan Position {
	return s.feed
}

// StartPeriodicSync schedules fix acquisition on a fixed interval while the
// session is open and permission is granted. Each tick's result lands on the
// feed; transient failures push the last-known (or default) position instead
// so downstream keeps functioning. A permission failure ends the loop.
func (s *Session) StartPeriodicSync(opts FixOptions, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.syncCancel != nil || s.permission != PermissionGranted {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.syncCancel = cancel
	s.syncDone = make(chan struct{})
	go s.runSync(ctx, opts, interval)
}

func (s *Session) runSync(ctx context.Context, opts FixOptions, interval time.Duration) {
	defer close(s.syncDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pos, err := s.AcquirePosition(ctx, opts)
			if err != nil {
				var lerr *LocationError
				if errors.As(err, &lerr) && lerr.Kind == ErrPermissionDenied {
					s.logger.Warn("periodic sync lost permission, stopping",
						zap.String("user_id", string(s.userID)))
					return
				}
				pos = s.LastKnownOrDefault()
			}
			select {
			case <-ctx.Done():
				return
			case s.feed <- pos:
			}
		}
	}
}

// Stop cancels periodic sync and closes the feed. Idempotent; it must run on
// every exit path of the discovery flow.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel := s.syncCancel
		done := s.syncDone
		s.mu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}
		close(s.feed)
	})
}

// classify maps provider errors onto the typed taxonomy.
func classify(err error) *LocationError {
	var lerr *LocationError
	if errors.As(err, &lerr) {
		return lerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &LocationError{Kind: ErrTimeout, Cause: err}
	}
	return &LocationError{Kind: ErrUnavailable, Cause: err}
}
