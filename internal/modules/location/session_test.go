// README: Location session tests: permission handling, fix caching, periodic sync.
package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rally/internal/types"
)

// stubProvider is a scriptable Provider double.
type stubProvider struct {
	mu       sync.Mutex
	granted  bool
	grantErr error
	pos      Position
	posErr   error
	calls    int
}

func (s *stubProvider) RequestPermission(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted, s.grantErr
}

func (s *stubProvider) CurrentPosition(_ context.Context, _ FixOptions) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.pos, s.posErr
}

func (s *stubProvider) set(pos Position, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
	s.posErr = err
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testPosition(lat, lng float64) Position {
	return Position{Point: types.Point{Lat: lat, Lng: lng}, CapturedAt: time.Now()}
}

func TestSession_PermissionFailClosed(t *testing.T) {
	tests := []struct {
		name     string
		granted  bool
		grantErr error
		want     PermissionState
	}{
		{name: "granted", granted: true, want: PermissionGranted},
		{name: "denied", granted: false, want: PermissionDenied},
		{name: "provider error treated as denial", granted: true, grantErr: errors.New("boom"), want: PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("u1", &stubProvider{granted: tt.granted, grantErr: tt.grantErr}, nil, nil)
			if got := s.RequestPermission(context.Background()); got != tt.want {
				t.Errorf("RequestPermission() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSession_ReRequestAfterDenial(t *testing.T) {
	p := &stubProvider{granted: false}
	s := NewSession("u1", p, nil, nil)
	if got := s.RequestPermission(context.Background()); got != PermissionDenied {
		t.Fatalf("expected denied, got %s", got)
	}

	p.mu.Lock()
	p.granted = true
	p.mu.Unlock()

	if got := s.RequestPermission(context.Background()); got != PermissionGranted {
		t.Fatalf("expected granted after re-request, got %s", got)
	}
}

func TestSession_AcquireWithoutPermission(t *testing.T) {
	s := NewSession("u1", &stubProvider{}, nil, nil)
	_, err := s.AcquirePosition(context.Background(), FixOptions{})
	var lerr *LocationError
	if !errors.As(err, &lerr) || lerr.Kind != ErrPermissionDenied {
		t.Fatalf("expected permission_denied error, got %v", err)
	}
}

func TestSession_AcquireSuccess(t *testing.T) {
	p := &stubProvider{granted: true, pos: testPosition(28.61, 77.21)}
	s := NewSession("u1", p, nil, nil)
	s.RequestPermission(context.Background())

	pos, err := s.AcquirePosition(context.Background(), FixOptions{})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if pos.Point.Lat != 28.61 || pos.Point.Lng != 77.21 {
		t.Errorf("unexpected position: %+v", pos.Point)
	}
	if got := s.LastKnownOrDefault(); got.Point != pos.Point {
		t.Errorf("last known = %+v, want acquired fix", got.Point)
	}
}

func TestSession_CachedFixWithinMaxAge(t *testing.T) {
	p := &stubProvider{granted: true, pos: testPosition(28.61, 77.21)}
	s := NewSession("u1", p, nil, nil)
	s.RequestPermission(context.Background())

	opts := FixOptions{MaxAge: time.Minute}
	if _, err := s.AcquirePosition(context.Background(), opts); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := s.AcquirePosition(context.Background(), opts); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if got := p.callCount(); got != 1 {
		t.Errorf("provider called %d times, want 1 (second acquire should reuse cache)", got)
	}
}

func TestSession_StaleFixKeptOnFailure(t *testing.T) {
	p := &stubProvider{granted: true, pos: testPosition(28.61, 77.21)}
	s := NewSession("u1", p, nil, nil)
	s.RequestPermission(context.Background())

	first, err := s.AcquirePosition(context.Background(), FixOptions{})
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	p.set(Position{}, errors.New("gps unavailable"))
	_, err = s.AcquirePosition(context.Background(), FixOptions{})
	var lerr *LocationError
	if !errors.As(err, &lerr) || lerr.Kind != ErrUnavailable {
		t.Fatalf("expected unavailable error, got %v", err)
	}

	if got := s.LastKnownOrDefault(); got.Point != first.Point {
		t.Errorf("stale fix discarded: got %+v, want %+v", got.Point, first.Point)
	}
}

func TestSession_TimeoutClassified(t *testing.T) {
	p := &stubProvider{granted: true, posErr: context.DeadlineExceeded}
	s := NewSession("u1", p, nil, nil)
	s.RequestPermission(context.Background())

	_, err := s.AcquirePosition(context.Background(), FixOptions{Timeout: time.Second})
	var lerr *LocationError
	if !errors.As(err, &lerr) || lerr.Kind != ErrTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestSession_DefaultPositionWithoutFix(t *testing.T) {
	s := NewSession("u1", &stubProvider{}, nil, nil)
	got := s.LastKnownOrDefault()
	if got.Point != DefaultPosition.Point {
		t.Errorf("expected default position %+v, got %+v", DefaultPosition.Point, got.Point)
	}
}

func TestSession_PeriodicSyncFeedsPositions(t *testing.T) {
	p := &stubProvider{granted: true, pos: testPosition(28.61, 77.21)}
	s := NewSession("u1", p, nil, nil)
	s.RequestPermission(context.Background())
	s.StartPeriodicSync(FixOptions{}, 5*time.Millisecond)
	defer s.Stop()

	select {
	case pos := <-s.Positions():
		if pos.Point.Lat != 28.61 {
			t.Errorf("unexpected synced position: %+v", pos.Point)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no position on feed within deadline")
	}
}

func TestSession_PeriodicSyncFailurePushesLastKnown(t *testing.T) {
	p := &stubProvider{granted: true, pos: testPosition(28.61, 77.21)}
	s := NewSession("u1", p, nil, nil)
	s.RequestPermission(context.Background())

	if _, err := s.AcquirePosition(context.Background(), FixOptions{}); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.set(Position{}, errors.New("gps unavailable"))

	s.StartPeriodicSync(FixOptions{}, 5*time.Millisecond)
	defer s.Stop()

	select {
	case pos := <-s.Positions():
		if pos.Point.Lat != 28.61 || pos.Point.Lng != 77.21 {
			t.Errorf("failed tick should push last known fix, got %+v", pos.Point)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no position on feed within deadline")
	}
}

func TestSession_StopIdempotent(t *testing.T) {
	p := &stubProvider{granted: true, pos: testPosition(28.61, 77.21)}
	s := NewSession("u1", p, nil, nil)
	s.RequestPermission(context.Background())
	s.StartPeriodicSync(FixOptions{}, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()

	// The feed must drain and close after Stop.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-s.Positions():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed not closed after Stop")
		}
	}
}

func TestPushProvider_PermissionAndFreshness(t *testing.T) {
	p := NewPushProvider()
	ctx := context.Background()

	if _, err := p.CurrentPosition(ctx, FixOptions{}); err == nil {
		t.Fatal("expected error before permission granted")
	}

	p.SetPermission(true)
	if _, err := p.CurrentPosition(ctx, FixOptions{}); err == nil {
		t.Fatal("expected error before any fix pushed")
	}

	p.Push(testPosition(28.61, 77.21))
	pos, err := p.CurrentPosition(ctx, FixOptions{})
	if err != nil {
		t.Fatalf("current position: %v", err)
	}
	if pos.Point.Lat != 28.61 {
		t.Errorf("unexpected position: %+v", pos.Point)
	}

	stale := testPosition(28.61, 77.21)
	stale.CapturedAt = time.Now().Add(-time.Hour)
	p.Push(stale)
	_, err = p.CurrentPosition(ctx, FixOptions{MaxAge: time.Minute})
	var lerr *LocationError
	if !errors.As(err, &lerr) || lerr.Kind != ErrUnavailable {
		t.Fatalf("expected unavailable for stale pushed fix, got %v", err)
	}
}
