// README: Position fixes, permission state, and typed location errors.
package location

import (
	"fmt"
	"time"

	"rally/internal/types"
)

// PermissionState tracks the caller's location authorization.
type PermissionState string

const (
	PermissionUnrequested PermissionState = "unrequested"
	PermissionGranted     PermissionState = "granted"
	PermissionDenied      PermissionState = "denied"
)

// Position is a single captured device fix. Immutable once captured; a newer
// fix replaces it rather than mutating it.
type Position struct {
	Point      types.Point
	CapturedAt time.Time
	AccuracyM  *float64
}

// Valid reports whether the fix carries representable coordinates.
func (p Position) Valid() bool {
	return p.Point.Valid()
}

// Age returns how old the fix is relative to now.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.CapturedAt)
}

// DefaultPosition is used when no fix was ever acquired (Connaught Place,
// New Delhi — the launch city's center).
var DefaultPosition = Position{Point: types.Point{Lat: 28.6139, Lng: 77.2090}}

// ErrorKind classifies location acquisition failures.
type ErrorKind string

const (
	ErrTimeout          ErrorKind = "timeout"
	ErrPermissionDenied ErrorKind = "permission_denied"
	ErrUnavailable      ErrorKind = "unavailable"
)

// LocationError is the typed failure returned by fix acquisition.
type LocationError struct {
	Kind  ErrorKind
	Cause error
}

func (e *LocationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("location %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("location %s", e.Kind)
}

func (e *LocationError) Unwrap() error { return e.Cause }

// Fix is a journaled position sample for persistence.
type Fix struct {
	ID         int64
	UserID     types.ID
	Position   Position
	RecordedAt time.Time
}
