// README: Play request aggregate and status definitions.
package match

import (
	"time"

	"rally/internal/types"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Request is one "request to play" between two players. Pending is
// transient; Sent and Failed are terminal and nothing retries automatically.
type Request struct {
	ID           types.ID
	FromID       types.ID
	ToID         types.ID
	Game         string
	ProposedTime string
	Message      string
	Status       Status
	CreatedAt    time.Time
	ResolvedAt   *time.Time
	FailReason   *string
}

// Ack is the caller-facing outcome. Delivered stays true even when the
// internal status is Failed: the product masks delivery failures to keep the
// flow non-blocking. Change that policy here, not in the broker core.
type Ack struct {
	RequestID types.ID `json:"requestId"`
	Delivered bool     `json:"success"`
}
