package ai

import "context"

// InviteComposer writes a short "request to play" message. Implementations
// swap freely (Gemini today, anything else later); callers must tolerate
// errors and fall back to a template.
type InviteComposer interface {
	ComposeInvite(ctx context.Context, game, proposedTime, toName string) (string, error)
}
