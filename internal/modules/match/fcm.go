// README: FCM implementation of the notification sink.
package match

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"rally/internal/types"
)

// TokenResolver maps a player to their FCM registration token.
type TokenResolver interface {
	DeviceToken(ctx context.Context, id types.ID) (string, error)
}

// FCMSink delivers play requests as FCM data messages to the recipient's
// device.
type FCMSink struct {
	client *messaging.Client
	tokens TokenResolver
	logger *zap.Logger
}

func NewFCMSink(client *messaging.Client, tokens TokenResolver, logger *zap.Logger) *FCMSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FCMSink{client: client, tokens: tokens, logger: logger}
}

func (s *FCMSink) Deliver(ctx context.Context, d Delivery) error {
	token, err := s.tokens.DeviceToken(ctx, d.To)
	if err != nil {
		return errors.Wrap(err, "resolving device token")
	}
	if token == "" {
		return errors.Newf("no device token for player %s", string(d.To))
	}

	msg := &messaging.Message{
		Token: token,
		Data: map[string]string{
			"type": "play_request",
			"from": string(d.From),
			"game": d.Game,
			"time": d.Time,
		},
		Notification: &messaging.Notification{
			Title: "Request to play",
			Body:  inviteBody(d),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	messageID, err := s.client.Send(ctx, msg)
	if err != nil {
		return errors.Wrapf(err, "sending FCM to player %s", string(d.To))
	}
	s.logger.Info("play request delivered",
		zap.String("to", string(d.To)), zap.String("message_id", messageID))
	return nil
}

func inviteBody(d Delivery) string {
	if d.Message != "" {
		return d.Message
	}
	return fmt.Sprintf("Someone nearby wants to play %s", d.Game)
}
