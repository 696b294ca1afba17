// README: Play request broker: persist, deliver through the sink, terminal Sent/Failed, optimistic ack.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"rally/internal/metrics"
	"rally/internal/types"
)

var (
	ErrBadRequest = errors.New("bad play request")
	ErrNotFound   = errors.New("play request not found")
)

// Delivery is the message handed to the notification sink.
type Delivery struct {
	To      types.ID
	From    types.ID
	Game    string
	Time    string
	Message string
}

// Sink is the Notification/Messaging boundary.
type Sink interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Composer writes the invite line when the sender left it empty. Optional.
type Composer interface {
	ComposeInvite(ctx context.Context, game, proposedTime, toName string) (string, error)
}

// Requests is the persistence contract the broker needs; *Store is the
// production implementation.
type Requests interface {
	Create(ctx context.Context, r *Request) error
	Resolve(ctx context.Context, id types.ID, status Status, reason *string, at time.Time) error
	Get(ctx context.Context, id types.ID) (*Request, error)
}

type Broker struct {
	store    Requests
	sink     Sink
	composer Composer
	logger   *zap.Logger

	deliveryTimeout time.Duration
	breaker         *gobreaker.CircuitBreaker[struct{}]
	now             func() time.Time
}

type BrokerConfig struct {
	DeliveryTimeout time.Duration
}

func NewBroker(store Requests, sink Sink, composer Composer, cfg BrokerConfig, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "play-request-sink",
		Timeout: 30 * time.Second,
	})
	return &Broker{
		store:           store,
		sink:            sink,
		composer:        composer,
		logger:          logger,
		deliveryTimeout: cfg.DeliveryTimeout,
		breaker:         breaker,
		now:             time.Now,
	}
}

type SendCommand struct {
	FromID       types.ID
	ToID         types.ID
	Game         string
	ProposedTime string
	Message      string
}

// SendRequest creates the request, attempts one delivery, and resolves the
// record to Sent or Failed. The returned ack reports success regardless of
// the delivery outcome; the true status stays on the record. There is no
// automatic retry and a request is never left Pending.
func (b *Broker) SendRequest(ctx context.Context, cmd SendCommand) (Ack, error) {
	if cmd.FromID == "" || cmd.ToID == "" || cmd.Game == "" {
		return Ack{}, ErrBadRequest
	}
	if cmd.FromID == cmd.ToID {
		return Ack{}, ErrBadRequest
	}

	r := &Request{
		ID:           types.ID(uuid.NewString()),
		FromID:       cmd.FromID,
		ToID:         cmd.ToID,
		Game:         cmd.Game,
		ProposedTime: cmd.ProposedTime,
		Message:      b.inviteMessage(ctx, cmd),
		Status:       StatusPending,
		CreatedAt:    b.now(),
	}
	if err := b.store.Create(ctx, r); err != nil {
		return Ack{}, err
	}

	deliverErr := b.deliver(ctx, Delivery{
		To:      r.ToID,
		From:    r.FromID,
		Game:    r.Game,
		Time:    r.ProposedTime,
		Message: r.Message,
	})

	status := StatusSent
	var reason *string
	if deliverErr != nil {
		status = StatusFailed
		msg := deliverErr.Error()
		reason = &msg
		b.logger.Warn("play request delivery failed",
			zap.String("request_id", string(r.ID)),
			zap.String("to", string(r.ToID)),
			zap.Error(deliverErr))
	}
	if err := b.store.Resolve(ctx, r.ID, status, reason, b.now()); err != nil {
		// The record must not stay Pending on the happy-path read side;
		// log and carry on, the ack policy below is unchanged.
		b.logger.Error("resolving play request failed",
			zap.String("request_id", string(r.ID)), zap.Error(err))
	}
	metrics.RecordPlayRequest(string(status))

	// Optimistic UX: the sender sees success even when delivery failed.
	return Ack{RequestID: r.ID, Delivered: true}, nil
}

// deliver pushes through the breaker with a bounded timeout so a stalled sink
// cannot hold the caller.
func (b *Broker) deliver(ctx context.Context, d Delivery) error {
	sendCtx, cancel := context.WithTimeout(ctx, b.deliveryTimeout)
	defer cancel()
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.sink.Deliver(sendCtx, d)
	})
	return err
}

// Get exposes the true internal status for the sender.
func (b *Broker) Get(ctx context.Context, id types.ID) (*Request, error) {
	return b.store.Get(ctx, id)
}

// inviteMessage fills an empty message from the composer, falling back to a
// plain template when no composer is wired or it errors.
func (b *Broker) inviteMessage(ctx context.Context, cmd SendCommand) string {
	if cmd.Message != "" {
		return cmd.Message
	}
	if b.composer != nil {
		if msg, err := b.composer.ComposeInvite(ctx, cmd.Game, cmd.ProposedTime, string(cmd.ToID)); err == nil && msg != "" {
			return msg
		}
	}
	if cmd.ProposedTime != "" {
		return fmt.Sprintf("Up for a game of %s at %s?", cmd.Game, cmd.ProposedTime)
	}
	return fmt.Sprintf("Up for a game of %s?", cmd.Game)
}
