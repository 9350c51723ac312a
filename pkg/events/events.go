package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/craftbazaar/accounts/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// NoopPublisher drops events. Used when NATS is not configured so the
// service keeps a single code path for event dispatch.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	logger.DebugContext(ctx, "Event dropped (no event bus)", "subject", subject)
	return nil
}

func (NoopPublisher) Close() error { return nil }

// Account lifecycle subjects
const (
	AccountCreated       = "account.created"
	AccountVerified      = "account.verified"
	AccountLoggedIn      = "account.logged_in"
	AccountDeactivated   = "account.deactivated"
	AccountPasswordReset = "account.password_reset"
)

type AccountCreatedEvent struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type AccountVerifiedEvent struct {
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}

type AccountLoggedInEvent struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	LoginAt   time.Time `json:"login_at"`
}

type AccountDeactivatedEvent struct {
	AccountID     string    `json:"account_id"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

type AccountPasswordResetEvent struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	ResetAt   time.Time `json:"reset_at"`
}
