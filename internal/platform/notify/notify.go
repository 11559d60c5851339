// Package notify dispatches notifications. Delivery is best effort: failures are
// logged and never reach the caller.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/sony/gobreaker"
)

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the JSON document published for every notification.
type Event struct {
	EventType    string         `json:"event_type"`
	Recipients   []string       `json:"recipients"`
	Message      string         `json:"message"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// BreakerSettings control when publishing is short-circuited.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, Timeout: 30 * time.Second}
}

// NATSNotifier publishes to notifications.p2p.<type> through a circuit breaker.
type NATSNotifier struct {
	pub           Publisher
	breaker       *gobreaker.CircuitBreaker
	subjectPrefix string
	now           func() time.Time
}

func NewNATSNotifier(pub Publisher, settings BreakerSettings) *NATSNotifier {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "nats-notifications",
		Timeout: settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", slog.String("breaker", name),
				slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &NATSNotifier{pub: pub, breaker: breaker, subjectPrefix: "notifications.p2p", now: time.Now}
}

func (n *NATSNotifier) Notify(ctx context.Context, notification domain.Notification) {
	logger := middleware.GetLoggerFromCtx(ctx)
	if len(notification.Recipients) == 0 {
		logger.Debug("Notification skipped, no recipients", slog.String("type", string(notification.Type)))
		return
	}

	data, err := json.Marshal(Event{
		EventType:    string(notification.Type),
		Recipients:   notification.Recipients,
		Message:      notification.Message,
		ResourceType: notification.ModelType,
		ResourceID:   notification.ModelID,
		Payload:      notification.Metadata,
		OccurredAt:   n.now().UTC(),
	})
	if err != nil {
		logger.Warn("Failed to marshal notification", slog.String("type", string(notification.Type)), slog.String("error", err.Error()))
		return
	}

	subject := fmt.Sprintf("%s.%s", n.subjectPrefix, notification.Type)
	_, err = n.breaker.Execute(func() (interface{}, error) {
		return nil, n.pub.Publish(subject, data)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logger.Warn("Notification dropped, circuit open", slog.String("subject", subject))
			return
		}
		logger.Warn("Failed to publish notification (non-fatal)", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}

	logger.Debug("Notification published", slog.String("subject", subject), slog.Int("recipients", len(notification.Recipients)))
}

// State exposes the breaker state for health reporting.
func (n *NATSNotifier) State() gobreaker.State {
	return n.breaker.State()
}

// LogNotifier writes notifications to the log. It is used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, notification domain.Notification) {
	middleware.GetLoggerFromCtx(ctx).Info("Notification",
		slog.String("type", string(notification.Type)),
		slog.Any("recipients", notification.Recipients),
		slog.String("message", notification.Message),
		slog.String("model_type", notification.ModelType),
		slog.String("model_id", notification.ModelID),
	)
}
