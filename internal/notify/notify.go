// Package notify announces completed registrations.
//
// Notification is fire-and-forget: a failure is logged and counted but
// never affects the registration it describes.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/observability"
)

// Notifier sends a registration announcement. It returns false on failure.
type Notifier interface {
	Notify(ctx context.Context, ev domain.RegistrationEvent) bool
}

// Message renders the announcement text.
func Message(ev domain.RegistrationEvent) string {
	return fmt.Sprintf("✅ New domain registered!\nDomain: %s\nOwner: %s\nTransaction: %s\nTime: %s",
		ev.Name, ev.Owner, ev.TransactionHash, ev.RegisteredAt.UTC().Format(time.RFC3339))
}

// Log writes announcements to the service log. It is used when no
// external channel is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log notifier.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("notify")}
}

// Notify implements Notifier.
func (n *Log) Notify(_ context.Context, ev domain.RegistrationEvent) bool {
	n.logger.Info("domain registered",
		zap.String("name", ev.Name),
		zap.String("owner", ev.Owner),
		zap.String("tx_hash", ev.TransactionHash),
		zap.Time("registered_at", ev.RegisteredAt))
	observability.RecordNotification("log", true)
	return true
}

// Multi fans out to several notifiers and reports whether all succeeded.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ev domain.RegistrationEvent) bool {
	ok := true
	for _, n := range m {
		if !n.Notify(ctx, ev) {
			ok = false
		}
	}
	return ok
}
