// notify.go - Outbound notification contract.
//
// Delivery (email/SMS/WhatsApp) is an external collaborator. Notifications
// are fire-and-forget: a delivery failure must never roll back a committed
// ledger transaction, so managers call Notify after commit and only log
// the error.
package ledger

import (
	"context"

	"go.uber.org/zap"
)

type NotificationKind string

const (
	NotifySaleCreated     NotificationKind = "sale_created"
	NotifyPaymentReceived NotificationKind = "payment_received"
	NotifySaleCancelled   NotificationKind = "sale_cancelled"
)

// Notifier delivers a message to a recipient. Implementations must not
// block the caller for long; errors are logged, never propagated into
// ledger operations.
type Notifier interface {
	Notify(ctx context.Context, recipient string, title, body string, kind NotificationKind, link string) error
}

// NopNotifier discards all notifications. Default when none is wired.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, string, NotificationKind, string) error {
	return nil
}

// LogNotifier writes notifications to the log. Useful in development and
// as a stand-in until a real delivery channel is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, recipient, title, body string, kind NotificationKind, link string) error {
	n.Logger.Info("notification",
		zap.String("recipient", recipient),
		zap.String("title", title),
		zap.String("body", body),
		zap.String("kind", string(kind)),
		zap.String("link", link),
	)
	return nil
}
