package ports

import "context"

// NotificationSink delivers human-readable events to an external channel.
// Delivery is best-effort: failures are logged by the caller and never
// propagate into state changes.
type NotificationSink interface {
	Send(ctx context.Context, text string) error
}
