// internal/adapter/notify/nats.go

// Package notify delivers report events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"kavach/internal/domain/report"
)

// subjectPrefix is the root of the report event subject space. Events are
// published to <prefix>.<kind>, e.g. reports.events.status_changed.
const subjectPrefix = "reports.events"

// NATSSink implements report.NotificationSink over a NATS connection.
type NATSSink struct {
	conn *nats.Conn
}

// NewNATSSink creates a sink on an established connection.
func NewNATSSink(conn *nats.Conn) *NATSSink {
	return &NATSSink{
		conn: conn,
	}
}

// Notify publishes the event as JSON. Publish is asynchronous; the flush
// is bounded by the caller's context so a slow broker cannot stall the
// triggering operation beyond its notification timeout.
func (s *NATSSink) Notify(ctx context.Context, e report.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, e.Kind)
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("error publishing event to %s: %w", subject, err)
	}

	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("error flushing event to %s: %w", subject, err)
	}

	return nil
}
