package stream

import (
	"encoding/json"
	"fmt"

	"clipflow/internal/engine"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subject is the NATS subject execution events are published on.
func Subject(tenantID, executionID string) string {
	return fmt.Sprintf("tenant.%s.execution.%s.events", tenantID, executionID)
}

// SubjectWildcard matches the events of every execution of a tenant.
func SubjectWildcard(tenantID string) string {
	return fmt.Sprintf("tenant.%s.execution.*.events", tenantID)
}

// NATSPublisher relays events to NATS. Best-effort: without a connection it only logs, and
// publish failures never reach the execution.
type NATSPublisher struct {
	conn     *nats.Conn
	tenantID string
	logger   zerolog.Logger
}

func NewNATSPublisher(conn *nats.Conn, tenantID string, logger zerolog.Logger) *NATSPublisher {
	if conn == nil {
		logger.Warn().Msg("NATS not connected, execution events will not be relayed")
	}
	return &NATSPublisher{conn: conn, tenantID: tenantID, logger: logger}
}

func (p *NATSPublisher) Emit(ev engine.Event) {
	if p.conn == nil {
		p.logger.Debug().Str("executionId", ev.ExecutionID).Uint64("seq", ev.Seq).Str("status", ev.Status).Msg("event (no-op)")
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Str("executionId", ev.ExecutionID).Msg("Failed to marshal event")
		return
	}
	if err := p.conn.Publish(Subject(p.tenantID, ev.ExecutionID), data); err != nil {
		p.logger.Error().Err(err).Str("executionId", ev.ExecutionID).Msg("Failed to publish event")
	}
}
