package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"clipflow/internal/engine/stream"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSBridge subscribes to the execution event subjects and pushes messages into the Hub.
type NATSBridge struct {
	conn     *nats.Conn
	hub      *Hub
	tenantID string
	logger   zerolog.Logger
}

func NewNATSBridge(natsURL, tenantID string, hub *Hub) (*NATSBridge, error) {
	nc, err := nats.Connect(natsURL, nats.Name("clipflow-realtime"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSBridge{conn: nc, hub: hub, tenantID: tenantID, logger: hub.logger}, nil
}

// Subscribe listens on tenant.<tenantID>.execution.*.events
func (b *NATSBridge) Subscribe() error {
	subject := stream.SubjectWildcard(b.tenantID)
	_, err := b.conn.Subscribe(subject, b.handle)
	if err != nil {
		return fmt.Errorf("nats subscribe %q: %w", subject, err)
	}
	b.logger.Info().Str("subject", subject).Msg("NATS bridge subscribed")
	return nil
}

func (b *NATSBridge) handle(msg *nats.Msg) {
	executionID, err := parseExecutionIDFromSubject(msg.Subject)
	if err != nil {
		b.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("nats: bad subject")
		return
	}
	data, err := envelope(executionID, msg.Data)
	if err != nil {
		b.logger.Error().Err(err).Str("executionId", executionID).Msg("nats: marshal envelope")
		return
	}
	b.hub.Publish(executionID, data)
}

// envelope wraps a raw execution event in the message sent to clients.
func envelope(executionID string, event []byte) ([]byte, error) {
	return json.Marshal(outgoingMsg{
		Type:        "execution.event",
		ExecutionID: executionID,
		Payload:     json.RawMessage(event),
	})
}

// Close drains the NATS connection.
func (b *NATSBridge) Close() {
	if err := b.conn.Drain(); err != nil {
		b.logger.Error().Err(err).Msg("nats drain")
	}
}

// parseExecutionIDFromSubject extracts the id from "tenant.<tid>.execution.<executionID>.events"
func parseExecutionIDFromSubject(subject string) (string, error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 5 || parts[0] != "tenant" || parts[2] != "execution" || parts[4] != "events" {
		return "", fmt.Errorf("unexpected subject layout %q", subject)
	}
	if parts[3] == "" {
		return "", fmt.Errorf("empty execution id in %q", subject)
	}
	return parts[3], nil
}
