// Package typing delivers finished transcripts to the virtual keyboard
// service over the bus, decoupled from the transcription pipeline by a
// single worker goroutine.
package typing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/cxlab/voicetyping/internal/protocol"
)

// Injector types text into the focused window.
type Injector interface {
	Type(ctx context.Context, text string) error
}

// NATSInjector forwards text to the external keyboard service via
// request/reply, so delivery failures surface synchronously.
type NATSInjector struct {
	conn    *nats.Conn
	subject string
}

func NewNATSInjector(conn *nats.Conn, subject string) *NATSInjector {
	return &NATSInjector{conn: conn, subject: subject}
}

func (n *NATSInjector) Type(ctx context.Context, text string) error {
	payload, err := json.Marshal(protocol.TypeTextRequest{Text: text})
	if err != nil {
		return fmt.Errorf("encode type request: %w", err)
	}

	msg, err := n.conn.RequestWithContext(ctx, n.subject, payload)
	if err != nil {
		return fmt.Errorf("keyboard service request: %w", err)
	}

	var resp protocol.TypeTextResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return fmt.Errorf("decode type response: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("keyboard service refused text: %s", resp.Error)
	}
	return nil
}
