package subscription

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/gqlbridge/errors"
)

// Probe outcomes.
const (
	ProbeReceived            = "received"
	ProbeNoImmediateResponse = "no_immediate_response"
)

// ProbeResult is the outcome of a single-shot subscription test.
type ProbeResult struct {
	Outcome     string          `json:"outcome"`
	Response    json.RawMessage `json:"response,omitempty"`
	Note        string          `json:"note,omitempty"`
	Protocol    string          `json:"protocol,omitempty"`
	QueryTested string          `json:"query_tested"`
}

// Probe opens a throwaway connection, runs the query as a subscription and
// waits briefly for the first frame. It is a debugging aid for finding
// working subscription fields; it never touches the cache or the runtime.
//
// A quiet server is not a failure: subscriptions may only emit on changes,
// so a timeout reports ProbeNoImmediateResponse.
func (m *Manager) Probe(ctx context.Context, query string) (ProbeResult, error) {
	result := ProbeResult{QueryTested: query}

	endpoint, err := DeriveEndpoint(m.cfg.Endpoint)
	if err != nil {
		return result, err
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		Subprotocols:     Subprotocols(),
	}
	if m.cfg.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, errors.WrapTransient(err, componentName, "Probe", "dial endpoint")
	}
	defer conn.Close()

	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watcherDone:
		}
	}()

	dialect := DialectFor(conn.Subprotocol())
	result.Protocol = conn.Subprotocol()
	m.logger.Info("probe connected", "protocol", result.Protocol)

	// Probes authenticate with the plain bearer payload only.
	init := Message{
		Type:    msgTypeConnectionInit,
		Payload: InitPayload(m.cfg.APIKey, false),
	}
	if err := conn.WriteJSON(init); err != nil {
		return result, errors.WrapTransient(err, componentName, "Probe", "send connection_init")
	}

	conn.SetReadDeadline(time.Now().Add(m.cfg.AckTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return result, errors.WrapTransient(
				fmt.Errorf("%w: no init response within %s", errors.ErrConnectionTimeout, m.cfg.AckTimeout),
				componentName, "Probe", "await connection_ack")
		}
		return result, errors.WrapTransient(err, componentName, "Probe", "await connection_ack")
	}

	var ack Message
	if err := json.Unmarshal(raw, &ack); err != nil {
		return result, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err),
			componentName, "Probe", "decode init response")
	}
	switch ack.Type {
	case msgTypeConnectionAck:
	case msgTypeConnectionError:
		return result, errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrAuthRejected, string(ack.Payload)),
			componentName, "Probe", "establish connection")
	default:
		return result, errors.WrapInvalid(
			fmt.Errorf("connection failed, unexpected init response %q", ack.Type),
			componentName, "Probe", "establish connection")
	}

	payload, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return result, errors.WrapInvalid(err, componentName, "Probe", "encode subscribe payload")
	}
	sub := Message{
		ID:      "probe-" + uuid.NewString(),
		Type:    dialect.SubscribeType(),
		Payload: payload,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return result, errors.WrapTransient(err, componentName, "Probe", "send subscribe")
	}

	conn.SetReadDeadline(time.Now().Add(m.cfg.ProbeTimeout))
	_, first, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			result.Outcome = ProbeNoImmediateResponse
			result.Note = "connection successful, subscription may be waiting for events"
			m.logger.Info("probe saw no immediate response", "timeout", m.cfg.ProbeTimeout)
			return result, nil
		}
		return result, errors.WrapTransient(err, componentName, "Probe", "await first frame")
	}

	result.Outcome = ProbeReceived
	result.Response = json.RawMessage(first)
	m.logger.Info("probe received response", "bytes", len(first))
	return result, nil
}
