package subscription

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/gqlbridge/errors"
)

// DeriveEndpoint maps the configured API base URL to the GraphQL WebSocket
// endpoint: https becomes wss, http becomes ws, and /graphql is appended
// unless the path already ends with it. ws/wss URLs pass through unchanged.
func DeriveEndpoint(base string) (string, error) {
	if base == "" {
		return "", errors.Wrap(errors.ErrMissingEndpoint, "session", "DeriveEndpoint", "resolve base URL")
	}

	derived := base
	switch {
	case strings.HasPrefix(base, "https://"):
		derived = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		derived = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(derived)
	if err != nil {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidEndpoint, err),
			"session", "DeriveEndpoint", "parse URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: unsupported scheme %q", errors.ErrInvalidEndpoint, u.Scheme),
			"session", "DeriveEndpoint", "validate scheme")
	}

	if !strings.HasSuffix(u.Path, "/graphql") {
		u.Path = strings.TrimRight(u.Path, "/") + "/graphql"
	}
	return u.String(), nil
}

// session is one connect-subscribe-receive attempt for a single
// subscription. The controller creates a fresh session per attempt.
type session struct {
	def       Definition
	variables map[string]any
	endpoint  string
	cfg       Config
	cache     *Store
	metrics   *Metrics
	track     *tracker
	logger    *slog.Logger

	// onAuthenticated fires when the server acknowledges the connection,
	// letting the controller reset its attempt counter and backoff.
	onAuthenticated func()
}

// run executes the attempt until the server completes the subscription,
// the connection fails, or ctx is cancelled. A nil return means the server
// ended the subscription with a complete frame.
func (s *session) run(ctx context.Context) error {
	s.track.setState(StateConnecting)
	s.logger.Debug("connecting", "endpoint", s.endpoint)

	dialer := &websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Subprotocols:     Subprotocols(),
	}
	if s.cfg.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.track.trackError("connect_error")
		return errors.WrapTransient(err, "session", "run", "dial endpoint")
	}
	defer conn.Close()

	// Unblock reads when the caller cancels.
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
	s.track.setState(StateConnected)
	s.metrics.connected(s.def.Name)
	s.logger.Info("connected", "protocol", conn.Subprotocol(), "dialect", string(dialect))

	if err := s.authenticate(ctx, conn); err != nil {
		return err
	}

	if err := s.subscribe(conn, dialect); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.track.trackError("subscribe_error")
		return errors.WrapTransient(err, "session", "run", "send subscribe")
	}
	s.track.setState(StateSubscribed)
	s.logger.Info("subscription started", "type", dialect.SubscribeType())

	return s.receive(ctx, conn, dialect)
}

// authenticate sends connection_init and waits for the server's verdict.
func (s *session) authenticate(ctx context.Context, conn *websocket.Conn) error {
	if s.cfg.APIKey == "" {
		s.logger.Warn("no API key configured, sending empty init payload")
	}

	init := Message{
		Type:    msgTypeConnectionInit,
		Payload: InitPayload(s.cfg.APIKey, s.cfg.AuthCompat),
	}
	if err := conn.WriteJSON(init); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.track.trackError("init_error")
		return errors.WrapTransient(err, "session", "authenticate", "send connection_init")
	}

	conn.SetReadDeadline(time.Now().Add(s.cfg.AckTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			s.track.trackError("ack_timeout")
			return errors.WrapTransient(
				fmt.Errorf("%w: no response within %s", errors.ErrConnectionTimeout, s.cfg.AckTimeout),
				"session", "authenticate", "await connection_ack")
		}
		s.track.trackError("read_error")
		return errors.WrapTransient(err, "session", "authenticate", "await connection_ack")
	}
	conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Error("failed to decode init response", "preview", preview(raw), "error", err)
		s.track.setError(fmt.Sprintf("invalid JSON in init response: %v", err))
		s.track.trackError("parse_error")
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err),
			"session", "authenticate", "decode init response")
	}

	switch msg.Type {
	case msgTypeConnectionAck:
		s.track.setState(StateAuthenticated)
		s.logger.Info("connection acknowledged")
		if s.onAuthenticated != nil {
			s.onAuthenticated()
		}
	case msgTypeConnectionError:
		s.track.setError(fmt.Sprintf("authentication error: %s", string(msg.Payload)))
		s.metrics.authFailure(s.def.Name)
		s.track.trackError("auth_error")
		return errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrAuthRejected, string(msg.Payload)),
			"session", "authenticate", "establish connection")
	default:
		// Some servers emit other frames before the ack; proceed without
		// the authenticated state rather than failing the attempt.
		s.logger.Warn("unexpected init response", "type", msg.Type)
	}

	return nil
}

// subscribe sends the operation start frame for the session's dialect.
func (s *session) subscribe(conn *websocket.Conn, dialect Dialect) error {
	vars := s.variables
	if vars == nil {
		vars = map[string]any{}
	}
	payload, err := json.Marshal(map[string]any{
		"query":     s.def.Query,
		"variables": vars,
	})
	if err != nil {
		return err
	}

	return conn.WriteJSON(Message{
		ID:      s.def.Name,
		Type:    dialect.SubscribeType(),
		Payload: payload,
	})
}

// receive consumes frames until the subscription completes or the
// connection drops. Frames that fail to decode are logged and skipped.
func (s *session) receive(ctx context.Context, conn *websocket.Conn, dialect Dialect) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.track.trackError("read_error")
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
				"session", "receive", "read frame")
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Error("failed to decode frame", "preview", preview(raw), "error", err)
			s.track.trackError("parse_error")
			continue
		}

		switch {
		case dialect.IsData(msg.Type):
			if msg.ID != s.def.Name {
				s.logger.Debug("data frame for unknown id", "id", msg.ID)
				continue
			}
			s.handleData(msg.Payload)

		case msg.Type == msgTypePing:
			if err := conn.WriteJSON(Message{Type: msgTypePong, Payload: msg.Payload}); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.track.trackError("write_error")
				return errors.WrapTransient(err, "session", "receive", "send pong")
			}

		case dialect.IsKeepAlive(msg.Type):
			// Heartbeat, nothing to do.

		case msg.Type == msgTypeError:
			s.track.setError(fmt.Sprintf("subscription error: %s", string(msg.Payload)))
			s.track.setState(StateError)
			s.track.trackError("subscription_error")
			s.logger.Error("subscription error frame", "payload", string(msg.Payload))

		case msg.Type == msgTypeComplete:
			if msg.ID != "" && msg.ID != s.def.Name {
				s.logger.Debug("complete frame for unknown id", "id", msg.ID)
				continue
			}
			s.track.setState(StateCompleted)
			s.logger.Info("subscription completed by server")
			return nil

		default:
			s.logger.Debug("unhandled frame type", "type", msg.Type)
		}
	}
}

// handleData applies one execution result: data replaces the cache entry,
// errors are recorded without ending the session.
func (s *session) handleData(payload json.RawMessage) {
	var result ExecutionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		s.logger.Error("failed to decode execution result", "preview", preview(payload), "error", err)
		s.track.trackError("parse_error")
		return
	}

	switch {
	case len(result.Data) > 0 && !bytes.Equal(result.Data, []byte("null")):
		s.cache.Put(s.def.Name, result.Data)
		s.metrics.payloadReceived(s.def.Name)
		s.logger.Debug("payload updated", "bytes", len(result.Data))

	case len(result.Errors) > 0:
		text := joinErrors(result.Errors)
		s.track.setError("GraphQL errors: " + text)
		s.metrics.payloadError(s.def.Name)
		s.logger.Error("execution errors in data frame", "errors", text)

	default:
		s.logger.Warn("data frame with empty payload")
	}
}

// preview truncates raw wire bytes for log output.
func preview(raw []byte) string {
	const max = 200
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
