package subscription

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/gqlbridge/errors"
)

// ===== Test Helpers =====

// newGraphQLServer starts a WebSocket test server that negotiates the
// given subprotocols and hands each upgraded connection to handler. The
// handler runs on the server goroutine; report results through channels
// and assert in the test goroutine.
func newGraphQLServer(t *testing.T, subprotocols []string, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin:  func(_ *http.Request) bool { return true },
		Subprotocols: subprotocols,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

// ackAndSubscribe drives the server side of a successful handshake: it
// consumes connection_init, acknowledges it, and returns the operation
// start frame.
func ackAndSubscribe(conn *websocket.Conn) (Message, error) {
	var init Message
	if err := conn.ReadJSON(&init); err != nil {
		return Message{}, err
	}
	if err := conn.WriteJSON(Message{Type: msgTypeConnectionAck}); err != nil {
		return Message{}, err
	}
	var sub Message
	if err := conn.ReadJSON(&sub); err != nil {
		return Message{}, err
	}
	return sub, nil
}

// sendResult writes a data frame carrying the given execution result.
func sendResult(conn *websocket.Conn, id, frameType, result string) error {
	return conn.WriteJSON(Message{ID: id, Type: frameType, Payload: json.RawMessage(result)})
}

// testConfig returns an engine configuration with short timeouts suited
// to local test servers.
func testConfig(endpoint string) Config {
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.APIKey = "test-key"
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.AckTimeout = 2 * time.Second
	cfg.StopTimeout = 2 * time.Second
	cfg.ProbeTimeout = 500 * time.Millisecond
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(endpoint string, cfg Config, def Definition, vars map[string]any, track *tracker, store *Store) *session {
	return &session{
		def:       def,
		variables: vars,
		endpoint:  endpoint,
		cfg:       cfg,
		cache:     store,
		track:     track,
		logger:    testLogger(),
	}
}

var testDefinition = Definition{
	Name:  "systemEvents",
	Query: "subscription { systemEvents { id message } }",
}

// ===== Endpoint Derivation Tests =====

// TestDeriveEndpoint verifies the HTTP base URL maps to the GraphQL
// WebSocket endpoint.
func TestDeriveEndpoint(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{"https becomes wss", "https://api.example.com", "wss://api.example.com/graphql"},
		{"http becomes ws", "http://localhost:8080", "ws://localhost:8080/graphql"},
		{"graphql path kept", "https://api.example.com/graphql", "wss://api.example.com/graphql"},
		{"path extended", "https://api.example.com/v2", "wss://api.example.com/v2/graphql"},
		{"trailing slash trimmed", "https://api.example.com/v2/", "wss://api.example.com/v2/graphql"},
		{"ws passthrough", "ws://host:4000/graphql", "ws://host:4000/graphql"},
		{"wss gets path", "wss://host:4000", "wss://host:4000/graphql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveEndpoint(tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDeriveEndpoint_Errors verifies unusable base URLs are rejected with
// the sentinel the reconnection controller treats as terminal.
func TestDeriveEndpoint_Errors(t *testing.T) {
	_, err := DeriveEndpoint("")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingEndpoint)

	_, err = DeriveEndpoint("ftp://files.example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidEndpoint)

	_, err = DeriveEndpoint("https://bad host.example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidEndpoint)
}

// ===== Session Flow Tests =====

// TestSession_TransportDialect runs a full attempt against a server that
// negotiates graphql-transport-ws: init payload carries the key under
// every spelling, the operation starts with subscribe, data lands in the
// cache and the server's complete ends the session cleanly.
func TestSession_TransportDialect(t *testing.T) {
	subCh := make(chan Message, 1)
	initCh := make(chan Message, 1)

	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		var init Message
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		initCh <- init
		if err := conn.WriteJSON(Message{Type: msgTypeConnectionAck}); err != nil {
			return
		}
		var sub Message
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subCh <- sub
		sendResult(conn, sub.ID, msgTypeNext, `{"data":{"systemEvents":{"id":"e1","message":"up"}}}`)
		conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)

	authCalls := 0
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, map[string]any{"level": "info"}, track, store)
	sess.onAuthenticated = func() { authCalls++ }

	require.NoError(t, sess.run(context.Background()))
	assert.Equal(t, StateCompleted, track.current())
	assert.Equal(t, 1, authCalls)

	// Init payload presents the key under every spelling.
	select {
	case init := <-initCh:
		var payload map[string]any
		require.NoError(t, json.Unmarshal(init.Payload, &payload))
		assert.Equal(t, "test-key", payload["X-API-Key"])
		assert.Equal(t, "Bearer test-key", payload["Authorization"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connection_init")
	}

	// Subscribe frame uses the subscription name as operation id and the
	// transport dialect verb.
	select {
	case sub := <-subCh:
		assert.Equal(t, testDefinition.Name, sub.ID)
		assert.Equal(t, "subscribe", sub.Type)

		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.Unmarshal(sub.Payload, &body))
		assert.Equal(t, testDefinition.Query, body.Query)
		assert.Equal(t, "info", body.Variables["level"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for subscribe frame")
	}

	entry, ok := store.Get(testDefinition.Name)
	require.True(t, ok)
	assert.JSONEq(t, `{"systemEvents":{"id":"e1","message":"up"}}`, string(entry.Data))
}

// TestSession_LegacyDialect verifies a server that only speaks graphql-ws
// gets the legacy start verb and its data frames still reach the cache.
func TestSession_LegacyDialect(t *testing.T) {
	subCh := make(chan Message, 1)

	server := newGraphQLServer(t, []string{ProtocolGraphQLWS}, func(conn *websocket.Conn) {
		sub, err := ackAndSubscribe(conn)
		if err != nil {
			return
		}
		subCh <- sub
		sendResult(conn, sub.ID, msgTypeData, `{"data":{"systemEvents":{"id":"e2"}}}`)
		conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	require.NoError(t, sess.run(context.Background()))

	select {
	case sub := <-subCh:
		assert.Equal(t, "start", sub.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for start frame")
	}

	_, ok := store.Get(testDefinition.Name)
	assert.True(t, ok)
}

// TestSession_NoNegotiation verifies a server that negotiates no
// subprotocol at all is treated as legacy.
func TestSession_NoNegotiation(t *testing.T) {
	subCh := make(chan Message, 1)

	// No Subprotocols on the upgrader, so nothing is negotiated.
	server := newGraphQLServer(t, nil, func(conn *websocket.Conn) {
		sub, err := ackAndSubscribe(conn)
		if err != nil {
			return
		}
		subCh <- sub
		conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	require.NoError(t, sess.run(context.Background()))

	select {
	case sub := <-subCh:
		assert.Equal(t, "start", sub.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for start frame")
	}
}

// TestSession_EmptyAPIKey verifies a missing key sends an empty init
// payload rather than blank credential fields.
func TestSession_EmptyAPIKey(t *testing.T) {
	initCh := make(chan Message, 1)

	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		var init Message
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		initCh <- init
		conn.WriteJSON(Message{Type: msgTypeConnectionAck})
		var sub Message
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	cfg := testConfig(server.URL)
	cfg.APIKey = ""

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, cfg, testDefinition, nil, track, store)

	require.NoError(t, sess.run(context.Background()))

	select {
	case init := <-initCh:
		assert.JSONEq(t, `{}`, string(init.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connection_init")
	}
}

// ===== Authentication Failure Tests =====

// TestSession_AuthRejected verifies a connection_error response is a
// fatal failure the controller will not retry.
func TestSession_AuthRejected(t *testing.T) {
	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		var init Message
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		conn.WriteJSON(Message{
			Type:    msgTypeConnectionError,
			Payload: json.RawMessage(`{"message":"invalid api key"}`),
		})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	err = sess.run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAuthRejected)
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "invalid api key")

	_, _, lastError, _ := track.snapshot()
	assert.Contains(t, lastError, "authentication error")
}

// TestSession_AckTimeout verifies a server that never answers the init
// frame fails the attempt with a retryable timeout.
func TestSession_AckTimeout(t *testing.T) {
	release := make(chan struct{})

	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		var init Message
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		<-release
	})
	defer close(release)

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	cfg := testConfig(server.URL)
	cfg.AckTimeout = 100 * time.Millisecond

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, cfg, testDefinition, nil, track, store)

	err = sess.run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnectionTimeout)
	assert.True(t, errors.IsTransient(err))
}

// TestSession_MalformedInitResponse verifies unparseable bytes in place
// of the ack abort the attempt; the controller retries these.
func TestSession_MalformedInitResponse(t *testing.T) {
	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		var init Message
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("{not valid json"))
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	err = sess.run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedMessage)
	assert.True(t, errors.IsInvalid(err))

	_, _, lastError, _ := track.snapshot()
	assert.Contains(t, lastError, "invalid JSON in init response")
}

// TestSession_UnexpectedInitFrame verifies a non-ack frame before the ack
// does not fail the attempt; the session proceeds to subscribe without
// the authenticated state.
func TestSession_UnexpectedInitFrame(t *testing.T) {
	subCh := make(chan Message, 1)

	server := newGraphQLServer(t, []string{ProtocolGraphQLWS}, func(conn *websocket.Conn) {
		var init Message
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		if err := conn.WriteJSON(Message{Type: msgTypeKeepAlive}); err != nil {
			return
		}
		var sub Message
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subCh <- sub
		conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)

	authCalls := 0
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)
	sess.onAuthenticated = func() { authCalls++ }

	require.NoError(t, sess.run(context.Background()))
	assert.Equal(t, 0, authCalls, "keep-alive before ack must not count as authentication")

	select {
	case <-subCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for subscribe frame")
	}
}

// ===== Receive Loop Tests =====

// TestSession_PingPong verifies a server ping gets exactly one pong with
// the payload echoed back.
func TestSession_PingPong(t *testing.T) {
	pongCh := make(chan Message, 1)
	extraCh := make(chan error, 1)

	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		sub, err := ackAndSubscribe(conn)
		if err != nil {
			return
		}
		if err := conn.WriteJSON(Message{Type: msgTypePing, Payload: json.RawMessage(`{"seq":7}`)}); err != nil {
			return
		}
		var pong Message
		if err := conn.ReadJSON(&pong); err != nil {
			return
		}
		pongCh <- pong
		if err := conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete}); err != nil {
			return
		}
		// The session exits on complete; the only thing left to read is
		// the closed connection. A second pong here would be a bug.
		var extra Message
		extraCh <- conn.ReadJSON(&extra)
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	require.NoError(t, sess.run(context.Background()))

	select {
	case pong := <-pongCh:
		assert.Equal(t, msgTypePong, pong.Type)
		assert.JSONEq(t, `{"seq":7}`, string(pong.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for pong")
	}

	select {
	case err := <-extraCh:
		assert.Error(t, err, "expected connection close, not another frame")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connection close")
	}
}

// TestSession_MalformedFrameSkipped verifies undecodable frames are
// logged and skipped without ending the session.
func TestSession_MalformedFrameSkipped(t *testing.T) {
	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		sub, err := ackAndSubscribe(conn)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("%%% garbage %%%"))
		sendResult(conn, sub.ID, msgTypeNext, `{"data":{"after":"garbage"}}`)
		conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	require.NoError(t, sess.run(context.Background()))

	entry, ok := store.Get(testDefinition.Name)
	require.True(t, ok, "data after the malformed frame should still be cached")
	assert.JSONEq(t, `{"after":"garbage"}`, string(entry.Data))
}

// TestSession_ExecutionErrors verifies GraphQL errors in a data frame are
// recorded without aborting; later data still lands in the cache.
func TestSession_ExecutionErrors(t *testing.T) {
	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		sub, err := ackAndSubscribe(conn)
		if err != nil {
			return
		}
		sendResult(conn, sub.ID, msgTypeNext, `{"errors":[{"message":"field deprecated"},{"message":"rate limited"}]}`)
		sendResult(conn, sub.ID, msgTypeNext, `{"data":{"recovered":true}}`)
		conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	require.NoError(t, sess.run(context.Background()))

	_, _, lastError, _ := track.snapshot()
	assert.Contains(t, lastError, "field deprecated; rate limited")

	entry, ok := store.Get(testDefinition.Name)
	require.True(t, ok)
	assert.JSONEq(t, `{"recovered":true}`, string(entry.Data))
}

// TestSession_ErrorFrame verifies a protocol error frame records the
// failure and flips the state without closing the session.
func TestSession_ErrorFrame(t *testing.T) {
	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		sub, err := ackAndSubscribe(conn)
		if err != nil {
			return
		}
		conn.WriteJSON(Message{
			ID:      sub.ID,
			Type:    msgTypeError,
			Payload: json.RawMessage(`[{"message":"resolver crashed"}]`),
		})
		sendResult(conn, sub.ID, msgTypeNext, `{"data":{"still":"alive"}}`)
		conn.WriteJSON(Message{ID: sub.ID, Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	require.NoError(t, sess.run(context.Background()))

	_, _, lastError, _ := track.snapshot()
	assert.Contains(t, lastError, "resolver crashed")
	assert.Equal(t, StateCompleted, track.current())

	_, ok := store.Get(testDefinition.Name)
	assert.True(t, ok, "session should keep receiving after an error frame")
}

// TestSession_IgnoredFrames verifies frames for other operation ids,
// null-data results and keep-alives all pass without caching anything.
func TestSession_IgnoredFrames(t *testing.T) {
	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		sub, err := ackAndSubscribe(conn)
		if err != nil {
			return
		}
		sendResult(conn, "someOtherOperation", msgTypeNext, `{"data":{"foreign":true}}`)
		sendResult(conn, sub.ID, msgTypeNext, `{"data":null}`)
		conn.WriteJSON(Message{Type: msgTypeKeepAlive})
		conn.WriteJSON(Message{ID: "someOtherOperation", Type: msgTypeComplete})
		conn.WriteJSON(Message{Type: msgTypeComplete})
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	require.NoError(t, sess.run(context.Background()))
	assert.Equal(t, StateCompleted, track.current(), "complete without id ends the session")
	assert.Equal(t, 0, store.Len())
}

// TestSession_ConnectionDropped verifies an abrupt server close surfaces
// as a retryable connection loss.
func TestSession_ConnectionDropped(t *testing.T) {
	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		if _, err := ackAndSubscribe(conn); err != nil {
			return
		}
		conn.Close()
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	err = sess.run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnectionLost)
	assert.True(t, errors.IsTransient(err))
}

// TestSession_ContextCancelled verifies cancellation unblocks the read
// loop and reports the context error, not a connection failure.
func TestSession_ContextCancelled(t *testing.T) {
	server := newGraphQLServer(t, []string{ProtocolGraphQLTransportWS}, func(conn *websocket.Conn) {
		if _, err := ackAndSubscribe(conn); err != nil {
			return
		}
		// Hold the subscription open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	endpoint, err := DeriveEndpoint(server.URL)
	require.NoError(t, err)

	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)
	sess := newTestSession(endpoint, testConfig(server.URL), testDefinition, nil, track, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.run(ctx) }()

	require.Eventually(t, func() bool {
		return track.current() == StateSubscribed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for session to exit")
	}
}

// TestSession_DialFailure verifies an unreachable endpoint is a
// retryable failure.
func TestSession_DialFailure(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	track := newTracker(testDefinition.Name, nil)

	cfg := testConfig("http://127.0.0.1:1")
	cfg.HandshakeTimeout = 500 * time.Millisecond
	sess := newTestSession("ws://127.0.0.1:1/graphql", cfg, testDefinition, nil, track, store)

	err = sess.run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}
