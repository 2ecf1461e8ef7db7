package subscription

import (
	"encoding/json"
	"strings"
)

// WebSocket subprotocol identifiers. The modern protocol is offered first;
// servers that only speak the legacy protocol negotiate the second.
const (
	ProtocolGraphQLTransportWS = "graphql-transport-ws"
	ProtocolGraphQLWS          = "graphql-ws"
)

// Message types shared by both dialects or specific to one of them.
const (
	msgTypeConnectionInit  = "connection_init"
	msgTypeConnectionAck   = "connection_ack"
	msgTypeConnectionError = "connection_error"
	msgTypeSubscribe       = "subscribe" // graphql-transport-ws
	msgTypeStart           = "start"     // graphql-ws
	msgTypeNext            = "next"      // graphql-transport-ws
	msgTypeData            = "data"      // graphql-ws
	msgTypePing            = "ping"
	msgTypePong            = "pong"
	msgTypeKeepAlive       = "ka" // graphql-ws server heartbeat
	msgTypeError           = "error"
	msgTypeComplete        = "complete"
)

// Dialect identifies which GraphQL-over-WebSocket vocabulary a session
// speaks. The zero value is not valid; use DialectFor.
type Dialect string

const (
	// DialectTransport is the graphql-transport-ws vocabulary
	// (subscribe/next/ping/pong).
	DialectTransport Dialect = ProtocolGraphQLTransportWS
	// DialectLegacy is the original graphql-ws vocabulary (start/data/ka).
	DialectLegacy Dialect = ProtocolGraphQLWS
)

// Subprotocols returns the subprotocol offer in preference order.
func Subprotocols() []string {
	return []string{ProtocolGraphQLTransportWS, ProtocolGraphQLWS}
}

// DialectFor maps the negotiated subprotocol to a dialect. Servers that
// negotiate nothing (or something unrecognized) are treated as legacy,
// which tolerates the widest range of implementations.
func DialectFor(negotiated string) Dialect {
	if negotiated == ProtocolGraphQLTransportWS {
		return DialectTransport
	}
	return DialectLegacy
}

// SubscribeType returns the message type that begins an operation.
func (d Dialect) SubscribeType() string {
	if d == DialectTransport {
		return msgTypeSubscribe
	}
	return msgTypeStart
}

// IsData reports whether t carries an execution result. Both spellings are
// accepted regardless of dialect; servers are not consistent about this.
func (d Dialect) IsData(t string) bool {
	return t == msgTypeNext || t == msgTypeData
}

// IsKeepAlive reports whether t is a heartbeat that needs no reply.
func (d Dialect) IsKeepAlive(t string) bool {
	return t == msgTypeKeepAlive || t == msgTypePong
}

// Message is the wire envelope for both dialects. Fields are omitted when
// empty so control frames stay minimal.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ExecutionResult is the payload of a data frame.
type ExecutionResult struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is a single error from an execution result.
type GraphQLError struct {
	Message string `json:"message"`
}

// Error implements the error interface.
func (e GraphQLError) Error() string {
	return e.Message
}

// joinErrors renders execution errors into one line for lastError tracking.
func joinErrors(errs []GraphQLError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

// InitPayload builds the connection_init payload for the given API key.
//
// In compat mode the key is presented under every header spelling observed
// in the wild (X-API-Key, x-api-key, authorization, Authorization, and a
// nested headers object), because GraphQL servers disagree about where they
// read credentials from during the WebSocket handshake. With compat off,
// only a standard bearer Authorization field is sent.
//
// An empty key yields an empty payload; the caller decides whether that is
// worth a warning.
func InitPayload(apiKey string, compat bool) json.RawMessage {
	if apiKey == "" {
		return json.RawMessage(`{}`)
	}

	bearer := "Bearer " + apiKey

	var payload map[string]any
	if compat {
		payload = map[string]any{
			"X-API-Key":     apiKey,
			"x-api-key":     apiKey,
			"authorization": bearer,
			"Authorization": bearer,
			"headers": map[string]any{
				"X-API-Key":     apiKey,
				"Authorization": bearer,
			},
		}
	} else {
		payload = map[string]any{
			"Authorization": bearer,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Maps of strings cannot fail to marshal; keep the session alive
		// with an empty payload if that ever changes.
		return json.RawMessage(`{}`)
	}
	return data
}
