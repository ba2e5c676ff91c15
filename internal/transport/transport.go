// Package transport owns a single physical websocket connection to the
// messaging backend and reports its lifecycle as events.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Precondition failures. Dialing cannot succeed until the caller fixes
// the target, so the session must never retry these.
var (
	ErrNoCredential   = errors.New("no credential available")
	ErrNoConversation = errors.New("no conversation id")
	ErrBadEndpoint    = errors.New("invalid endpoint URL")
)

// IsPrecondition reports whether err is a non-retryable target error.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrNoConversation) ||
		errors.Is(err, ErrBadEndpoint)
}

// Target identifies one conversation endpoint plus the credential used
// to authenticate the connection.
type Target struct {
	ConversationID string
	BaseURL        string // http(s) or ws(s) base, e.g. "https://campus.example.edu"
	Token          string
}

// EventType enumerates connection lifecycle events.
type EventType int

const (
	// Opened is emitted once when the connection becomes ready.
	Opened EventType = iota
	// Message carries one inbound text frame.
	Message
	// ErrorOccurred is a non-terminal error; a Closed event follows
	// eventually.
	ErrorOccurred
	// Closed is the single terminal event of a connection attempt.
	Closed
)

// Event is one connection lifecycle event.
type Event struct {
	Type   EventType
	Data   []byte // Message
	Err    error  // ErrorOccurred
	Code   int    // Closed
	Reason string // Closed
}

// Conn is one live connection. Events delivers lifecycle events in
// order, ending with exactly one Closed, after which the channel is
// closed.
type Conn interface {
	Send(data []byte) error
	Close(code int, reason string)
	Events() <-chan Event
}

// Dialer opens connections. The session depends on this interface so
// tests can substitute a scripted transport.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Conn, error)
}

// URL builds the websocket URL for a target:
// ws(s)://host/ws/messages/{conversationId}/?token={token}.
// An https base yields wss, http yields ws.
func URL(target Target) (string, error) {
	if target.Token == "" {
		return "", ErrNoCredential
	}
	if target.ConversationID == "" {
		return "", ErrNoConversation
	}

	base, err := url.Parse(target.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadEndpoint, err)
	}
	switch base.Scheme {
	case "http", "ws":
		base.Scheme = "ws"
	case "https", "wss":
		base.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrBadEndpoint, base.Scheme)
	}
	if base.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrBadEndpoint)
	}

	base.Path = "/ws/messages/" + url.PathEscape(target.ConversationID) + "/"
	base.RawQuery = url.Values{"token": {target.Token}}.Encode()
	return base.String(), nil
}
