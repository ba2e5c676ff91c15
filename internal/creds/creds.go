// Package creds exposes the external credential store to the session.
// The session only ever reads a bearer token; acquiring or refreshing
// it belongs to the surrounding application.
package creds

import "os"

// TokenSource supplies the bearer token for the messaging backend.
// ok is false when no credential is available; the session treats that
// as a terminal precondition failure, not something to retry.
type TokenSource interface {
	Token() (token string, ok bool)
}

// Static is a fixed token, useful for tests and one-shot tools.
type Static string

func (s Static) Token() (string, bool) {
	return string(s), s != ""
}

// Env reads the token from an environment variable on every call, so a
// token rotated by an external process is picked up on reconnect.
type Env string

func (e Env) Token() (string, bool) {
	v := os.Getenv(string(e))
	return v, v != ""
}
