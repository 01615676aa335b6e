package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	// Wire parse errors. Inbound messages failing with these are dropped.
	ErrNoHeader    = errors.New("message has no header terminator '>'")
	ErrBadHeader   = errors.New("malformed message header")
	ErrBadPort     = errors.New("invalid port")
	ErrNoName      = errors.New("message has no display name")
	ErrInvalidName = errors.New("invalid display name")

	// Frame errors
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// Listener errors
	ErrAcceptFailures = errors.New("listener stopped after consecutive accept failures")

	// Node lifecycle
	ErrNodeStopped = errors.New("node is shut down")
)

// ─── Send Errors ────────────────────────────────────────────────────────────

// SendErrorKind tells the caller why an outbound message did not leave.
type SendErrorKind int

const (
	SendOther SendErrorKind = iota
	SendUnreachable
	SendTimeout
)

// String returns the kind label used in logs and API responses.
func (k SendErrorKind) String() string {
	switch k {
	case SendUnreachable:
		return "unreachable"
	case SendTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// SendError is returned by sends, handshakes and one-shot CLI sends.
type SendError struct {
	Kind   SendErrorKind
	Target Address
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s failed (%s): %v", e.Target, e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// BindError means the listening socket could not be acquired. It is the only
// error that aborts node construction.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }
