// Package inference wraps the external model service behind a single
// contract: instructions plus situational context in, free text plus token
// cost out. Failures surface as *Error; the caller decides retry policy.
package inference

import (
	"context"
	"fmt"
)

// Request is a single inference call. The caller renders everything the
// model needs, recent message history included, into Context.
type Request struct {
	// Instructions is the role's fixed specialization text.
	Instructions string
	// Context is the rendered situational state.
	Context string
}

// Result is a successful inference outcome.
type Result struct {
	Content    string
	TokensUsed int
}

// Client is the inference service contract.
type Client interface {
	Infer(ctx context.Context, req Request) (*Result, error)
}

// Error reports a transport or processing failure during an inference call.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference: %s: %v", e.Reason, e.Err)
	}
	return "inference: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Unconfigured is a Client used when no API key is present. Every call
// fails, which rounds surface as per-role error events.
type Unconfigured struct{}

func (Unconfigured) Infer(ctx context.Context, req Request) (*Result, error) {
	return nil, &Error{Reason: "inference API key is not configured"}
}
