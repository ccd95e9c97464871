// Package generate calls the remote structured-generation API and validates
// what comes back. Callers receive either a schema-valid JSON document or an
// error that tells them whether the call itself failed (RemoteError) or the
// reply was unusable (MalformedOutputError).
package generate

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request carries one generation call: what the model should act as, the
// rendered source context, and the JSON Schema the reply must satisfy.
type Request struct {
	SystemInstructions string
	UserContext        string
	OutputSchema       json.RawMessage
}

// Result is a schema-valid generated document plus the model that produced
// it.
type Result struct {
	Document json.RawMessage
	Model    string
}

// Generator is the collaborator compose handlers call for structured output.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// RemoteError reports a failed call to the generation API: a transport
// failure, a non-2xx status, or an API-level error payload. Status is zero
// when the request never completed.
type RemoteError struct {
	Status int
	Msg    string
	Cause  error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("generation API status %d: %s", e.Status, e.Msg)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	default:
		return e.Msg
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// MalformedOutputError reports a reply that arrived but cannot be used: an
// undecodable body, an empty choice list, content that is not JSON, or a
// schema violation.
type MalformedOutputError struct {
	Reason string
	Cause  error
}

func (e *MalformedOutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed generation output: %s: %v", e.Reason, e.Cause)
	}
	return "malformed generation output: " + e.Reason
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Cause
}
