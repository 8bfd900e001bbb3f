// Package engine talks to the external research engine that runs deep-research
// operations in the background.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned by every call when no credential is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// Engine starts and polls background research operations.
type Engine interface {
	// Start launches a background operation and returns as soon as the engine
	// has accepted it. It never waits for the research to finish.
	Start(ctx context.Context, req StartRequest) (*Operation, error)

	// Retrieve fetches the current state of an operation, including its full
	// output document once it has finished.
	Retrieve(ctx context.Context, ref string) (*Operation, error)
}

// Message roles understood by the engine.
const (
	RoleDeveloper = "developer"
	RoleUser      = "user"
)

// Message is one entry of the ordered input sequence.
type Message struct {
	Role string
	Text string
}

// Tool types offered to the engine.
const (
	ToolWebSearch       = "web_search_preview"
	ToolCodeInterpreter = "code_interpreter"
)

// StartRequest describes a background research operation.
type StartRequest struct {
	Model    string
	Messages []Message
	Tools    []string
	// ReasoningSummary requests a reasoning summary mode ("auto").
	ReasoningSummary string
}

// BuildMessages orders the steering message before the query; the engine
// treats the first message as instruction context.
func BuildMessages(query, guidance string) []Message {
	msgs := make([]Message, 0, 2)
	if guidance != "" {
		msgs = append(msgs, Message{Role: RoleDeveloper, Text: guidance})
	}
	return append(msgs, Message{Role: RoleUser, Text: query})
}

// BuildTools always offers web search and adds code execution on request.
func BuildTools(codeInterpreter bool) []string {
	tools := []string{ToolWebSearch}
	if codeInterpreter {
		tools = append(tools, ToolCodeInterpreter)
	}
	return tools
}

// State is the engine status collapsed onto the local state machine.
type State int

const (
	StatePending State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Operation is the engine's view of one background operation.
type Operation struct {
	ID     string
	Status string // raw engine status
	// Document is the full response body, kept untyped because its shape is
	// owned by the engine and varies between model versions.
	Document map[string]any
}

// State maps the raw engine status. Unknown statuses count as pending so a new
// intermediate status never fails a job.
func (o *Operation) State() State {
	switch o.Status {
	case "completed":
		return StateCompleted
	case "failed", "cancelled", "incomplete":
		return StateFailed
	default:
		return StatePending
	}
}

// ErrorMessage returns the engine-reported failure reason, if the document has one.
func (o *Operation) ErrorMessage() string {
	if o.Document == nil {
		return ""
	}
	if e, ok := o.Document["error"].(map[string]any); ok {
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	if d, ok := o.Document["incomplete_details"].(map[string]any); ok {
		if reason, ok := d["reason"].(string); ok {
			return "incomplete: " + reason
		}
	}
	return ""
}

// APIError is a non-2xx response from the engine.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine status %d: %s", e.StatusCode, e.Body)
}
