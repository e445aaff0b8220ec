package safeagent

import (
	"context"
	"time"
)

// EventType represents the type of streaming event.
type EventType string

const (
	EventTypeRunStart         EventType = "run_start"
	EventTypeRunComplete      EventType = "run_complete"
	EventTypeActionDetected   EventType = "action_detected"
	EventTypeActionResult     EventType = "action_result"
	EventTypeFinalOutput      EventType = "final_output"
	EventTypeError            EventType = "error"
	EventTypeApprovalRequired EventType = "approval_required"
	EventTypeApprovalGranted  EventType = "approval_granted"
	EventTypeApprovalDenied   EventType = "approval_denied"
	EventTypeRunHalted        EventType = "run_halted"
)

// Event represents a streaming event emitted during a run.
type Event struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, data map[string]any) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// RunStart creates a run start event.
func RunStart(input string) Event {
	return NewEvent(EventTypeRunStart, map[string]any{
		"input": input,
	})
}

// RunComplete creates a run completion event.
func RunComplete(output string, iterations int, durationMS int64) Event {
	return NewEvent(EventTypeRunComplete, map[string]any{
		"output":      output,
		"iterations":  iterations,
		"duration_ms": durationMS,
	})
}

// ActionDetected creates an event for a tool call about to execute.
func ActionDetected(tool, callID string) Event {
	return NewEvent(EventTypeActionDetected, map[string]any{
		"tool":    tool,
		"call_id": callID,
	})
}

// ActionResult creates an event for a finished tool call.
func ActionResult(tool, callID, output string) Event {
	return NewEvent(EventTypeActionResult, map[string]any{
		"tool":    tool,
		"call_id": callID,
		"output":  output,
	})
}

// FinalOutput creates a final output event.
func FinalOutput(response string) Event {
	return NewEvent(EventTypeFinalOutput, map[string]any{
		"response": response,
	})
}

// Error creates an error event.
func Error(err error) Event {
	return NewEvent(EventTypeError, map[string]any{
		"error": err.Error(),
	})
}

// ApprovalRequired creates an approval required event.
func ApprovalRequired(tool, formattedArgs string) Event {
	return NewEvent(EventTypeApprovalRequired, map[string]any{
		"tool": tool,
		"args": formattedArgs,
	})
}

// ApprovalGranted creates an approval granted event.
func ApprovalGranted(tool string) Event {
	return NewEvent(EventTypeApprovalGranted, map[string]any{
		"tool": tool,
	})
}

// ApprovalDenied creates an approval denied event.
func ApprovalDenied(tool, reason string) Event {
	return NewEvent(EventTypeApprovalDenied, map[string]any{
		"tool":   tool,
		"reason": reason,
	})
}

// RunHalted creates a run halted event.
func RunHalted(reason string) Event {
	return NewEvent(EventTypeRunHalted, map[string]any{
		"reason": reason,
	})
}

// EventPublisher is a function that publishes events.
type EventPublisher func(Event)

// publisherContextKey is a private type for context keys to avoid collisions.
type publisherContextKey struct{}

// WithEventPublisher adds an event publisher to the context so wrapped tools
// can surface approval events to whoever is running them.
func WithEventPublisher(ctx context.Context, publisher EventPublisher) context.Context {
	return context.WithValue(ctx, publisherContextKey{}, publisher)
}

// EventPublisherFromContext retrieves the event publisher from the context.
func EventPublisherFromContext(ctx context.Context) (EventPublisher, bool) {
	publisher, ok := ctx.Value(publisherContextKey{}).(EventPublisher)
	return publisher, ok
}

// emitEvent publishes through the context's publisher, if any.
func emitEvent(ctx context.Context, event Event) {
	if publish, ok := EventPublisherFromContext(ctx); ok {
		if run, hasRun := RunFromContext(ctx); hasRun {
			event.RunID = run.ID()
		}
		publish(event)
	}
}
