// Package audit records moderation and account events to an audit trail.
//
// Services call a Recorder after their transaction commits. Recording is
// best-effort: a failed write is logged and never undoes the change.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event is one audited action.
type Event struct {
	Action     string         `json:"action" bson:"action"`
	Resource   string         `json:"resource" bson:"resource"`
	ResourceID string         `json:"resource_id,omitempty" bson:"resource_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	Outcome    string         `json:"outcome" bson:"outcome"`
	Reason     string         `json:"reason,omitempty" bson:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	At         time.Time      `json:"at" bson:"at"`
}

const (
	ResourceDeal       = "deal"
	ResourceBusiness   = "business"
	ResourceUser       = "user"
	ResourceRedemption = "redemption"

	OutcomeSuccess = "success"
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// Lister is implemented by backends that can read events back.
type Lister interface {
	Recent(ctx context.Context, resourceID string, limit int) ([]Event, error)
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Nop discards every event.
var Nop Recorder = RecorderFunc(func(context.Context, *Event) error { return nil })

// LogRecorder writes events to a structured logger.
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, e *Event) error {
	r.logger.InfoContext(ctx, "audit",
		"action", e.Action,
		"resource", e.Resource,
		"resource_id", e.ResourceID,
		"actor_id", e.ActorID,
		"outcome", e.Outcome,
		"reason", e.Reason,
	)
	return nil
}

// MemoryRecorder keeps events in process. Tests use it to assert on the trail.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

// Recent returns the newest events first, optionally for one resource.
func (r *MemoryRecorder) Recent(_ context.Context, resourceID string, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Event{}
	for i := len(r.events) - 1; i >= 0; i-- {
		if resourceID != "" && r.events[i].ResourceID != resourceID {
			continue
		}
		out = append(out, r.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Emit stamps and records e, logging instead of returning a failure.
func Emit(ctx context.Context, r Recorder, logger *slog.Logger, e Event) {
	if r == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	if err := r.Record(ctx, &e); err != nil && logger != nil {
		logger.WarnContext(ctx, "audit record failed",
			"action", e.Action,
			"resource_id", e.ResourceID,
			"error", err,
		)
	}
}
