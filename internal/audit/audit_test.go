package audit

import (
	"context"
	"errors"
	"testing"
)

func TestEmitStampsDefaults(t *testing.T) {
	rec := NewMemoryRecorder()
	Emit(context.Background(), rec, nil, Event{Action: "deal.approved", Resource: ResourceDeal, ResourceID: "deal_1"})

	events, _ := rec.Recent(context.Background(), "", 0)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Outcome != OutcomeSuccess || events[0].At.IsZero() {
		t.Errorf("expected stamped event, got %+v", events[0])
	}
}

func TestEmitSwallowsRecorderErrors(t *testing.T) {
	failing := RecorderFunc(func(context.Context, *Event) error { return errors.New("down") })
	Emit(context.Background(), failing, nil, Event{Action: "x"})
	Emit(context.Background(), nil, nil, Event{Action: "x"})
}

func TestRecentFiltersAndLimits(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	for _, rid := range []string{"a", "b", "a", "a"} {
		_ = rec.Record(ctx, &Event{Action: "touch", ResourceID: rid})
	}

	events, _ := rec.Recent(ctx, "a", 2)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.ResourceID != "a" {
			t.Errorf("unexpected resource %q", e.ResourceID)
		}
	}
}
