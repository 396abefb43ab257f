package calendar

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/chainpoint-network/calendar-core/pkg/bus"
)

func rawMessage(t *testing.T, v any) *bus.Message {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &bus.Message{Payload: data}
}

func TestIntakeHandleDefersOwnershipOnSuccess(t *testing.T) {
	w := &Writer{}
	in := NewIntake(w)

	msg := rawMessage(t, aggregationRoot{AggID: "a1", AggRoot: "ab"})
	err := in.handle(context.Background(), msg)
	if err != bus.ErrDeferred {
		t.Fatalf("expected ErrDeferred, got %v", err)
	}
	if len(w.buffer) != 1 || w.buffer[0].AggID != "a1" {
		t.Fatalf("expected root enqueued, got %+v", w.buffer)
	}
}

func TestIntakeHandleRejectsNonHexRoot(t *testing.T) {
	w := &Writer{}
	in := NewIntake(w)

	msg := rawMessage(t, aggregationRoot{AggID: "a1", AggRoot: "not-hex"})
	if err := in.handle(context.Background(), msg); err == nil {
		t.Fatalf("expected error for non-hex aggRoot")
	}
	if len(w.buffer) != 0 {
		t.Fatalf("expected nothing enqueued on error")
	}
}
