package leader

import (
	"context"
	"testing"
)

func TestIsLeaderFalseBeforeCampaign(t *testing.T) {
	e := New(nil, "calendar")
	if e.IsLeader() {
		t.Fatalf("expected IsLeader() == false before any campaign")
	}
}

func TestResignNoOpWithoutLease(t *testing.T) {
	e := New(nil, "audit-producer")
	if err := e.Resign(context.Background()); err != nil {
		t.Fatalf("Resign with no lease should be a no-op, got %v", err)
	}
}
