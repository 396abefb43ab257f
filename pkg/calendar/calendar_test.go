package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chainpoint-network/calendar-core/pkg/block"
	"github.com/chainpoint-network/calendar-core/pkg/merkle"
	"github.com/chainpoint-network/calendar-core/pkg/proofstore"
)

func leafOf(b byte) []byte {
	l := make([]byte, 32)
	for i := range l {
		l[i] = b
	}
	return l
}

func TestDrainBufferClearsAndReturnsSnapshot(t *testing.T) {
	w := &Writer{}
	w.buffer = []PendingRoot{{AggID: "a"}, {AggID: "b"}}

	snap := w.drainBuffer()
	if len(snap) != 2 {
		t.Fatalf("expected snapshot of 2, got %d", len(snap))
	}
	if len(w.buffer) != 0 {
		t.Fatalf("expected buffer cleared, got %d entries", len(w.buffer))
	}
}

func TestRequeueHeadPrependsSnapshot(t *testing.T) {
	w := &Writer{}
	w.buffer = []PendingRoot{{AggID: "late"}}
	w.requeueHead([]PendingRoot{{AggID: "early1"}, {AggID: "early2"}})

	if len(w.buffer) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(w.buffer))
	}
	if w.buffer[0].AggID != "early1" || w.buffer[1].AggID != "early2" || w.buffer[2].AggID != "late" {
		t.Fatalf("requeued roots not at head in order: %+v", w.buffer)
	}
}

func TestBuildProofsAppendsBindingOps(t *testing.T) {
	leaves := [][]byte{leafOf(1), leafOf(2), leafOf(3)}
	tree, err := merkle.Build(leaves, merkle.SHA256)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	calBlock := &block.Block{
		ID:       7,
		Time:     1700000000,
		Version:  1,
		StackID:  "stack1",
		Type:     block.TypeCal,
		DataID:   "7",
		DataVal:  tree.RootHex(),
		PrevHash: block.GenesisPrevHash,
	}

	snapshot := []PendingRoot{
		{AggID: "agg-0", AggRoot: leaves[0]},
		{AggID: "agg-1", AggRoot: leaves[1]},
		{AggID: "agg-2", AggRoot: leaves[2]},
	}

	proofs, err := buildProofs(tree, calBlock, snapshot)
	if err != nil {
		t.Fatalf("buildProofs: %v", err)
	}
	byKey := make(map[string]proofstore.Proof, len(proofs))
	for _, p := range proofs {
		byKey[p.Key] = p
	}

	for i, r := range snapshot {
		p, ok := byKey[r.AggID]
		if !ok {
			t.Fatalf("no proof built for %s", r.AggID)
		}
		if p.AnchorURI != "/calendar/7/hash" {
			t.Fatalf("wrong anchor URI: %s", p.AnchorURI)
		}
		last3 := p.Ops[len(p.Ops)-3:]
		if last3[0].L != block.MetaString(calBlock) {
			t.Fatalf("binding op[0] should carry block meta string, got %+v", last3[0])
		}
		if last3[1].R != calBlock.PrevHash {
			t.Fatalf("binding op[1] should carry prevHash, got %+v", last3[1])
		}
		if last3[2].Op != string(merkle.SHA256) {
			t.Fatalf("binding op[2] should be sha-256, got %+v", last3[2])
		}

		got, err := merkle.Replay(leaves[i], p.Ops)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if len(got) != 32 {
			t.Fatalf("expected 32-byte resulting hash, got %d", len(got))
		}
	}
}

func TestWithRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), retryConfig{attempts: 5, base: time.Millisecond, factor: 1.0}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryExhausts(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), retryConfig{attempts: 3, base: time.Millisecond, factor: 1.0}, func() error {
		attempts++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}
