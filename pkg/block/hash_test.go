package block

import (
	"encoding/hex"
	"testing"
)

func TestComputeHashGenesis(t *testing.T) {
	b := &Block{
		ID:       0,
		Time:     1700000000,
		Version:  1,
		StackID:  "stack1",
		Type:     TypeGenesis,
		DataID:   "",
		DataVal:  "",
		PrevHash: GenesisPrevHash,
	}
	hash, err := computeHash(b)
	if err != nil {
		t.Fatalf("computeHash: %v", err)
	}
	if len(hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		t.Fatalf("hash is not valid hex: %v", err)
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	b1 := &Block{ID: 5, Time: 42, Version: 1, StackID: "s", Type: TypeCal, DataID: "d", DataVal: "ab12", PrevHash: GenesisPrevHash}
	b2 := &Block{ID: 5, Time: 42, Version: 1, StackID: "s", Type: TypeCal, DataID: "d", DataVal: "ab12", PrevHash: GenesisPrevHash}
	h1, err := computeHash(b1)
	if err != nil {
		t.Fatalf("computeHash: %v", err)
	}
	h2, err := computeHash(b2)
	if err != nil {
		t.Fatalf("computeHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %s != %s", h1, h2)
	}
}

func TestComputeHashChangesWithPrevHash(t *testing.T) {
	base := &Block{ID: 5, Time: 42, Version: 1, StackID: "s", Type: TypeCal, DataID: "d", DataVal: "ab12", PrevHash: GenesisPrevHash}
	h1, _ := computeHash(base)

	other := *base
	other.PrevHash = "1111111111111111111111111111111111111111111111111111111111111111"[:64]
	h2, _ := computeHash(&other)

	if h1 == h2 {
		t.Fatalf("hash must change when prevHash changes")
	}
}

func TestDataValBytesHexIfHexElseUTF8(t *testing.T) {
	if string(dataValBytes("deadbeef")) == "deadbeef" {
		t.Fatalf("valid hex input should decode, not pass through literally")
	}
	if string(dataValBytes("not-hex!!")) != "not-hex!!" {
		t.Fatalf("non-hex input should pass through as literal utf8")
	}
}
