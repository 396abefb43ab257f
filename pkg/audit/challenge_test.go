package audit

import (
	"bytes"
	"testing"
)

func TestSolveDeterministic(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x01}, 32)
	leaves := [][]byte{bytes.Repeat([]byte{0x02}, 32), bytes.Repeat([]byte{0x03}, 32)}

	s1, err := solve(nonce, leaves)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	s2, err := solve(nonce, leaves)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !bytes.Equal(s1, s2) {
		t.Fatalf("expected deterministic solution, got %x vs %x", s1, s2)
	}
	if len(s1) != 32 {
		t.Fatalf("expected 32-byte solution, got %d", len(s1))
	}
}

func TestSolveSensitiveToNonce(t *testing.T) {
	leaves := [][]byte{bytes.Repeat([]byte{0x02}, 32)}
	s1, err := solve(bytes.Repeat([]byte{0x01}, 32), leaves)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	s2, err := solve(bytes.Repeat([]byte{0x03}, 32), leaves)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if bytes.Equal(s1, s2) {
		t.Fatalf("expected different nonces to produce different solutions")
	}
}

func TestSolveSensitiveToRangeLeafCount(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x01}, 32)
	s1, err := solve(nonce, [][]byte{bytes.Repeat([]byte{0x02}, 32)})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	s2, err := solve(nonce, [][]byte{bytes.Repeat([]byte{0x02}, 32), bytes.Repeat([]byte{0x02}, 32)})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if bytes.Equal(s1, s2) {
		t.Fatalf("expected leaf count to affect the tree shape and thus the solution")
	}
}
