// Copyright 2025 Certen Protocol
//
// Package audit implements the Audit Engine (C9): periodic challenge
// generation, leader-driven audit rounds that task out Node checks, and
// per-task result consumption against eight independent predicates.
//
// Grounded on the teacher's pkg/consensus/health_monitor.go for the
// periodic liveness-evaluation-of-a-peer-population shape (score, decay,
// re-poll every tick) generalized here from validator health to Node
// audit scoring; challenge-solution construction reuses pkg/merkle.
package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chainpoint-network/calendar-core/pkg/block"
	"github.com/chainpoint-network/calendar-core/pkg/merkle"
)

// Challenge is the current audit challenge: the block range it covers, the
// nonce mixed into its solution, and the solution itself. Readers always
// see a complete challenge because it is swapped in atomically as a whole.
type Challenge struct {
	Min       int64
	Max       int64
	Nonce     []byte
	Solution  []byte
	CreatedAt time.Time
}

// ChallengeGenerator periodically recomputes the current Challenge.
type ChallengeGenerator struct {
	store   *block.Store
	stackID string
	current atomic.Pointer[Challenge]
}

// NewChallengeGenerator constructs a ChallengeGenerator for stackID.
func NewChallengeGenerator(store *block.Store, stackID string) *ChallengeGenerator {
	return &ChallengeGenerator{store: store, stackID: stackID}
}

// Current returns the most recently generated challenge, or nil if none has
// been generated yet.
func (g *ChallengeGenerator) Current() *Challenge {
	return g.current.Load()
}

// Generate computes a fresh challenge and atomically swaps it in (spec
// §4.9, "Challenge generation").
func (g *ChallengeGenerator) Generate(ctx context.Context, randInt func(n int64) (int64, error)) error {
	tip, err := g.store.Tip(ctx, g.stackID)
	if err != nil {
		return fmt.Errorf("audit: read tip: %w", err)
	}

	max := tip.ID
	if max > 2000 {
		max = tip.ID - 1000
	}

	span, err := randInt(991) // rand(10..1000) inclusive
	if err != nil {
		return fmt.Errorf("audit: draw span: %w", err)
	}
	span += 10

	min := max - span
	if min < 0 {
		min = 0
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("audit: generate nonce: %w", err)
	}

	leaves, err := rangeLeaves(ctx, g.store, g.stackID, min, max)
	if err != nil {
		return fmt.Errorf("audit: collect block range hashes: %w", err)
	}

	solution, err := solve(nonce, leaves)
	if err != nil {
		return fmt.Errorf("audit: compute solution: %w", err)
	}

	g.current.Store(&Challenge{
		Min:       min,
		Max:       max,
		Nonce:     nonce,
		Solution:  solution,
		CreatedAt: time.Now(),
	})
	return nil
}

// rangeLeaves returns the decoded block hash of every block between min and
// max inclusive, in id order, one leaf per block.
func rangeLeaves(ctx context.Context, store *block.Store, stackID string, min, max int64) ([][]byte, error) {
	blocks, err := store.Scan(ctx, stackID, block.IDRange{MinID: min, MaxID: max}, nil)
	if err != nil {
		return nil, err
	}
	leaves := make([][]byte, len(blocks))
	for i, b := range blocks {
		decoded, err := hex.DecodeString(b.Hash)
		if err != nil {
			return nil, fmt.Errorf("decode block %d hash: %w", b.ID, err)
		}
		leaves[i] = decoded
	}
	return leaves, nil
}

// solve computes the Merkle root of [nonce, hash(block[min]), …,
// hash(block[max])] using the Merkle Builder, per spec §4.9/§3.
func solve(nonce []byte, rangeLeaves [][]byte) ([]byte, error) {
	leaves := make([][]byte, 0, len(rangeLeaves)+1)
	leaves = append(leaves, nonce)
	leaves = append(leaves, rangeLeaves...)
	tree, err := merkle.Build(leaves, merkle.SHA256)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}
