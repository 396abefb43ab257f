// Copyright 2025 Certen Protocol
//
// Package proofstore holds the most recently published proof segment for
// each key the Calendar Writer and Anchor Engine produce one for (an
// aggregation root, a cal block's position in an anchor tree, a BTC
// confirmation), servable by the HTTP API at each proof's AnchorURI.
// Producers only publish proofs to the work.out.state queue; entries land
// here when Materializer consumes those messages, independently of when
// the producer acks its own triggering message.
package proofstore

import (
	"fmt"
	"sync"

	"github.com/chainpoint-network/calendar-core/pkg/merkle"
)

// Proof is an ordered operation sequence plus the URI it is served from.
// It doubles as the wire shape published to the bus's work.out.state
// queue (spec §6) and consumed back by Materializer.
type Proof struct {
	Key       string         `json:"key"`
	Ops       merkle.Segment `json:"ops"`
	AnchorURI string         `json:"anchor_uri"`
}

// Store is a thread-safe in-memory keyed cache of Proof.
type Store struct {
	mu  sync.RWMutex
	byK map[string]Proof
}

// New constructs an empty Store.
func New() *Store {
	return &Store{byK: make(map[string]Proof)}
}

// Put stores proof, overwriting any prior proof under the same key.
func (s *Store) Put(proof Proof) error {
	if proof.Key == "" {
		return fmt.Errorf("proofstore: proof must carry a key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byK[proof.Key] = proof
	return nil
}

// Get retrieves the proof stored under key, if any.
func (s *Store) Get(key string) (Proof, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byK[key]
	return p, ok
}
