// Copyright 2025 Certen Protocol
package proofstore

import (
	"context"
	"fmt"

	"github.com/chainpoint-network/calendar-core/pkg/bus"
)

// Materializer subscribes to the work.out.state queue and writes each
// proof segment it receives into a Store, turning the durable bus
// artifact spec §4.7/§4.8 require into the read model the HTTP proof
// API serves from.
type Materializer struct {
	store *Store
}

// NewMaterializer constructs a Materializer writing into store.
func NewMaterializer(store *Store) *Materializer {
	return &Materializer{store: store}
}

// Subscribe registers the materializing handler on the state subject.
func (m *Materializer) Subscribe(b *bus.Bus) (*bus.Subscription, error) {
	return b.Subscribe(bus.TypeState, m.handle)
}

func (m *Materializer) handle(ctx context.Context, msg *bus.Message) error {
	var proof Proof
	if err := msg.Decode(&proof); err != nil {
		return fmt.Errorf("proofstore: decode state message: %w", err)
	}
	return m.store.Put(proof)
}
