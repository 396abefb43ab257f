// Copyright 2025 Certen Protocol
package calendar

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/chainpoint-network/calendar-core/pkg/bus"
)

// aggregationRoot is the wire shape of an aggregator message (spec §3,
// "Aggregation Root").
type aggregationRoot struct {
	AggID   string `json:"agg_id"`
	AggRoot string `json:"agg_root"`
}

// Intake subscribes to aggregator messages and hands each one to a Writer,
// which holds it un-acked until the cal block that subsumes it is durable.
type Intake struct {
	writer *Writer
}

// NewIntake constructs an Intake over writer.
func NewIntake(writer *Writer) *Intake {
	return &Intake{writer: writer}
}

// Subscribe registers the intake handler on the aggregator subject.
func (i *Intake) Subscribe(b *bus.Bus) (*bus.Subscription, error) {
	return b.Subscribe(bus.TypeAggregator, i.handle)
}

// handle returns bus.ErrDeferred for every root it enqueues: the Writer,
// not this handler, decides when that message is acked or nacked. A message
// that does not decode, lacks an aggId, or carries a non-hex root is
// returned as an error and is not enqueued.
func (i *Intake) handle(ctx context.Context, msg *bus.Message) error {
	var root aggregationRoot
	if err := msg.Decode(&root); err != nil {
		return fmt.Errorf("calendar: decode aggregation root: %w", err)
	}
	if root.AggID == "" {
		return fmt.Errorf("calendar: aggregation root missing aggId")
	}
	raw, err := hex.DecodeString(root.AggRoot)
	if err != nil {
		return fmt.Errorf("calendar: aggRoot is not hex: %w", err)
	}

	i.writer.Enqueue(PendingRoot{AggID: root.AggID, AggRoot: raw, Msg: msg})
	return bus.ErrDeferred
}
