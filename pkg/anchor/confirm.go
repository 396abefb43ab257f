package anchor

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/chainpoint-network/calendar-core/pkg/block"
	"github.com/chainpoint-network/calendar-core/pkg/bus"
	"github.com/chainpoint-network/calendar-core/pkg/leader"
	"github.com/chainpoint-network/calendar-core/pkg/lock"
	"github.com/chainpoint-network/calendar-core/pkg/merkle"
	"github.com/chainpoint-network/calendar-core/pkg/metrics"
	"github.com/chainpoint-network/calendar-core/pkg/proofstore"
)

// Confirmer consumes btcmon bus messages and records the monitored chain's
// inclusion of a previously-submitted anchor transaction as a `btc-c` block.
// Only the elected leader records confirmations, since the block it appends
// must land at a single, globally agreed id, and the append itself is
// additionally serialized under the Calendar lock's "btc-confirm" tag
// alongside the Anchor path's "btc-anchor" tag (spec §4.8: "Two paths, both
// serialized by the Calendar lock").
type Confirmer struct {
	elector *leader.Elector
	lockSvc *lock.Service
	store   *block.Store
	bus     *bus.Bus
	stackID string
}

// NewConfirmer constructs a Confirmer for stackID.
func NewConfirmer(elector *leader.Elector, lockSvc *lock.Service, store *block.Store, b *bus.Bus, stackID string) *Confirmer {
	return &Confirmer{elector: elector, lockSvc: lockSvc, store: store, bus: b, stackID: stackID}
}

// Subscribe registers the confirm handler on the btcmon subject. The
// returned subscription's Unsubscribe stops delivery.
func (c *Confirmer) Subscribe() (*bus.Subscription, error) {
	return c.bus.Subscribe(bus.TypeBTCMon, c.handle)
}

// handle processes one btcmon message. It nacks (for redelivery) rather
// than acks on any failure prior to the `btc-c` block landing durably, so
// a crash mid-confirm never drops the confirmation.
func (c *Confirmer) handle(ctx context.Context, msg *bus.Message) error {
	if !c.elector.IsLeader() {
		return fmt.Errorf("anchor: confirm requires leadership, not currently leader")
	}

	var mon BTCMonMessage
	if err := msg.Decode(&mon); err != nil {
		return fmt.Errorf("anchor: decode btcmon message: %w", err)
	}

	lease, err := c.lockSvc.Acquire(ctx, lock.CalendarLockKey, "btc-confirm")
	if err != nil {
		return fmt.Errorf("anchor: acquire lock for confirm: %w", err)
	}
	defer lease.Release(ctx)

	confirmBlock, err := c.store.Append(ctx, block.NewBlock{
		StackID: c.stackID,
		Type:    block.TypeBTCConfirm,
		DataID:  strconv.FormatInt(mon.BTCHeadHeight, 10),
		DataVal: mon.BTCHeadRoot,
	})
	if err != nil {
		return fmt.Errorf("anchor: append btc-c block: %w", err)
	}

	segment, err := confirmSegment(mon)
	if err != nil {
		return fmt.Errorf("anchor: build confirm segment: %w", err)
	}

	proof := proofstore.Proof{
		Key:       fmt.Sprintf("btctx:%s", mon.BTCTxID),
		Ops:       segment,
		AnchorURI: fmt.Sprintf("/calendar/%d/data", confirmBlock.ID),
	}
	if err := c.bus.Publish(ctx, bus.TypeState, proof); err != nil {
		return fmt.Errorf("anchor: publish confirm proof: %w", err)
	}

	metrics.AnchorsConfirmed.Inc()
	return nil
}

// confirmSegment turns the monitor's reported tx-to-block-header path into
// a proof segment using the double-SHA-256 Bitcoin merkle operator, since
// the path it describes is over Bitcoin's own merkle tree rather than the
// calendar's single-hash one.
func confirmSegment(mon BTCMonMessage) (merkle.Segment, error) {
	if mon.Path == "" {
		return merkle.Segment{}, nil
	}
	if _, err := hex.DecodeString(mon.Path); err != nil {
		return nil, fmt.Errorf("path is not hex-encoded: %w", err)
	}
	return merkle.Segment{
		{R: mon.Path},
		{Op: string(merkle.SHA256x2)},
	}, nil
}
