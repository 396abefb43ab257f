package anchor

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/chainpoint-network/calendar-core/pkg/bus"
	"github.com/chainpoint-network/calendar-core/pkg/merkle"
)

// TxPreprocessor consumes btctx bus messages, locates the aggregation root
// embedded in the raw transaction body, and forwards the prefix/suffix
// binding the monitor needs to confirm the transaction's inclusion later
// (spec §4.8, "Tx path pre-processing").
type TxPreprocessor struct {
	bus *bus.Bus
}

// NewTxPreprocessor constructs a TxPreprocessor.
func NewTxPreprocessor(b *bus.Bus) *TxPreprocessor {
	return &TxPreprocessor{bus: b}
}

// Subscribe registers the pre-processing handler on the btctx subject.
func (p *TxPreprocessor) Subscribe() (*bus.Subscription, error) {
	return p.bus.Subscribe(bus.TypeBTCTx, p.handle)
}

func (p *TxPreprocessor) handle(ctx context.Context, msg *bus.Message) error {
	var tx BTCTxMessage
	if err := msg.Decode(&tx); err != nil {
		return fmt.Errorf("anchor: decode btctx message: %w", err)
	}

	// The engine's own anchor-request publish (step 7 of the Anchor path)
	// lands on this same subject and carries no tx body yet; there is
	// nothing to pre-process until the external builder republishes with
	// one, so skip rather than fail.
	if tx.TxBody == "" {
		return nil
	}

	body, err := hex.DecodeString(tx.TxBody)
	if err != nil {
		return fmt.Errorf("anchor: tx body is not hex-encoded: %w", err)
	}

	root, err := hex.DecodeString(tx.AnchorBTCAggRoot)
	if err != nil {
		return fmt.Errorf("anchor: agg root is not hex-encoded: %w", err)
	}

	prefix, suffix, err := splitAroundRoot(body, root)
	if err != nil {
		return fmt.Errorf("anchor: locate agg root in tx body: %w", err)
	}

	state := BTCTxState{
		BTCTxID: tx.BTCTxID,
		Ops: merkle.Segment{
			{L: hex.EncodeToString(prefix)},
			{R: hex.EncodeToString(suffix)},
			{Op: string(merkle.SHA256x2)},
		},
	}

	if err := p.bus.Publish(ctx, bus.TypeState, state); err != nil {
		return fmt.Errorf("anchor: publish btctx state: %w", err)
	}
	if err := p.bus.Publish(ctx, bus.TypeBTCMonRequest, BTCMonRequest{TxID: tx.BTCTxID}); err != nil {
		return fmt.Errorf("anchor: publish btcmon request: %w", err)
	}
	return nil
}

// splitAroundRoot finds root's single occurrence in body and returns the
// bytes immediately before and after it, the deterministic prefix/suffix a
// later sha-256-x2(prefix || root || suffix) replay needs to reproduce the
// transaction's double-hashed txid.
func splitAroundRoot(body, root []byte) (prefix, suffix []byte, err error) {
	idx := bytes.Index(body, root)
	if idx < 0 {
		return nil, nil, fmt.Errorf("agg root not found in tx body")
	}
	if bytes.Index(body[idx+1:], root) >= 0 {
		return nil, nil, fmt.Errorf("agg root occurs more than once in tx body")
	}
	prefix = append([]byte(nil), body[:idx]...)
	suffix = append([]byte(nil), body[idx+len(root):]...)
	return prefix, suffix, nil
}
