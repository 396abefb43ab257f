// Copyright 2025 Certen Protocol
//
// Package anchor implements the Anchor Engine (C8): the fixed-cadence path
// that rolls up Block Store contents into a Bitcoin-bound `btc-a` block,
// the confirm path that records the monitored chain's inclusion as a
// `btc-c` block, and the tx pre-processing step that prepares the raw
// Bitcoin transaction binding for the monitor.
//
// Grounded on the teacher's pkg/anchor/scheduler.go for the :00/:30
// wall-clock cadence shape (randomized jitter, tick-driven scan-since-last)
// and pkg/anchor/event_watcher.go for the bus-message-driven confirm loop,
// reshaped around pkg/block, pkg/merkle, pkg/bus, pkg/lock and pkg/leader
// instead of the teacher's on-chain event polling.
package anchor

import "github.com/chainpoint-network/calendar-core/pkg/merkle"

// BTCTxRequest is published to request that a raw Bitcoin transaction be
// built and broadcast carrying anchorBTCAggRoot.
type BTCTxRequest struct {
	AnchorBTCAggID   string `json:"anchor_btc_agg_id"`
	AnchorBTCAggRoot string `json:"anchor_btc_agg_root"`
}

// BTCTxMessage is republished on the btctx subject once the external
// transaction builder has constructed the raw transaction carrying
// anchorBTCAggRoot, asking this engine to pre-process it before broadcast
// (spec §4.8, "Tx path pre-processing").
type BTCTxMessage struct {
	BTCTxID          string `json:"btctx_id"`
	TxBody           string `json:"tx_body"` // hex-encoded raw transaction
	AnchorBTCAggRoot string `json:"anchor_btc_agg_root"`
}

// BTCTxState is the deterministic prefix/suffix binding forwarded after
// pre-processing a raw transaction.
type BTCTxState struct {
	BTCTxID string         `json:"btctx_id"`
	Ops     merkle.Segment `json:"btctx_state_ops"`
}

// BTCMonRequest asks the monitor to watch for a transaction's confirmation.
type BTCMonRequest struct {
	TxID string `json:"tx_id"`
}

// BTCMonMessage is the inbound notification that a previously-broadcast
// anchor transaction has been confirmed in a Bitcoin block.
type BTCMonMessage struct {
	BTCTxID       string `json:"btctx_id"`
	BTCHeadHeight int64  `json:"btchead_height"`
	BTCHeadRoot   string `json:"btchead_root"`
	Path          string `json:"path"` // hex Merkle path from tx to block header root
}
