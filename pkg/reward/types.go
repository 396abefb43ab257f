// Copyright 2025 Certen Protocol
//
// Package reward implements the Reward Engine (C10): consumes `reward`
// bus messages, calls the external token-transfer service for each payout,
// and records the result as a `reward` block. Idempotency is at-most-once:
// the consumer acks unconditionally after attempting both transfers,
// successful or not, to avoid double-pay on redelivery (spec §4.10).
//
// Grounded on the teacher's pkg/ethereum/client.go call shape (context,
// wrapped errors) generalized from a direct ethclient RPC call to the
// plain HTTP token-transfer contract of spec §6.
package reward

// Payout is one side of a reward message (node or core).
type Payout struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// Message is the inbound `reward` bus payload.
type Message struct {
	Node Payout  `json:"node"`
	Core *Payout `json:"core,omitempty"`
}
