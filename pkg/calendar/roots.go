// Copyright 2025 Certen Protocol
package calendar

import "github.com/chainpoint-network/calendar-core/pkg/bus"

// PendingRoot is an aggregation root dequeued from the bus but not yet
// durable in a calendar block. The Writer exclusively owns it (and the
// underlying bus message) until the cal block that subsumes it commits
// (spec §3, "Aggregation Root").
type PendingRoot struct {
	AggID   string
	AggRoot []byte
	Msg     *bus.Message
}
