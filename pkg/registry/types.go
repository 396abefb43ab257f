package registry

import "time"

// Node is one registered auditable participant.
type Node struct {
	TntAddr           string
	PublicURI         string // empty means unset (NULL in storage)
	HMACKey           string // 32-byte hex
	TntCredit         int64
	PassCount         int64
	FailCount         int64
	ConsecutivePasses int
	ConsecutiveFails  int
	AuditScore        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
