// Package storage provides sentinel errors for the shared connection pool
// and its migrations. The pkg/block and pkg/registry repositories define
// their own entity-specific sentinels.
package storage

import "errors"

var (
	// ErrNotFound is returned when a requested row is not found.
	ErrNotFound = errors.New("storage: entity not found")
)
