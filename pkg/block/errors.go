package block

import "errors"

var (
	// ErrNotFound is returned when byId finds no row for the given id.
	ErrNotFound = errors.New("block: not found")
	// ErrIDExists is returned by Append when the target id already exists.
	ErrIDExists = errors.New("block: id already exists")
	// ErrChainBroken reports a prevHash that does not match the store's
	// current tip hash. Append derives prevHash from the tip it reads inside
	// its own transaction and does not return this error.
	ErrChainBroken = errors.New("block: prevHash does not match current tip")
	// ErrEmptyStore is returned by Tip when no blocks have been appended yet.
	ErrEmptyStore = errors.New("block: store is empty")
)
