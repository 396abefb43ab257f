package registry

import "github.com/chainpoint-network/calendar-core/pkg/corerr"

var (
	// ErrNotFound is returned when no Node matches the requested tntAddr.
	ErrNotFound = corerr.New(corerr.NotFound, "registry: node not found")
	// ErrDuplicate is returned when tntAddr or publicUri already exists.
	ErrDuplicate = corerr.New(corerr.Conflict, "registry: duplicate tntAddr or publicUri")
	// ErrCapReached is returned when the registration cap has been hit.
	ErrCapReached = corerr.New(corerr.CapacityExceeded, "registry: registration cap reached")
	// ErrInsufficientBalance is returned when the on-chain balance is below
	// the configured threshold.
	ErrInsufficientBalance = corerr.New(corerr.AuthFailure, "registry: balance below threshold")
	// ErrVersionTooLow is returned when the caller's node version is below
	// the configured minimum.
	ErrVersionTooLow = corerr.New(corerr.VersionTooLow, "registry: version too low")
	// ErrAuthFailure is returned when HMAC verification fails all three
	// accepted minute offsets.
	ErrAuthFailure = corerr.New(corerr.AuthFailure, "registry: hmac verification failed")
	// ErrInvalidURI is returned when publicUri fails validation.
	ErrInvalidURI = corerr.New(corerr.Validation, "registry: invalid public uri")
)
