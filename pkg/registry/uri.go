package registry

import (
	"net"
	"net/url"
)

// ValidateURI enforces spec §4.11's publicUri shape: absolute HTTP(S), a
// bare IP host (no DNS names), not private, not loopback, not 0.0.0.0.
func ValidateURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURI
	}
	if !u.IsAbs() {
		return ErrInvalidURI
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURI
	}
	host := u.Hostname()
	if host == "" {
		return ErrInvalidURI
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ErrInvalidURI
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return ErrInvalidURI
	}
	return nil
}
