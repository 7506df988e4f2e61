package security

import (
	"errors"
	"strings"
)

var (
	// ErrMissingHost covers both an absent Host header and a duplicated
	// one (RFC 7230 §5.4 requires exactly one).
	ErrMissingHost = errors.New("security: request must carry exactly one Host header")

	// ErrHostNotAllowed is returned when Host names something other than
	// the server's own bind address or one of the fixed loopback aliases.
	ErrHostNotAllowed = errors.New("security: Host header does not match this server")
)

// HostValidator checks the Host header against the server's configured
// bind address plus two fixed loopback aliases, "localhost" and
// "127.0.0.1", which are always accepted regardless of the configured
// bind host since a reverse proxy or local client commonly addresses the
// server that way even when it was started bound to a specific interface.
type HostValidator struct {
	bindHost string
	bindPort string
	allowed  map[string]struct{}
}

// NewHostValidator builds a validator for a server listening on
// host:port. host may be empty (meaning "all interfaces"), in which case
// only the loopback aliases and the literal port are accepted.
func NewHostValidator(host, port string) *HostValidator {
	v := &HostValidator{bindHost: host, bindPort: port, allowed: map[string]struct{}{
		"localhost": {},
		"127.0.0.1": {},
	}}
	if host != "" {
		v.allowed[strings.ToLower(host)] = struct{}{}
	}
	return v
}

// Validate checks hostHeaderCount occurrences of the Host header (from
// Header.Count("Host")) and, if exactly one, validates its value: the
// hostname must be an allowed name, and the port, if present, must equal
// the server's listening port (absent port defaults to 80 when the
// server listens on 80, otherwise to the server's port).
func (v *HostValidator) Validate(hostHeaderCount int, hostValue string) error {
	if hostHeaderCount != 1 {
		return ErrMissingHost
	}
	name := hostValue
	port := ""
	if idx := strings.LastIndexByte(hostValue, ':'); idx >= 0 && !strings.Contains(hostValue[idx:], "]") {
		name = hostValue[:idx]
		port = hostValue[idx+1:]
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ErrMissingHost
	}
	if _, ok := v.allowed[name]; !ok {
		return ErrHostNotAllowed
	}

	expectedPort := v.bindPort
	if expectedPort == "" {
		expectedPort = "80"
	}
	if port == "" {
		// No port on the Host header: treat it as 80 when the server
		// listens on 80, otherwise as the server's own port — i.e. an
		// absent port never itself causes a mismatch.
		port = expectedPort
	}
	if port != expectedPort {
		return ErrHostNotAllowed
	}
	return nil
}
