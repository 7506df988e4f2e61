//go:build darwin
// +build darwin

package socket

import (
	"golang.org/x/sys/unix"
)

// applyPlatformOptions applies Darwin-specific socket options. Called
// from Apply() in tuning.go; every option here is best-effort.
func applyPlatformOptions(fd int, cfg *Config) {
	// SO_NOSIGPIPE: writes to a closed socket return EPIPE instead of
	// raising SIGPIPE.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)

	if cfg.KeepAlive {
		// TCP_KEEPALIVE is Darwin's TCP_KEEPIDLE: probe after 60s idle.
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, 60)
	}
}

// applyListenerOptions applies Darwin-specific listener options. Darwin
// has no TCP_DEFER_ACCEPT equivalent, so only Fast Open is wired.
func applyListenerOptions(fd int, cfg *Config) error {
	if !cfg.FastOpen {
		return nil
	}
	// Value is the pending TFO connection limit for a listening socket.
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 256)
}
