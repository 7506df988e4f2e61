//go:build linux
// +build linux

package socket

import (
	"golang.org/x/sys/unix"
)

// applyPlatformOptions applies Linux-specific socket options. Called from
// Apply() in tuning.go; every option here is best-effort.
func applyPlatformOptions(fd int, cfg *Config) {
	// TCP_QUICKACK is not sticky: the kernel clears it after each ACK,
	// so setting it once at accept time is only an initial-latency win.
	if cfg.QuickAck {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	}

	// Unacknowledged data times the connection out after 10s, so zombie
	// peers release their worker quickly.
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, 10000)

	if cfg.KeepAlive {
		// Probe after 60s idle, every 10s, give up after 3 misses.
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
	}
}

// applyListenerOptions applies Linux-specific listener options. Called
// from ApplyListener() in tuning.go before connections are accepted.
func applyListenerOptions(fd int, cfg *Config) error {
	var lastErr error

	// TCP_DEFER_ACCEPT: the accept loop is not woken until request bytes
	// arrive (or the 5s timeout passes), so bare SYNs cost nothing.
	if cfg.DeferAccept {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 5); err != nil {
			lastErr = err
		}
	}

	// TCP_FASTOPEN with a pending-connection queue of 256.
	if cfg.FastOpen {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 256); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
