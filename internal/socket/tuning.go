// Package socket provides cross-platform socket tuning and zero-copy file
// transmission for HTTP workloads. Platform-specific option codes live in
// tuning_linux.go/tuning_darwin.go/tuning_other.go; sendfile(2) wiring
// lives in the sendfile_*.go files alongside them.
package socket

import (
	"net"
	"syscall"
)

// Config holds the socket options applied to each accepted connection and
// to the listening socket itself. Zero values mean "use system defaults".
type Config struct {
	NoDelay     bool // TCP_NODELAY
	RecvBuffer  int  // SO_RCVBUF, bytes; 0 leaves the system default
	SendBuffer  int  // SO_SNDBUF, bytes; 0 leaves the system default
	QuickAck    bool // TCP_QUICKACK (Linux only)
	DeferAccept bool // TCP_DEFER_ACCEPT (Linux only)
	FastOpen    bool // TCP_FASTOPEN
	KeepAlive   bool // SO_KEEPALIVE
}

// DefaultConfig returns the tuning applied to every connection unless a
// caller overrides it: Nagle disabled, 256KB buffers, keepalive on.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  256 * 1024,
		SendBuffer:  256 * 1024,
		QuickAck:    true,
		DeferAccept: true,
		FastOpen:    true,
		KeepAlive:   true,
	}
}

// Apply tunes an accepted connection. TCP_NODELAY failing is reported;
// every other option is best-effort. Non-TCP connections pass through
// untouched. Call immediately after accept.
func Apply(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var lastErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if err := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
				lastErr = err
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
		}
		applyPlatformOptions(int(fd), cfg)
	})
	if err != nil {
		return err
	}
	return lastErr
}

// ApplyListener tunes the listening socket. Options like
// TCP_DEFER_ACCEPT and TCP_FASTOPEN must be set on the listener before
// connections are accepted.
func ApplyListener(listener net.Listener, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}

	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()

	return applyListenerOptions(int(file.Fd()), cfg)
}
