//go:build linux
// +build linux

package socket

import (
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// maxSendfileBytes bounds a single sendfile(2) call; the count argument
// is an int and the kernel clamps large requests anyway.
const maxSendfileBytes = 1 << 30

// SendFile streams count bytes of file starting at offset to conn. On a
// TCP connection the bytes move kernel-side via sendfile(2), with the
// runtime poller parking the goroutine whenever the socket's send buffer
// fills; anything else gets a plain userspace copy. The file's own read
// position is never touched, so a response writer can hold the *os.File
// open across requests.
//
// A sendfile failure before the first byte falls back to the userspace
// copy. After the first byte the error is returned as-is: the response
// headers (and their Content-Length) are already on the wire by the
// time the connection handler calls this, so the only safe recovery is
// for the caller to drop the connection.
func SendFile(conn net.Conn, file *os.File, offset, count int64) (int64, error) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return io.Copy(conn, io.NewSectionReader(file, offset, count))
	}
	raw, err := tcp.SyscallConn()
	if err != nil {
		return io.Copy(conn, io.NewSectionReader(file, offset, count))
	}

	src := int(file.Fd())
	pos := offset
	remaining := count
	var sent int64
	var opErr error

	waitErr := raw.Write(func(dst uintptr) bool {
		for remaining > 0 {
			chunk := remaining
			if chunk > maxSendfileBytes {
				chunk = maxSendfileBytes
			}
			n, e := unix.Sendfile(int(dst), src, &pos, int(chunk))
			if n > 0 {
				sent += int64(n)
				remaining -= int64(n)
			}
			switch e {
			case nil:
				if n == 0 {
					return true // file ended short of count
				}
			case unix.EINTR:
				// retry immediately
			case unix.EAGAIN:
				return false // send buffer full; poller re-invokes when writable
			default:
				opErr = e
				return true
			}
		}
		return true
	})
	if waitErr != nil {
		return sent, waitErr
	}
	if opErr != nil {
		if sent == 0 && (opErr == unix.ENOSYS || opErr == unix.EINVAL) {
			return io.Copy(conn, io.NewSectionReader(file, offset, count))
		}
		return sent, opErr
	}
	return sent, nil
}

// SendFileAll sends an entire file.
func SendFileAll(conn net.Conn, file *os.File) (written int64, err error) {
	stat, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return SendFile(conn, file, 0, stat.Size())
}
