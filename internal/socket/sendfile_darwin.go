//go:build darwin
// +build darwin

package socket

import (
	"io"
	"net"
	"os"
)

// SendFile falls back to io.Copy on Darwin; the kqueue-based sendfile(2)
// variant has a different signature than Linux's and isn't worth the
// extra syscall surface for this server's file sizes.
func SendFile(conn net.Conn, file *os.File, offset int64, count int64) (written int64, err error) {
	return io.Copy(conn, io.NewSectionReader(file, offset, count))
}

// SendFileAll sends an entire file.
func SendFileAll(conn net.Conn, file *os.File) (written int64, err error) {
	stat, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return SendFile(conn, file, 0, stat.Size())
}
