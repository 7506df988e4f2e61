//go:build !linux && !darwin
// +build !linux,!darwin

package socket

import (
	"io"
	"net"
	"os"
)

// SendFile falls back to io.Copy on platforms without sendfile(2) support.
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
