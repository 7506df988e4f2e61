package httpproto

import (
	"io"
	"os"
	"strconv"
	"time"
)

// Response is a well-formed HTTP/1.1 response: Content-Length always
// matches the bytes actually sent, and Content-Type/Date/Server/Connection
// are always present. A response carries its body one of two ways: as
// in-memory Body bytes, or, when File is non-nil, as FileSize bytes
// streamed from File straight to the connection (see connhandler, which
// sendfiles it past Serialize's buffer). The two are mutually exclusive;
// Serialize only ever writes Body, so a file-backed Response serializes
// to header bytes alone.
type Response struct {
	Status int
	Reason string
	Header Header
	Body   []byte

	File     *os.File
	FileSize int64
}

// NewResponse builds a Response with its mandatory headers already
// populated. Callers add/override headers afterward; the Content-Length
// set here is derived from len(body) so it can never drift from the
// actual bytes written.
func NewResponse(status int, contentType string, body []byte, keepAlive bool, now time.Time) *Response {
	r := &Response{
		Status: status,
		Reason: StatusText(status),
		Header: NewHeader(),
		Body:   body,
	}
	r.Header.Set("Date", FormatDate(now))
	r.Header.Set("Server", ServerName)
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	setConnectionHeaders(&r.Header, keepAlive)
	return r
}

// NewFileResponse builds a Response whose body is size bytes of file,
// sent by the connection handler via sendfile(2) instead of being
// buffered into Body. The caller transfers ownership of file; the
// connection handler closes it once the body has been sent.
func NewFileResponse(status int, contentType string, file *os.File, size int64, keepAlive bool, now time.Time) *Response {
	r := &Response{
		Status:   status,
		Reason:   StatusText(status),
		Header:   NewHeader(),
		File:     file,
		FileSize: size,
	}
	r.Header.Set("Date", FormatDate(now))
	r.Header.Set("Server", ServerName)
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("Content-Length", strconv.FormatInt(size, 10))
	setConnectionHeaders(&r.Header, keepAlive)
	return r
}

func setConnectionHeaders(h *Header, keepAlive bool) {
	if keepAlive {
		h.Set("Connection", "keep-alive")
		h.Set("Keep-Alive", "timeout="+strconv.Itoa(KeepAliveTimeoutSeconds)+", max="+strconv.Itoa(DefaultKeepAliveMax))
	} else {
		h.Set("Connection", "close")
	}
}

// SetKeepAliveMax rewrites the Keep-Alive header's advertised max, which
// the connection handler sets to its configured per-connection request
// budget. No-op on a Connection: close response.
func (r *Response) SetKeepAliveMax(max int) {
	if v, ok := r.Header.Get("Connection"); !ok || v != "keep-alive" {
		return
	}
	r.Header.Set("Keep-Alive", "timeout="+strconv.Itoa(KeepAliveTimeoutSeconds)+", max="+strconv.Itoa(max))
}

// ForceClose rewrites the connection headers to announce that the server
// will close after this response, regardless of how the handler built it.
func (r *Response) ForceClose() {
	r.Header.Set("Connection", "close")
	r.Header.Del("Keep-Alive")
}

// Serialize renders the status line, headers (in wire order), the blank
// line, and the body into a single buffer.
func (r *Response) Serialize() []byte {
	buf := make([]byte, 0, 256+len(r.Body))
	buf = append(buf, "HTTP/1.1 "...)
	buf = append(buf, strconv.Itoa(r.Status)...)
	buf = append(buf, ' ')
	buf = append(buf, r.Reason...)
	buf = append(buf, '\r', '\n')
	for _, f := range r.Header.Fields() {
		buf = append(buf, f.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, f.Value...)
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, '\r', '\n')
	buf = append(buf, r.Body...)
	return buf
}

// WriteAll transmits data to w in fixed WriteChunkSize slices, retrying a
// short write until the chunk is fully sent or the writer errors. This is
// a transmission strategy only, distinct from Transfer-Encoding: chunked;
// Content-Length is always set beforehand by Serialize/NewResponse.
func WriteAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > WriteChunkSize {
			n = WriteChunkSize
		}
		chunk := data[:n]
		for len(chunk) > 0 {
			written, err := w.Write(chunk)
			if err != nil {
				return err
			}
			chunk = chunk[written:]
		}
		data = data[n:]
	}
	return nil
}
