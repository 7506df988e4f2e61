// Package httpproto implements a hand-rolled HTTP/1.1 request parser and
// response writer. No part of the server touches net/http; every byte
// between the socket and the handler passes through this package.
package httpproto

import "time"

// Method identifies the HTTP request method.
type Method uint8

// Methods the server recognizes at the parser level. Anything else parses
// fine but is rejected by the dispatcher with 405.
const (
	MethodOther Method = iota
	MethodGET
	MethodPOST
	MethodOPTIONS
)

var methodStrings = [...]string{
	MethodOther:   "",
	MethodGET:     "GET",
	MethodPOST:    "POST",
	MethodOPTIONS: "OPTIONS",
}

// String returns the wire representation of m, or "" for MethodOther (the
// caller should use the Request's RawMethod for that case).
func (m Method) String() string {
	if int(m) < len(methodStrings) {
		return methodStrings[m]
	}
	return ""
}

// ParseMethod maps a request-line method token to a Method. Any token made
// only of ASCII letters is accepted at this layer (framing concern); the
// dispatcher is what rejects methods outside GET/POST/OPTIONS with 405.
func ParseMethod(tok string) Method {
	switch tok {
	case "GET":
		return MethodGET
	case "POST":
		return MethodPOST
	case "OPTIONS":
		return MethodOPTIONS
	}
	return MethodOther
}

// Status reason phrases used by the response writer.
var statusText = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	415: "Unsupported Media Type",
	500: "Internal Server Error",
	503: "Service Unavailable",
}

// StatusText returns the reason phrase for code, or "Unknown" if unmapped.
func StatusText(code int) string {
	if t, ok := statusText[code]; ok {
		return t
	}
	return "Unknown"
}

// Size limits. The header and URI limits are defaults; a Parser's fields
// override them per server configuration, and NewParser falls back to
// them when given zero.
const (
	// DefaultMaxHeaderBytes bounds the header block (request line + headers)
	// before the terminating CRLFCRLF.
	DefaultMaxHeaderBytes = 8192

	// DefaultMaxURILength bounds the request-target length.
	DefaultMaxURILength = 8192

	// WriteChunkSize is the fixed chunk size used by the "chunked send"
	// loop in the response writer — NOT Transfer-Encoding: chunked.
	// Content-Length is always set; this only governs how many bytes go
	// into each underlying Write call.
	WriteChunkSize = 8192

	// MaxFileReadBytes is the hard cap on a single static file GET. A file
	// larger than this fails the request with 500 rather than silently
	// truncating the body while still advertising the truncated length.
	MaxFileReadBytes = 10 << 20 // 10 MiB

	// KeepAliveTimeoutSeconds is advertised in the Keep-Alive response
	// header.
	KeepAliveTimeoutSeconds = 30

	// DefaultKeepAliveMax is the per-connection request budget advertised
	// in the Keep-Alive header when the builder isn't told otherwise; the
	// connection handler overwrites it with its configured budget.
	DefaultKeepAliveMax = 100
)

// ServerName is sent in every response's Server header.
const ServerName = "originserver/1.0"

// DateLayout is RFC 1123 in UTC, the required format for the Date header.
const DateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatDate renders t (assumed UTC) per DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
