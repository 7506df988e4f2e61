package httpproto

import (
	"bufio"
	"io"
	"strings"
)

// Parser frames one HTTP/1.1 request at a time from a buffered reader in
// a single pass: request line, then headers, then exactly
// Content-Length bytes of body. Every size ceiling is a field rather than
// a package constant so each server instance can configure its own
// limits. Transfer-Encoding values other than "identity" are rejected
// outright; chunked request bodies are not supported.
type Parser struct {
	MaxHeaderBytes int
	MaxURILength   int
	MaxBodyBytes   int64
}

// NewParser returns a Parser using the given limits, defaulting a zero
// header or URI limit to the package default. maxBodyBytes is used as
// given.
func NewParser(maxHeaderBytes, maxURILength int, maxBodyBytes int64) *Parser {
	p := &Parser{MaxHeaderBytes: maxHeaderBytes, MaxURILength: maxURILength, MaxBodyBytes: maxBodyBytes}
	if p.MaxHeaderBytes <= 0 {
		p.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if p.MaxURILength <= 0 {
		p.MaxURILength = DefaultMaxURILength
	}
	return p
}

// Parse reads and frames exactly one request from br.
//
// Returns io.EOF when no bytes of a new request ever arrived, whether the
// peer closed the connection or the read deadline expired first — in
// both cases the caller should close without responding. Any other error
// means at least one byte of a request arrived before framing failed, and
// is a framing violation the caller maps to a best-effort 400.
func (p *Parser) Parse(br *bufio.Reader, remoteAddr string) (*Request, error) {
	budget := p.MaxHeaderBytes

	requestLine, partial, err := readCRLFLine(br, budget)
	if err != nil {
		// Zero bytes of a new request ever arrived, whether because the
		// peer closed cleanly (io.EOF) or the idle-read deadline fired
		// first: either way there is no partial request to diagnose, so
		// the caller closes silently instead of sending a 400.
		if !partial {
			return nil, io.EOF
		}
		return nil, ErrUnexpectedEOF
	}
	budget -= len(requestLine) + 2

	req := &Request{Header: NewHeader()}
	if err := parseRequestLine(req, requestLine, p.MaxURILength); err != nil {
		return nil, err
	}

	hasContentLength := false
	hasTransferEncoding := false
	var contentLengthValue int64 = -1

	for {
		if budget < 0 {
			return nil, ErrHeadersTooLarge
		}
		line, partial, err := readCRLFLine(br, budget)
		if err != nil {
			return nil, ErrUnexpectedEOF
		}
		budget -= len(line) + 2
		if partial {
			return nil, ErrHeadersTooLarge
		}
		if line == "" {
			break // blank line terminates the header block
		}
		if line[0] == ' ' || line[0] == '\t' {
			return nil, ErrInvalidHeader // obsolete line folding, rejected
		}

		name, value, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		req.Header.Add(name, value)

		switch {
		case strings.EqualFold(name, "Content-Length"):
			// Only the single separator space after the colon is allowed;
			// any other whitespace around the digits is rejected.
			if strings.TrimPrefix(line[len(name)+1:], " ") != value {
				return nil, ErrInvalidContentLength
			}
			n, err := parseNonNegativeInt(value)
			if err != nil {
				return nil, ErrInvalidContentLength
			}
			if hasContentLength && contentLengthValue != n {
				return nil, ErrSmuggling
			}
			hasContentLength = true
			contentLengthValue = n

		case strings.EqualFold(name, "Transfer-Encoding"):
			hasTransferEncoding = true
			if !strings.EqualFold(strings.TrimSpace(value), "identity") {
				return nil, ErrChunkedUnsupported
			}
		}
	}

	if hasContentLength && hasTransferEncoding {
		return nil, ErrSmuggling
	}

	switch {
	case hasContentLength:
		if contentLengthValue > p.MaxBodyBytes {
			return nil, ErrBodyTooLarge
		}
		body := make([]byte, contentLengthValue)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, ErrUnexpectedEOF
		}
		req.Body = body
		req.ContentLength = contentLengthValue
	case req.Method == MethodPOST:
		req.ContentLength = 0
	default:
		req.ContentLength = -1
	}

	req.RemoteAddr = remoteAddr
	req.Close = computeClose(req)
	return req, nil
}

// readCRLFLine reads one line terminated by "\r\n" from br, stripping the
// terminator. budget bounds the line length (the header-block ceiling);
// exceeding it reports partial=true without consuming unbounded input:
// an over-long line is abandoned as soon as a full reader buffer has
// carried it past the budget.
func readCRLFLine(br *bufio.Reader, budget int) (line string, partial bool, err error) {
	var buf []byte
	for {
		frag, err := br.ReadSlice('\n')
		buf = append(buf, frag...)
		if err == bufio.ErrBufferFull {
			if len(buf) > budget+2 {
				return "", true, nil
			}
			continue
		}
		if err != nil {
			if len(buf) == 0 {
				return "", false, err
			}
			return "", true, io.ErrUnexpectedEOF
		}
		break
	}
	raw := string(buf)
	if len(raw) > budget+2 {
		return "", true, nil
	}
	if len(raw) < 2 || raw[len(raw)-2] != '\r' {
		return "", true, nil // bare LF: not CRLF-terminated, treat as a framing violation
	}
	return raw[:len(raw)-2], false, nil
}

// parseRequestLine parses "METHOD SP Request-URI SP HTTP-Version": exactly
// three tokens separated by single spaces.
func parseRequestLine(req *Request, line string, maxURILength int) error {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return ErrInvalidRequestLine
	}
	methodTok, target, version := parts[0], parts[1], parts[2]

	if !isAllAlpha(methodTok) {
		return ErrInvalidMethod
	}
	req.RawMethod = methodTok
	req.Method = ParseMethod(methodTok)

	if len(target) == 0 {
		return ErrInvalidPath
	}
	if len(target) > maxURILength {
		return ErrURITooLong
	}
	req.RawTarget = target
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		req.Path = target[:idx]
		req.Query = target[idx+1:]
	} else {
		req.Path = target
	}

	major, minor, err := parseHTTPVersion(version)
	if err != nil {
		return err
	}
	req.ProtoMajor, req.ProtoMinor = major, minor
	return nil
}

func parseHTTPVersion(v string) (major, minor int, err error) {
	if !strings.HasPrefix(v, "HTTP/") || len(v) != len("HTTP/1.1") {
		return 0, 0, ErrInvalidProtocol
	}
	v = v[len("HTTP/"):]
	if v[1] != '.' {
		return 0, 0, ErrInvalidProtocol
	}
	maj, minDigit := v[0], v[2]
	if maj < '0' || maj > '9' || minDigit < '0' || minDigit > '9' {
		return 0, 0, ErrInvalidProtocol
	}
	major = int(maj - '0')
	minor = int(minDigit - '0')
	if major != 1 || (minor != 0 && minor != 1) {
		return 0, 0, ErrInvalidProtocol
	}
	return major, minor, nil
}

// parseHeaderLine splits "Name: Value", rejecting whitespace between the
// name and the colon (a well-known request-smuggling vector).
func parseHeaderLine(line string) (name, value string, err error) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", ErrInvalidHeader
	}
	name = line[:colon]
	if name[len(name)-1] == ' ' || name[len(name)-1] == '\t' {
		return "", "", ErrInvalidHeader
	}
	if !isValidToken(name) {
		return "", "", ErrInvalidHeader
	}
	value = strings.Trim(line[colon+1:], " \t")
	return name, value, nil
}

func isValidToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}

func isAllAlpha(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}

// parseNonNegativeInt enforces the Content-Length grammar: decimal digits
// only, no sign, no leading zeros beyond a single "0", no spaces.
func parseNonNegativeInt(s string) (int64, error) {
	if len(s) == 0 {
		return 0, ErrInvalidContentLength
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, ErrInvalidContentLength
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, ErrInvalidContentLength
		}
		n = n*10 + int64(c-'0')
		if n < 0 {
			return 0, ErrInvalidContentLength
		}
	}
	return n, nil
}

// computeClose implements the keep-alive determination: HTTP/1.1 defaults
// to keep-alive unless Connection mentions "close"; HTTP/1.0 defaults to
// close unless Connection mentions "keep-alive".
func computeClose(req *Request) bool {
	conn, _ := req.Header.Get("Connection")
	tokens := strings.Split(strings.ToLower(conn), ",")
	has := func(tok string) bool {
		for _, t := range tokens {
			if strings.TrimSpace(t) == tok {
				return true
			}
		}
		return false
	}
	if req.HTTP10() {
		return !has("keep-alive")
	}
	return has("close")
}
