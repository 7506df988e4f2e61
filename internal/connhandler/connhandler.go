// Package connhandler drives one TCP connection through its lifecycle:
// IDLE -> READING_HEADERS -> READING_BODY -> DISPATCHING -> WRITING ->
// DECIDING, looping back to IDLE for keep-alive or closing.
package connhandler

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	"github.com/yourusername/originserver/internal/httpproto"
	"github.com/yourusername/originserver/internal/socket"
)

// State names the connection's position in its lifecycle, used only for
// logging; the loop itself does not branch on an explicit state variable,
// it falls out of the call sequence below.
type State string

const (
	StateIdle           State = "IDLE"
	StateReadingHeaders State = "READING_HEADERS"
	StateReadingBody    State = "READING_BODY"
	StateDispatching    State = "DISPATCHING"
	StateWriting        State = "WRITING"
	StateDeciding       State = "DECIDING"
	StateClosed         State = "CLOSED"
)

// Handler processes one admitted Request and returns the Response to
// send. Errors are handled entirely inside the httpproto/admission layer;
// by the time a Handler runs, the request has already framed correctly.
type Handler func(ctx context.Context, req *httpproto.Request) *httpproto.Response

// Hooks lets the caller observe state transitions and framing errors for
// logging/metrics without coupling this package to a concrete logger.
type Hooks struct {
	OnStateChange func(remoteAddr string, state State)
	OnParseError  func(remoteAddr string, err error)
}

// Config bounds one connection's lifetime: a maximum request count and
// an idle read/write timeout.
type Config struct {
	MaxRequests int
	IdleTimeout time.Duration
	Parser      *httpproto.Parser
	Handler     Handler
	Hooks       Hooks
}

// Serve drives conn through the request/response loop until the
// connection closes, either because the peer disconnected, a framing
// error occurred, a handler/response asked to close, or the
// per-connection request limit was reached.
func Serve(ctx context.Context, conn net.Conn, cfg Config) {
	defer conn.Close()
	br := bufio.NewReaderSize(conn, cfg.Parser.MaxHeaderBytes+4096)
	remote := conn.RemoteAddr().String()

	requestCount := 0
	for {
		cfg.setState(remote, StateIdle)

		if cfg.MaxRequests > 0 && requestCount >= cfg.MaxRequests {
			return
		}

		deadline := time.Now().Add(cfg.IdleTimeout)
		_ = conn.SetReadDeadline(deadline)

		cfg.setState(remote, StateReadingHeaders)
		req, err := cfg.Parser.Parse(br, remote)
		if err != nil {
			if err == io.EOF {
				return // clean close between requests, no response owed
			}
			cfg.onParseError(remote, err)
			// Best-effort 400 for any request that began framing: partial
			// input is still worth a diagnostic response.
			writeBadRequest(conn, err)
			return
		}

		requestCount++
		cfg.setState(remote, StateReadingBody) // body, if any, was already consumed by Parse

		cfg.setState(remote, StateDispatching)
		_ = conn.SetWriteDeadline(time.Now().Add(cfg.IdleTimeout))
		resp := cfg.Handler(ctx, req)

		willClose := req.Close || resp.Header.GetDefault("Connection", "") == "close"
		if cfg.MaxRequests > 0 && requestCount >= cfg.MaxRequests {
			willClose = true
		}
		if ctx.Err() != nil {
			willClose = true // server is shutting down; finish this response, then close
		}
		// The response's Connection header must mirror the final decision,
		// even when the handler built the response assuming keep-alive.
		if willClose {
			resp.ForceClose()
		} else if cfg.MaxRequests > 0 {
			resp.SetKeepAliveMax(cfg.MaxRequests)
		}

		cfg.setState(remote, StateWriting)
		if err := httpproto.WriteAll(conn, resp.Serialize()); err != nil {
			if resp.File != nil {
				resp.File.Close()
			}
			return
		}
		if resp.File != nil {
			_, err := socket.SendFile(conn, resp.File, 0, resp.FileSize)
			resp.File.Close()
			if err != nil {
				return
			}
		}

		cfg.setState(remote, StateDeciding)
		if willClose {
			return
		}
	}
}

func (cfg Config) setState(remote string, s State) {
	if cfg.Hooks.OnStateChange != nil {
		cfg.Hooks.OnStateChange(remote, s)
	}
}

func (cfg Config) onParseError(remote string, err error) {
	if cfg.Hooks.OnParseError != nil {
		cfg.Hooks.OnParseError(remote, err)
	}
}

// writeBadRequest sends a minimal 400 response and lets the caller close
// the connection. Used when the parser itself fails, before a Response
// can be built through the normal handler path.
func writeBadRequest(conn net.Conn, cause error) {
	var diagnostic string
	switch cause {
	case httpproto.ErrBodyTooLarge:
		diagnostic = "body too large"
	case httpproto.ErrHeadersTooLarge:
		diagnostic = "header block too large"
	case httpproto.ErrURITooLong:
		diagnostic = "request target too long"
	case httpproto.ErrChunkedUnsupported:
		diagnostic = "unsupported transfer encoding"
	case httpproto.ErrInvalidContentLength:
		diagnostic = "invalid Content-Length"
	default:
		diagnostic = "malformed request"
	}
	body := []byte("Bad Request: " + diagnostic + "\n")
	resp := httpproto.NewResponse(400, "text/plain; charset=utf-8", body, false, time.Now())
	_ = httpproto.WriteAll(conn, resp.Serialize())
}
