package acceptloop

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourusername/originserver/internal/connhandler"
	"github.com/yourusername/originserver/internal/httpproto"
	"github.com/yourusername/originserver/internal/logging"
	"github.com/yourusername/originserver/internal/metrics"
	"github.com/yourusername/originserver/internal/socket"
	"github.com/yourusername/originserver/internal/workerpool"
)

func TestRunServesOneRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := workerpool.New(ctx, 1, 4)
	reg := prometheus.NewRegistry()
	cfg := Config{
		Listener: ln,
		Pool:     pool,
		ConnConfig: connhandler.Config{
			MaxRequests: 100,
			IdleTimeout: 2 * time.Second,
			Parser:      httpproto.NewParser(8192, 8192, 1<<20),
			Handler: func(ctx context.Context, req *httpproto.Request) *httpproto.Response {
				return httpproto.NewResponse(200, "text/plain; charset=utf-8", []byte("ok"), false, time.Now())
			},
		},
		SocketConfig: *socket.DefaultConfig(),
		Logger:       logging.New(nil),
		Metrics:      metrics.New(reg),
	}

	go Run(ctx, cfg)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: a\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	status, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if status != "HTTP/1.1 200 OK\r\n" {
		t.Errorf("status line = %q", status)
	}
}

// TestRunShedsWithServiceUnavailableWhenPoolSaturated exercises
// accept-time backpressure: a pool with no free worker and no queue
// capacity must reject the next connection with 503 rather than block
// the accept loop.
func TestRunShedsWithServiceUnavailableWhenPoolSaturated(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	defer close(block)

	pool := workerpool.New(ctx, 1, 0)
	reg := prometheus.NewRegistry()
	cfg := Config{
		Listener: ln,
		Pool:     pool,
		ConnConfig: connhandler.Config{
			MaxRequests: 100,
			IdleTimeout: 2 * time.Second,
			Parser:      httpproto.NewParser(8192, 8192, 1<<20),
			Handler: func(ctx context.Context, req *httpproto.Request) *httpproto.Response {
				<-block
				return httpproto.NewResponse(200, "text/plain; charset=utf-8", []byte("ok"), false, time.Now())
			},
		},
		SocketConfig: *socket.DefaultConfig(),
		Logger:       logging.New(nil),
		Metrics:      metrics.New(reg),
	}

	go Run(ctx, cfg)
	// With no queue capacity a handoff succeeds only once the sole worker
	// is already waiting for a job; give it time to get there.
	time.Sleep(50 * time.Millisecond)

	busy, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	if _, err := busy.Write([]byte("GET / HTTP/1.1\r\nHost: a\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond) // let the accept loop hand the connection to the sole worker

	shed, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer shed.Close()

	br := bufio.NewReader(shed)
	status, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if status != "HTTP/1.1 503 Service Unavailable\r\n" {
		t.Errorf("status line = %q, want 503", status)
	}

	var gotContentType, gotRetryAfter string
	for {
		line, err := br.ReadString('\n')
		if err != nil || line == "\r\n" {
			break
		}
		switch {
		case strings.HasPrefix(line, "Content-Type:"):
			gotContentType = strings.TrimSpace(strings.TrimPrefix(line, "Content-Type:"))
		case strings.HasPrefix(line, "Retry-After:"):
			gotRetryAfter = strings.TrimSpace(strings.TrimPrefix(line, "Retry-After:"))
		}
	}
	if gotContentType != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", gotContentType)
	}
	if gotRetryAfter != "1" {
		t.Errorf("Retry-After = %q, want 1", gotRetryAfter)
	}
	body, _ := io.ReadAll(br)
	if string(body) != "Service Unavailable" {
		t.Errorf("body = %q, want %q", body, "Service Unavailable")
	}
}
