// Package acceptloop accepts connections from an already-bound listener,
// applies per-connection socket tuning, and hands each connection to the
// worker pool, shedding load with a 503 when the pool is saturated.
package acceptloop

import (
	"context"
	"net"
	"time"

	"github.com/yourusername/originserver/internal/connhandler"
	"github.com/yourusername/originserver/internal/httpproto"
	"github.com/yourusername/originserver/internal/logging"
	"github.com/yourusername/originserver/internal/metrics"
	"github.com/yourusername/originserver/internal/socket"
	"github.com/yourusername/originserver/internal/workerpool"
)

// Config bundles everything the accept loop needs to turn a listener into
// a running server.
type Config struct {
	Listener     net.Listener
	Pool         *workerpool.Pool
	ConnConfig   connhandler.Config
	SocketConfig socket.Config
	Logger       logging.Logger
	Metrics      metrics.Metrics
}

// Run accepts connections until ctx is canceled or the listener errors.
// Each accepted connection is submitted to the pool; if the pool's queue
// is full, the connection is sent a 503 and closed immediately rather
// than left to block the accept loop.
func Run(ctx context.Context, cfg Config) error {
	go func() {
		<-ctx.Done()
		_ = cfg.Listener.Close()
	}()

	for {
		conn, err := cfg.Listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		if err := socket.Apply(conn, &cfg.SocketConfig); err != nil {
			cfg.Logger.Warn("socket_tuning_failed", map[string]any{"error": err.Error()})
		}

		accepted := conn
		submitted := cfg.Pool.TrySubmit(func(jobCtx context.Context) {
			cfg.Metrics.ConnectionOpened()
			defer cfg.Metrics.ConnectionClosed()
			connhandler.Serve(jobCtx, accepted, cfg.ConnConfig)
		})
		cfg.Metrics.WorkerQueueDepth(cfg.Pool.QueueDepth())

		if !submitted {
			cfg.Metrics.RequestRejected("pool_saturated")
			rejectWithServiceUnavailable(accepted)
		}
	}
}

// rejectWithServiceUnavailable writes a 503 and closes conn without ever
// touching the parser or the worker pool; this is the accept-time
// back-pressure path, distinct from the per-request admission checks.
func rejectWithServiceUnavailable(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	const body = "Service Unavailable"
	resp := httpproto.NewResponse(503, "text/plain", []byte(body), false, time.Now())
	resp.Header.Set("Retry-After", "1")
	_ = httpproto.WriteAll(conn, resp.Serialize())
}
