// Command server runs a hand-rolled HTTP/1.1 origin server: a bounded
// worker pool, keep-alive connections, and a defensive admission layer
// in front of the dispatcher. Arguments are positional (port, host,
// pool_size) rather than flag-parsed; a three-argument program does not
// need a CLI framework.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourusername/originserver/internal/acceptloop"
	"github.com/yourusername/originserver/internal/admission"
	"github.com/yourusername/originserver/internal/connhandler"
	"github.com/yourusername/originserver/internal/dispatch"
	"github.com/yourusername/originserver/internal/httpproto"
	"github.com/yourusername/originserver/internal/logging"
	"github.com/yourusername/originserver/internal/metrics"
	"github.com/yourusername/originserver/internal/ratelimit"
	"github.com/yourusername/originserver/internal/security"
	"github.com/yourusername/originserver/internal/serverconfig"
	"github.com/yourusername/originserver/internal/socket"
	"github.com/yourusername/originserver/internal/workerpool"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := serverconfig.Default()

	args := os.Args[1:]
	if len(args) >= 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid port:", args[0])
			return 1
		}
		cfg.Port = port
	}
	if len(args) >= 2 {
		cfg.Host = args[1]
	} else {
		cfg.Host = "127.0.0.1"
	}
	if len(args) >= 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid pool_size:", args[2])
			return 1
		}
		cfg.PoolWorkers = n
	} else {
		cfg.PoolWorkers = 10
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := logging.New(os.Stdout)

	if _, err := os.Stat(cfg.DocumentRoot); err != nil {
		logger.Error("startup_failed", err, map[string]any{"document_root": cfg.DocumentRoot})
		return 1
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Error("startup_failed", err, map[string]any{"upload_dir": cfg.UploadDir})
		return 1
	}

	reg := prometheus.NewRegistry()
	mtx := metrics.New(reg)

	limiter := ratelimit.New(ratelimit.Config{
		WindowSize:   cfg.RateWindowSize,
		WindowLimit:  cfg.RateWindowLimit,
		BurstSize:    cfg.RateBurstSize,
		BurstLimit:   cfg.RateBurstLimit,
		BlockFor:     cfg.RateBlockFor,
		CleanupEvery: time.Minute,
		MaxIdle:      10 * time.Minute,
	})
	defer limiter.Stop()

	hostValidator := security.NewHostValidator(cfg.Host, strconv.Itoa(cfg.Port))
	checker := admission.NewChecker(cfg.DocumentRoot, hostValidator, limiter)
	dispatcher := dispatch.New(cfg.DocumentRoot, cfg.UploadDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := workerpool.New(ctx, cfg.PoolWorkers, cfg.PoolQueueSize)

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("startup_failed", err, map[string]any{"addr": addr})
		return 1
	}
	socketCfg := socket.DefaultConfig()
	if err := socket.ApplyListener(listener, socketCfg); err != nil {
		logger.Warn("listener_tuning_failed", map[string]any{"error": err.Error()})
	}

	parser := httpproto.NewParser(cfg.MaxHeaderBytes, cfg.MaxURILength, cfg.MaxBodyBytes)

	handler := buildHandler(checker, dispatcher, logger, mtx, cfg.RateBlockFor)

	connCfg := connhandler.Config{
		MaxRequests: cfg.MaxRequestsPerConn,
		IdleTimeout: cfg.IdleTimeout,
		Parser:      parser,
		Handler:     handler,
		Hooks: connhandler.Hooks{
			OnParseError: func(remoteAddr string, err error) {
				logger.Warn("parse_error", map[string]any{"remote_addr": remoteAddr, "error": err.Error()})
			},
		},
	}

	logger.Info("listening", map[string]any{"addr": addr, "pool_size": cfg.PoolWorkers})

	if cfg.MetricsAddr != "" {
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg)}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics_listener_failed", err, map[string]any{"addr": cfg.MetricsAddr})
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics_listening", map[string]any{"addr": cfg.MetricsAddr})
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- acceptloop.Run(ctx, acceptloop.Config{
			Listener:     listener,
			Pool:         pool,
			ConnConfig:   connCfg,
			SocketConfig: *socketCfg,
			Logger:       logger,
			Metrics:      mtx,
		})
	}()

	select {
	case <-ctx.Done():
	case err := <-loopErr:
		if err != nil {
			logger.Error("accept_loop_failed", err, nil)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool.Shutdown(shutdownCtx)

	logger.Info("shutdown_complete", nil)
	return 0
}

// buildHandler composes the admission checks and the dispatcher into the
// single Handler the connection handler invokes per request. GET
// /healthz is exempt from rate limiting and path resolution, but it
// still must pass Host validation, since that check also guards against
// cache-poisoning probes hitting a response that proves the server is
// alive.
func buildHandler(checker *admission.Checker, dispatcher *dispatch.Dispatcher, logger logging.Logger, mtx metrics.Metrics, rateBlockFor time.Duration) connhandler.Handler {
	return func(ctx context.Context, req *httpproto.Request) *httpproto.Response {
		now := time.Now()
		clientIP := clientIPFromRemoteAddr(req.RemoteAddr)
		requestID := uuid.NewString()

		var resp *httpproto.Response
		switch {
		case req.Method == httpproto.MethodGET && req.Path == "/healthz":
			resp = handleHealthz(checker, req, now)
			if resp.Status == 403 {
				logSecurityViolation(logger, req, clientIP, "host_not_allowed")
			}

		default:
			resolvePath := req.Method == httpproto.MethodGET
			result := checker.Admit(req, clientIP, now, resolvePath)
			switch result.Outcome {
			case admission.BadRequest:
				mtx.RequestRejected(result.Reason)
				resp = httpproto.NewResponse(400, "text/plain; charset=utf-8", []byte("Bad Request: "+result.Reason+"\n"), true, now)
			case admission.Forbidden:
				mtx.RequestRejected(result.Reason)
				logSecurityViolation(logger, req, clientIP, result.Reason)
				// A spoofed Host is grounds to drop the connection outright;
				// rate-limit and traversal rejections keep it open.
				keep := result.Reason != "host_not_allowed"
				resp = httpproto.NewResponse(403, "text/plain; charset=utf-8", []byte("Forbidden: "+result.Reason+"\n"), keep, now)
				if result.Reason == "rate_limited" {
					resp.Header.Set("Retry-After", strconv.Itoa(int(rateBlockFor.Seconds())))
				}
			default:
				resp = dispatcher.Handle(req, result, now)
			}
		}

		respBytes := int64(len(resp.Body))
		if resp.File != nil {
			respBytes = resp.FileSize
		}
		duration := time.Since(now)
		mtx.RequestCompleted(req.Method.String(), resp.Status, duration, respBytes)

		fields := logging.RequestFields(req.RawMethod, req.Path, resp.Status, duration, clientIP)
		fields["request_id"] = requestID
		fields["bytes"] = respBytes
		logger.Info("request_complete", fields)
		return resp
	}
}

func handleHealthz(checker *admission.Checker, req *httpproto.Request, now time.Time) *httpproto.Response {
	hostCount := req.Header.Count("Host")
	hostValue := req.Header.GetDefault("Host", "")
	if err := checker.Host.Validate(hostCount, hostValue); err != nil {
		if err == security.ErrHostNotAllowed {
			return httpproto.NewResponse(403, "text/plain; charset=utf-8", []byte("host validation failed\n"), false, now)
		}
		return httpproto.NewResponse(400, "text/plain; charset=utf-8", []byte("host validation failed\n"), true, now)
	}
	return httpproto.NewResponse(200, "text/plain; charset=utf-8", []byte("ok\n"), true, now)
}

func logSecurityViolation(logger logging.Logger, req *httpproto.Request, clientIP, reason string) {
	logger.Security(reason, map[string]any{
		"client_ip":    clientIP,
		"request_line": req.RawMethod + " " + req.RawTarget,
	})
}

func clientIPFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
