// Package admission runs every request through an ordered set of checks
// before it ever reaches the dispatcher: size limits (already enforced by
// httpproto.Parser by the time a Request exists), Host validation, rate
// limiting, and path resolution. Each check maps to a well-typed Outcome
// rather than an HTTP status directly, so the caller decides how to
// render it.
package admission

import (
	"time"

	"github.com/yourusername/originserver/internal/httpproto"
	"github.com/yourusername/originserver/internal/ratelimit"
	"github.com/yourusername/originserver/internal/security"
)

// Outcome tags why a request was or was not admitted.
type Outcome int

const (
	OK Outcome = iota
	BadRequest // missing/duplicate Host header
	Forbidden  // Host mismatch, rate-limited, or path traversal
)

// Result is the outcome of running a Request through admission.
type Result struct {
	Outcome  Outcome
	Reason   string // short machine-stable reason, for logging
	RealPath string // set on OK, when the request carries a path to resolve
}

// Checker bundles the admission-layer dependencies for one server
// instance.
type Checker struct {
	DocumentRoot string
	Host         *security.HostValidator
	RateLimiter  *ratelimit.Limiter
}

// NewChecker builds a Checker.
func NewChecker(documentRoot string, host *security.HostValidator, limiter *ratelimit.Limiter) *Checker {
	return &Checker{DocumentRoot: documentRoot, Host: host, RateLimiter: limiter}
}

// Admit runs the Host, rate-limit, and path-resolution checks in that
// order. resolvePath controls whether the path resolver runs at all:
// requests that name no file to serve (the server passes false for every
// non-GET method) skip path resolution but still pass the Host and
// rate-limit checks.
func (c *Checker) Admit(req *httpproto.Request, clientIP string, now time.Time, resolvePath bool) Result {
	hostCount := req.Header.Count("Host")
	hostValue := req.Header.GetDefault("Host", "")
	if err := c.Host.Validate(hostCount, hostValue); err != nil {
		if err == security.ErrMissingHost {
			return Result{Outcome: BadRequest, Reason: "missing_or_duplicate_host"}
		}
		return Result{Outcome: Forbidden, Reason: "host_not_allowed"}
	}

	if c.RateLimiter != nil && !c.RateLimiter.Allow(clientIP, now) {
		return Result{Outcome: Forbidden, Reason: "rate_limited"}
	}

	if !resolvePath {
		return Result{Outcome: OK}
	}

	real, err := security.ResolvePath(c.DocumentRoot, req.Path)
	if err != nil {
		return Result{Outcome: Forbidden, Reason: "path_traversal"}
	}
	return Result{Outcome: OK, RealPath: real}
}
