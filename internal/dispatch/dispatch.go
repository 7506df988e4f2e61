// Package dispatch implements the request dispatcher: the GET static-file
// handler, the POST /upload JSON handler, and the OPTIONS/405 method
// matrix.
package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/originserver/internal/admission"
	"github.com/yourusername/originserver/internal/httpproto"
	"github.com/yourusername/originserver/internal/logging"
)

// Dispatcher applies method/path semantics once a request has cleared
// admission.
type Dispatcher struct {
	DocumentRoot string
	UploadDir    string
	Logger       logging.Logger
}

// New returns a Dispatcher rooted at documentRoot, writing uploads under
// uploadDir (must be a descendant of documentRoot).
func New(documentRoot, uploadDir string, logger logging.Logger) *Dispatcher {
	return &Dispatcher{DocumentRoot: documentRoot, UploadDir: uploadDir, Logger: logger}
}

var allowHeader = "GET, POST, OPTIONS"

// Handle implements the method matrix. admitted carries the resolved
// filesystem path for GET requests that passed the path resolver; it is
// the zero Result for POST/OPTIONS, which do not resolve a path through
// admission.
func (d *Dispatcher) Handle(req *httpproto.Request, admitted admission.Result, now time.Time) *httpproto.Response {
	switch req.Method {
	case httpproto.MethodGET:
		return d.handleGET(req, admitted, now)
	case httpproto.MethodPOST:
		return d.handlePOST(req, now)
	case httpproto.MethodOPTIONS:
		resp := httpproto.NewResponse(204, "text/plain; charset=utf-8", nil, true, now)
		resp.Header.Set("Allow", allowHeader)
		return resp
	default:
		resp := errorResponse(405, "Method Not Allowed", "method "+req.RawMethod+" is not supported", true, now)
		resp.Header.Set("Allow", allowHeader)
		return resp
	}
}

func (d *Dispatcher) handleGET(req *httpproto.Request, admitted admission.Result, now time.Time) *httpproto.Response {
	realPath := admitted.RealPath
	if req.Path == "/" {
		realPath = filepath.Join(d.DocumentRoot, "index.html")
	}

	ext := strings.ToLower(filepath.Ext(realPath))
	contentType, disposition, ok := contentTypeFor(ext)
	if !ok {
		return errorResponse(415, "Unsupported Media Type", "unrecognized file extension", true, now)
	}

	f, err := os.Open(realPath)
	if err != nil {
		return errorResponse(404, "Not Found", "no such resource", true, now)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return errorResponse(404, "Not Found", "no such resource", true, now)
	}
	if info.Size() > httpproto.MaxFileReadBytes {
		f.Close()
		d.Logger.Warn("file_too_large", map[string]any{"path": realPath, "cap_bytes": httpproto.MaxFileReadBytes})
		return errorResponse(500, "Internal Server Error", "resource exceeds the configured read cap", false, now)
	}

	resp := httpproto.NewFileResponse(200, contentType, f, info.Size(), true, now)
	if disposition == "attachment" {
		resp.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(realPath)))
	}
	return resp
}

func (d *Dispatcher) handlePOST(req *httpproto.Request, now time.Time) *httpproto.Response {
	if req.Path != "/upload" {
		return errorResponse(404, "Not Found", "no such resource", true, now)
	}

	contentType, _ := req.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/json") {
		return errorResponse(415, "Unsupported Media Type", "Content-Type must be application/json", true, now)
	}

	var parsed any
	if err := json.Unmarshal(req.Body, &parsed); err != nil {
		return errorResponse(400, "Bad Request", "malformed JSON body", true, now)
	}
	reencoded, err := json.Marshal(parsed)
	if err != nil {
		return errorResponse(500, "Internal Server Error", "failed re-encoding upload body", false, now)
	}

	name := uploadFilename(now)
	finalPath := filepath.Join(d.UploadDir, name)
	if err := writeAtomic(finalPath, reencoded); err != nil {
		return errorResponse(500, "Internal Server Error", "failed writing upload", false, now)
	}

	body, _ := json.Marshal(map[string]any{
		"status":      "created",
		"filepath":    "/uploads/" + name,
		"size":        len(reencoded),
		"received_at": now.UTC().Format(time.RFC3339),
	})
	return httpproto.NewResponse(201, "application/json; charset=utf-8", body, true, now)
}

// uploadFilename produces upload_<UTC-timestamp>_<8-char-random>.json,
// where the timestamp is YYYYMMDDTHHMMSSZ.
func uploadFilename(now time.Time) string {
	ts := now.UTC().Format("20060102T150405") + "Z"
	return fmt.Sprintf("upload_%s_%s.json", ts, randomSuffix())
}

// randomSuffix derives an 8-character alphanumeric token from a UUIDv4's
// hex digits, since the dashes stripped out still leave a pure
// [0-9a-f]{32} alphabet that is a subset of [A-Za-z0-9].
func randomSuffix() string {
	id := uuid.New()
	hex := strings.ReplaceAll(id.String(), "-", "")
	return hex[:8]
}

// writeAtomic writes via a temp file plus rename so the file named in a
// 201 response is never observed partially written.
func writeAtomic(finalPath string, data []byte) error {
	dir := filepath.Dir(finalPath)
	tmp, err := os.CreateTemp(dir, ".upload-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, finalPath)
}

type contentTypeEntry struct {
	contentType string
	disposition string
}

var contentTypes = map[string]contentTypeEntry{
	".html": {"text/html; charset=utf-8", "inline"},
	".json": {"application/json; charset=utf-8", "inline"},
	".png":  {"application/octet-stream", "attachment"},
	".jpg":  {"application/octet-stream", "attachment"},
	".jpeg": {"application/octet-stream", "attachment"},
	".gif":  {"application/octet-stream", "attachment"},
	".txt":  {"application/octet-stream", "attachment"},
	".pdf":  {"application/pdf", "inline"},
}

func contentTypeFor(ext string) (contentType, disposition string, ok bool) {
	e, ok := contentTypes[ext]
	if !ok {
		return "", "", false
	}
	return e.contentType, e.disposition, true
}

// errorResponse builds the plain-text diagnostic body used for every
// non-2xx response.
func errorResponse(status int, reason, diagnostic string, keepAlive bool, now time.Time) *httpproto.Response {
	body := []byte(reason + ": " + diagnostic + "\n")
	return httpproto.NewResponse(status, "text/plain; charset=utf-8", body, keepAlive, now)
}
