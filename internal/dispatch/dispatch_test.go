package dispatch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourusername/originserver/internal/admission"
	"github.com/yourusername/originserver/internal/httpproto"
	"github.com/yourusername/originserver/internal/logging"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	root := t.TempDir()
	uploadDir := filepath.Join(root, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>hi</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	return New(root, uploadDir, logging.New(nil)), root
}

func newGET(path string) *httpproto.Request {
	return &httpproto.Request{Method: httpproto.MethodGET, Path: path, Header: httpproto.NewHeader()}
}

func TestHandleGETIndex(t *testing.T) {
	d, root := newTestDispatcher(t)
	req := newGET("/")
	resp := d.Handle(req, admission.Result{RealPath: filepath.Join(root, "index.html")}, time.Now())
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if ct, _ := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.File == nil {
		t.Fatal("expected a file-backed response")
	}
	defer resp.File.Close()
	if resp.FileSize != int64(len("<html>hi</html>")) {
		t.Errorf("size=%d, want %d", resp.FileSize, len("<html>hi</html>"))
	}
	if cl, _ := resp.Header.Get("Content-Length"); cl != "15" {
		t.Errorf("Content-Length = %q, want 15", cl)
	}
}

func TestHandleGETAttachmentDisposition(t *testing.T) {
	d, root := newTestDispatcher(t)
	p := filepath.Join(root, "logo.png")
	if err := os.WriteFile(p, []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatal(err)
	}
	req := newGET("/logo.png")
	resp := d.Handle(req, admission.Result{RealPath: p}, time.Now())
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	defer resp.File.Close()
	if ct, _ := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd, _ := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="logo.png"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestHandleGETNotFound(t *testing.T) {
	d, root := newTestDispatcher(t)
	req := newGET("/missing.html")
	resp := d.Handle(req, admission.Result{RealPath: filepath.Join(root, "missing.html")}, time.Now())
	if resp.Status != 404 {
		t.Fatalf("status = %d, want 404", resp.Status)
	}
}

func TestHandleGETUnknownExtension(t *testing.T) {
	d, root := newTestDispatcher(t)
	p := filepath.Join(root, "weird.xyz")
	if err := os.WriteFile(p, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := newGET("/weird.xyz")
	resp := d.Handle(req, admission.Result{RealPath: p}, time.Now())
	if resp.Status != 415 {
		t.Fatalf("status = %d, want 415", resp.Status)
	}
}

func TestHandlePOSTUploadSuccess(t *testing.T) {
	d, root := newTestDispatcher(t)
	req := &httpproto.Request{Method: httpproto.MethodPOST, Path: "/upload", Header: httpproto.NewHeader(), Body: []byte(`{"hello":"world"}`)}
	req.Header.Add("Content-Type", "application/json")

	resp := d.Handle(req, admission.Result{}, time.Now())
	if resp.Status != 201 {
		t.Fatalf("status = %d, want 201; body=%s", resp.Status, resp.Body)
	}

	var parsed map[string]any
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		t.Fatalf("response body not valid JSON: %v", err)
	}
	fp, _ := parsed["filepath"].(string)
	if fp == "" {
		t.Fatal("response missing filepath")
	}
	name := filepath.Base(fp)
	data, err := os.ReadFile(filepath.Join(root, "uploads", name))
	if err != nil {
		t.Fatalf("uploaded file not found: %v", err)
	}
	if string(data) != `{"hello":"world"}` {
		t.Errorf("uploaded content = %q", data)
	}
}

func TestHandlePOSTUploadWrongMediaType(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := &httpproto.Request{Method: httpproto.MethodPOST, Path: "/upload", Header: httpproto.NewHeader(), Body: []byte("hello")}
	req.Header.Add("Content-Type", "text/plain")

	resp := d.Handle(req, admission.Result{}, time.Now())
	if resp.Status != 415 {
		t.Fatalf("status = %d, want 415", resp.Status)
	}
}

func TestHandlePOSTUploadMalformedJSON(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := &httpproto.Request{Method: httpproto.MethodPOST, Path: "/upload", Header: httpproto.NewHeader(), Body: []byte("{not json")}
	req.Header.Add("Content-Type", "application/json")

	resp := d.Handle(req, admission.Result{}, time.Now())
	if resp.Status != 400 {
		t.Fatalf("status = %d, want 400", resp.Status)
	}
}

func TestHandlePOSTToOtherPathNotFound(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := &httpproto.Request{Method: httpproto.MethodPOST, Path: "/other", Header: httpproto.NewHeader()}
	resp := d.Handle(req, admission.Result{}, time.Now())
	if resp.Status != 404 {
		t.Fatalf("status = %d, want 404", resp.Status)
	}
}

func TestHandleOPTIONS(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := &httpproto.Request{Method: httpproto.MethodOPTIONS, Path: "*", Header: httpproto.NewHeader()}
	resp := d.Handle(req, admission.Result{}, time.Now())
	if resp.Status != 204 {
		t.Fatalf("status = %d, want 204", resp.Status)
	}
	if allow, _ := resp.Header.Get("Allow"); allow != "GET, POST, OPTIONS" {
		t.Errorf("Allow = %q", allow)
	}
}

func TestHandleUnsupportedMethod(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := &httpproto.Request{Method: httpproto.MethodOther, RawMethod: "PUT", Path: "/", Header: httpproto.NewHeader()}
	resp := d.Handle(req, admission.Result{}, time.Now())
	if resp.Status != 405 {
		t.Fatalf("status = %d, want 405", resp.Status)
	}
	if allow, _ := resp.Header.Get("Allow"); allow != "GET, POST, OPTIONS" {
		t.Errorf("Allow = %q", allow)
	}
}
