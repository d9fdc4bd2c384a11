package httpparse

import "testing"

func TestParseAbsoluteFormTarget(t *testing.T) {
	raw := "GET http://example.com:8080/path HTTP/1.1\r\nHost: example.com\r\nUser-Agent: test\r\n\r\n"

	req, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("method = %q, want GET", req.Method)
	}
	if req.Host != "example.com" {
		t.Errorf("host = %q, want example.com", req.Host)
	}
	if req.Port != "8080" {
		t.Errorf("port = %q, want 8080", req.Port)
	}
	if req.Path != "/path" {
		t.Errorf("path = %q, want /path", req.Path)
	}
	if req.Version != "HTTP/1.1" {
		t.Errorf("version = %q, want HTTP/1.1", req.Version)
	}
	if ua, ok := req.GetHeader("user-agent"); !ok || ua != "test" {
		t.Errorf("expected case-insensitive User-Agent lookup to return %q, got %q (ok=%v)", "test", ua, ok)
	}
}

func TestParseOriginFormFallsBackToHostHeader(t *testing.T) {
	raw := "GET /path HTTP/1.1\r\nHost: example.com:9090\r\n\r\n"

	req, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Host != "example.com" {
		t.Errorf("host = %q, want example.com", req.Host)
	}
	if req.Port != "9090" {
		t.Errorf("port = %q, want 9090", req.Port)
	}
	if req.Path != "/path" {
		t.Errorf("path = %q, want /path", req.Path)
	}
}

func TestParseDefaultsPortAndPath(t *testing.T) {
	raw := "GET http://example.com HTTP/1.1\r\nHost: example.com\r\n\r\n"

	req, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Port != "80" {
		t.Errorf("port = %q, want default 80", req.Port)
	}
	if req.Path != "/" {
		t.Errorf("path = %q, want default /", req.Path)
	}
}

func TestParseMissingHostIsAnError(t *testing.T) {
	raw := "GET /no-host HTTP/1.1\r\n\r\n"

	if _, err := Parse([]byte(raw)); err != ErrNoHost {
		t.Fatalf("expected ErrNoHost, got %v", err)
	}
}

func TestParseMissingVersionIsAnError(t *testing.T) {
	raw := "GET /path\r\nHost: example.com\r\n\r\n"

	if _, err := Parse([]byte(raw)); err != ErrNoVersion {
		t.Fatalf("expected ErrNoVersion, got %v", err)
	}
}

func TestParseNoRequestLine(t *testing.T) {
	if _, err := Parse([]byte("not a request")); err != ErrNoRequestLine {
		t.Fatalf("expected ErrNoRequestLine, got %v", err)
	}
}

func TestSetHeaderOverwritesCaseInsensitively(t *testing.T) {
	req := &Request{}
	req.SetHeader("Host", "a.example.com")
	req.SetHeader("HOST", "b.example.com")

	v, ok := req.GetHeader("host")
	if !ok || v != "b.example.com" {
		t.Fatalf("expected most recently set value, got %q (ok=%v)", v, ok)
	}

	count := 0
	for h := req.Headers; h != nil; h = h.Next {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one header node after overwrite, got %d", count)
	}
}

func TestParseRoundTripsThroughWriteHeaders(t *testing.T) {
	raw := "GET http://example.com/path HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"

	req, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	serialized, err := req.WriteHeaders(4096)
	if err != nil {
		t.Fatalf("unexpected error serializing headers: %v", err)
	}

	reRaw := "GET " + req.Path + " " + req.Version + "\r\n" + string(serialized)
	req2, err := Parse([]byte(reRaw))
	if err != nil {
		t.Fatalf("unexpected error re-parsing serialized request: %v", err)
	}

	if req2.Host != req.Host || req2.Path != req.Path || req2.Version != req.Version {
		t.Fatalf("round-trip mismatch: got %+v, want host=%q path=%q version=%q", req2, req.Host, req.Path, req.Version)
	}
	if v, ok := req2.GetHeader("Accept"); !ok || v != "*/*" {
		t.Fatalf("expected Accept header to survive round-trip, got %q (ok=%v)", v, ok)
	}
}

func TestWriteHeadersFailsOnTruncation(t *testing.T) {
	req := &Request{}
	req.SetHeader("X-Long-Header", "this value is long enough to exceed a tiny buffer")

	if _, err := req.WriteHeaders(8); err == nil {
		t.Fatal("expected WriteHeaders to fail rather than silently truncate")
	}
}
