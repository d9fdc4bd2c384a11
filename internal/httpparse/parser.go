// Package httpparse turns a raw HTTP/1.x request buffer into its
// constituent method, host, port, path, version, and headers. It is a
// direct, idiomatic-Go rendering of the reference proxy's
// ParsedRequest contract: same defaults, same error conditions, same
// header case-insensitivity, without carrying over its C string
// handling.
package httpparse

import (
    "errors"
    "strconv"
    "strings"
)

// ErrNoMethod is returned when the request line has no method token
var ErrNoMethod = errors.New("httpparse: missing method")

// ErrNoVersion is returned when the request line has no version token
var ErrNoVersion = errors.New("httpparse: missing version")

// ErrNoHost is returned when neither the request-target nor the Host
// header supplies a host
var ErrNoHost = errors.New("httpparse: missing host")

// ErrNoRequestLine is returned when the buffer has no terminated
// request line at all
var ErrNoRequestLine = errors.New("httpparse: missing request line")

const defaultPort = "80"
const defaultPath = "/"

// Header is one (name, value) pair in the singly-linked header list.
// The list is built by prepending, matching the reference
// implementation's ParsedHeader chain.
type Header struct {
    Name  string
    Value string
    Next  *Header
}

// Request is a parsed HTTP request: method, optional protocol, host,
// port (defaulted to "80"), path (defaulted to "/"), version, and the
// header list. If the request-line target was absolute and carried a
// host, that host wins; otherwise Host/Port are filled from the Host
// header during Parse.
type Request struct {
    Method   string
    Protocol string
    Host     string
    Port     string
    Path     string
    Version  string
    Headers  *Header
}

// Parse parses buf into a Request. buf is expected to already contain
// a full header block terminated by "\r\n\r\n" or "\n\n" — callers
// (the worker's read loop) are responsible for ensuring that before
// calling Parse.
func Parse(buf []byte) (*Request, error) {
    s := string(buf)

    line, rest, ok := cutLine(s)
    if !ok {
        return nil, ErrNoRequestLine
    }

    method, target, version, err := splitRequestLine(line)
    if err != nil {
        return nil, err
    }

    req := &Request{Method: method, Version: version}
    parseTarget(req, target)

    for {
        var headerLine string
        headerLine, rest, ok = cutLine(rest)
        if !ok || headerLine == "" {
            break
        }
        name, value, ok := strings.Cut(headerLine, ":")
        if !ok {
            continue
        }
        req.SetHeader(strings.TrimSpace(name), strings.TrimSpace(value))
    }

    if req.Host == "" {
        hostHeader, ok := req.GetHeader("Host")
        if !ok || hostHeader == "" {
            return nil, ErrNoHost
        }
        host, port, hasPort := strings.Cut(hostHeader, ":")
        req.Host = host
        if hasPort {
            req.Port = port
        } else if req.Port == "" {
            req.Port = defaultPort
        }
    }

    return req, nil
}

// cutLine splits s at the first line terminator, preferring "\r\n"
// and falling back to a bare "\n". ok is false if s has no
// terminator at all.
func cutLine(s string) (line, rest string, ok bool) {
    if i := strings.Index(s, "\r\n"); i >= 0 {
        return s[:i], s[i+2:], true
    }
    if i := strings.Index(s, "\n"); i >= 0 {
        return s[:i], s[i+1:], true
    }
    return "", s, false
}

// splitRequestLine extracts the three whitespace-separated tokens of
// a request line: method, request-target, version.
func splitRequestLine(line string) (method, target, version string, err error) {
    fields := strings.Fields(line)
    if len(fields) < 1 || fields[0] == "" {
        return "", "", "", ErrNoMethod
    }
    method = fields[0]
    if len(fields) < 2 {
        return "", "", "", ErrNoVersion
    }
    target = fields[1]
    if len(fields) < 3 {
        return "", "", "", ErrNoVersion
    }
    version = fields[2]
    return method, target, version, nil
}

// parseTarget fills req.Protocol/Host/Port/Path from the
// request-target. Absolute-form targets ("http://host[:port]/path")
// set all four; origin-form targets ("/path") set only Path, leaving
// Host/Port for the Host header to supply.
func parseTarget(req *Request, target string) {
    const prefix = "http://"
    if !strings.HasPrefix(strings.ToLower(target), prefix) {
        req.Path = target
        if req.Path == "" {
            req.Path = defaultPath
        }
        return
    }

    req.Protocol = "http"
    rest := target[len(prefix):]

    hostPort := rest
    path := defaultPath
    if i := strings.IndexByte(rest, '/'); i >= 0 {
        hostPort = rest[:i]
        path = rest[i:]
    }

    host, port, hasPort := strings.Cut(hostPort, ":")
    req.Host = host
    if hasPort {
        req.Port = port
    } else {
        req.Port = defaultPort
    }
    req.Path = path
}

// GetHeader returns the value of the header with the given
// case-insensitive name, and whether it was found.
func (r *Request) GetHeader(name string) (string, bool) {
    for h := r.Headers; h != nil; h = h.Next {
        if strings.EqualFold(h.Name, name) {
            return h.Value, true
        }
    }
    return "", false
}

// SetHeader sets the value of the header with the given name,
// updating an existing (case-insensitively matched) entry in place or
// prepending a new one.
func (r *Request) SetHeader(name, value string) {
    for h := r.Headers; h != nil; h = h.Next {
        if strings.EqualFold(h.Name, name) {
            h.Value = value
            return
        }
    }
    r.Headers = &Header{Name: name, Value: value, Next: r.Headers}
}

// PortOrDefault returns the numeric upstream port, defaulting to 80
// when Port is empty or unparsable.
func (r *Request) PortOrDefault() int {
    if r.Port == "" {
        return 80
    }
    if n, err := strconv.Atoi(r.Port); err == nil {
        return n
    }
    return 80
}

// WriteHeaders serializes the header list as "Name: Value\r\n" lines
// followed by a trailing "\r\n", failing rather than silently
// truncating if the result would exceed maxLen.
func (r *Request) WriteHeaders(maxLen int) ([]byte, error) {
    var b strings.Builder
    for h := r.Headers; h != nil; h = h.Next {
        b.WriteString(h.Name)
        b.WriteString(": ")
        b.WriteString(h.Value)
        b.WriteString("\r\n")
    }
    b.WriteString("\r\n")

    if b.Len() > maxLen {
        return nil, errors.New("httpparse: serialized headers exceed buffer")
    }
    return []byte(b.String()), nil
}
