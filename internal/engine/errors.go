package engine

import (
	"fmt"
	"io"
	"time"
)

// errorBody pairs a status line's reason phrase with its HTML body,
// matching the reference proxy's sendErrorMessage switch exactly.
var errorBody = map[int]struct {
	reason string
	html   string
}{
	400: {"Bad Request", "<HTML><HEAD><TITLE>400 Bad Request</TITLE></HEAD>\n<BODY><H1>400 Bad Request</H1>\n</BODY></HTML>"},
	403: {"Forbidden", "<HTML><HEAD><TITLE>403 Forbidden</TITLE></HEAD>\n<BODY><H1>403 Forbidden</H1><br>Permission Denied\n</BODY></HTML>"},
	404: {"Not Found", "<HTML><HEAD><TITLE>404 Not Found</TITLE></HEAD>\n<BODY><H1>404 Not Found</H1>\n</BODY></HTML>"},
	500: {"Internal Server Error", "<HTML><HEAD><TITLE>500 Internal Server Error</TITLE></HEAD>\n<BODY><H1>500 Internal Server Error</H1>\n</BODY></HTML>"},
	501: {"Not Implemented", "<HTML><HEAD><TITLE>501 Not Implemented</TITLE></HEAD>\n<BODY><H1>501 Not Implemented</H1>\n</BODY></HTML>"},
	503: {"Service Unavailable", "<HTML><HEAD><TITLE>503 Service Unavailable</TITLE></HEAD>\n<BODY><H1>503 Service Unavailable</H1>\n</BODY></HTML>"},
	505: {"HTTP Version Not Supported", "<HTML><HEAD><TITLE>505 HTTP Version Not Supported</TITLE></HEAD>\n<BODY><H1>505 HTTP Version Not Supported</H1>\n</BODY></HTML>"},
}

// writeErrorMessage writes a complete HTTP error response for the
// given status code to w. The header set mirrors sendErrorMessage
// exactly: Content-Length, Content-Type, Connection, an RFC1123 GMT
// Date, and a Server banner, so a client sees no difference from the
// reference proxy's wire format. It reports an error for any status
// code outside the table, same as sendErrorMessage returning -1.
func writeErrorMessage(w io.Writer, statusCode int) error {
	body, ok := errorBody[statusCode]
	if !ok {
		return fmt.Errorf("engine: no error body registered for status %d", statusCode)
	}

	date := time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
	_, err := fmt.Fprintf(w,
		"HTTP/1.1 %d %s\r\n"+
			"Content-Length: %d\r\n"+
			"Content-Type: text/html\r\n"+
			"Connection: keep-alive\r\n"+
			"Date: %s\r\n"+
			"Server: HighPerformanceProxy/2.0\r\n"+
			"\r\n%s",
		statusCode, body.reason, len(body.html), date, body.html,
	)
	return err
}
