package response

import (
	"bytes"
	"errors"
	"fetchgate/internal/headers"
	"fmt"
	"io"
	"strconv"
)

type StatusCode int

const (
	OK                    StatusCode = 200
	BAD_REQUEST           StatusCode = 400
	INTERNAL_SERVER_ERROR StatusCode = 500
	NOT_IMPLEMENTED       StatusCode = 501
	BAD_GATEWAY           StatusCode = 502
)

// StatusCodeName holds fallback reason phrases for when the caller does not
// provide one.
var StatusCodeName = map[StatusCode]string{
	OK:                    "OK",
	BAD_REQUEST:           "Bad Request",
	INTERNAL_SERVER_ERROR: "Internal Server Error",
	NOT_IMPLEMENTED:       "Not Implemented",
	BAD_GATEWAY:           "Bad Gateway",
}

const httpVersion = "HTTP/1.1"

const textContentType = "text/plain; charset=UTF-8"

// Response is one reply, built once per request and serialized immediately.
type Response struct {
	Status StatusCode
	Reason string
	Body   string
	// ContentLength is advertised only when Body is empty.
	ContentLength int64
}

// GetDefaultHeaders returns the header block for a reply. A non-empty body
// gets a text content type and its UTF-8 byte length; otherwise only the
// explicit length is sent.
func GetDefaultHeaders(body string, contentLen int64) *headers.Headers {
	h := headers.NewHeaders()
	h.Override("access-control-allow-origin", "*")
	if body != "" {
		h.Override("content-type", textContentType)
		h.Override("content-length", strconv.Itoa(len(body)))
		return h
	}
	h.Override("content-length", strconv.FormatInt(contentLen, 10))
	return h
}

// Bytes renders the full message: status line, headers, blank line, body.
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	// Writes into a bytes.Buffer only fail on invalid headers, which the
	// default block never produces.
	_ = w.WriteStatusLine(r.Status, r.Reason)
	_ = w.WriteHeaders(GetDefaultHeaders(r.Body, r.ContentLength))
	_, _ = w.WriteBody([]byte(r.Body))
	return buf.Bytes()
}

// String is Bytes as text.
func (r *Response) String() string {
	return string(r.Bytes())
}

// WriteTo sends the rendered message in a single Write so a reply is never
// split across partial writes from this side.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

type Writer struct {
	writer       io.Writer
	WriterStatus WriterStatus
}

type WriterStatus int

const (
	WritingStatusLine WriterStatus = iota + 1
	WritingHeaders
	WritingBody
)

var WriterStatusName = map[WriterStatus]string{
	WritingStatusLine: "WRITING_STATUS_LINE",
	WritingHeaders:    "WRITING_HEADERS",
	WritingBody:       "WRITING_BODY",
}

var ErrWriterState = errors.New("response writer called out of order")

func NewWriter(conn io.Writer) *Writer {
	return &Writer{writer: conn, WriterStatus: WritingStatusLine}
}

func (w *Writer) WriteStatusLine(statusCode StatusCode, reason string) error {
	if w.WriterStatus != WritingStatusLine {
		return fmt.Errorf("%w: status line while %s", ErrWriterState, WriterStatusName[w.WriterStatus])
	}
	if reason == "" {
		var ok bool
		if reason, ok = StatusCodeName[statusCode]; !ok {
			reason = "Unknown"
		}
	}
	if _, err := fmt.Fprintf(w.writer, "%s %d %s\r\n", httpVersion, int(statusCode), reason); err != nil {
		return err
	}
	w.WriterStatus = WritingHeaders
	return nil
}

func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.WriterStatus != WritingHeaders {
		return fmt.Errorf("%w: headers while %s", ErrWriterState, WriterStatusName[w.WriterStatus])
	}
	if h != nil {
		if err := h.Validate(); err != nil {
			return err
		}
		if err := h.Write(w.writer); err != nil {
			return err
		}
	}

	// Final CRLF to end the header block
	if _, err := io.WriteString(w.writer, "\r\n"); err != nil {
		return err
	}
	w.WriterStatus = WritingBody
	return nil
}

func (w *Writer) WriteBody(p []byte) (int, error) {
	if w.WriterStatus != WritingBody {
		return 0, fmt.Errorf("%w: body while %s", ErrWriterState, WriterStatusName[w.WriterStatus])
	}
	if len(p) == 0 {
		return 0, nil
	}
	return w.writer.Write(p)
}
