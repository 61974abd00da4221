package response

import (
	"bytes"
	"errors"
	"testing"

	"fetchgate/internal/headers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseWithBody(t *testing.T) {
	r := &Response{Status: OK, Reason: "OK", Body: "hello"}
	assert.Equal(t,
		"HTTP/1.1 200 OK\r\n"+
			"Access-Control-Allow-Origin: *\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"Content-Length: 5\r\n"+
			"\r\n"+
			"hello",
		r.String())
}

func TestResponseContentLengthCountsBytes(t *testing.T) {
	// 6 runes, 12 bytes in UTF-8
	body := "привет"
	r := &Response{Status: OK, Reason: "OK", Body: body}
	var buf bytes.Buffer
	require.NoError(t, GetDefaultHeaders(body, 0).Write(&buf))
	assert.Contains(t, buf.String(), "Content-Length: 12\r\n")
	assert.Contains(t, r.String(), "Content-Length: 12\r\n\r\n"+body)
}

func TestResponseWithoutBody(t *testing.T) {
	r := &Response{Status: NOT_IMPLEMENTED, Reason: "Not implemented"}
	assert.Equal(t,
		"HTTP/1.1 501 Not implemented\r\n"+
			"Access-Control-Allow-Origin: *\r\n"+
			"Content-Length: 0\r\n"+
			"\r\n",
		r.String())

	// Explicit length is advertised when there is no body.
	r = &Response{Status: OK, Reason: "OK", ContentLength: 42}
	assert.Equal(t,
		"HTTP/1.1 200 OK\r\n"+
			"Access-Control-Allow-Origin: *\r\n"+
			"Content-Length: 42\r\n"+
			"\r\n",
		r.String())
}

func TestResponseFallbackReason(t *testing.T) {
	r := &Response{Status: BAD_GATEWAY}
	assert.Contains(t, r.String(), "HTTP/1.1 502 Bad Gateway\r\n")

	r = &Response{Status: StatusCode(299)}
	assert.Contains(t, r.String(), "HTTP/1.1 299 Unknown\r\n")
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("broken pipe")
}

func TestResponseWriteToSingleWrite(t *testing.T) {
	var buf bytes.Buffer
	r := &Response{Status: BAD_REQUEST, Reason: "Bad request"}
	n, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	fw := &failingWriter{}
	_, err = r.WriteTo(fw)
	require.Error(t, err)
	assert.Equal(t, 1, fw.writes)
}

func TestWriterOrdering(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	_, err := w.WriteBody([]byte("early"))
	require.ErrorIs(t, err, ErrWriterState)
	require.ErrorIs(t, w.WriteHeaders(nil), ErrWriterState)

	require.NoError(t, w.WriteStatusLine(OK, ""))
	require.ErrorIs(t, w.WriteStatusLine(OK, ""), ErrWriterState)
	require.NoError(t, w.WriteHeaders(nil))
	_, err = w.WriteBody([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\nx", buf.String())
}

func TestWriterRejectsInvalidHeaders(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteStatusLine(OK, "OK"))

	h := headers.NewHeaders()
	h.Set("X-Bad", "a\r\nb")
	require.ErrorIs(t, w.WriteHeaders(h), headers.ErrMalformedHeaderValue)
	assert.Equal(t, WritingHeaders, w.WriterStatus)
}
