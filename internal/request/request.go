package request

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Request holds what we read from one connection: the decoded text and, when
// it is well formed, the parsed request line. Headers and body are never
// interpreted.
type Request struct {
	RequestLine *RequestLine
	// Line is the first line of the request, without its terminator.
	Line string
	// Raw is the full decoded request text.
	Raw string
}

// RequestLine represents the three components of a request line:
//
//	<method> <request-target> <HTTP-version>
//
// The line is split on single spaces into at most three fields, so any extra
// words end up in HTTPVersion.
type RequestLine struct {
	HTTPVersion   string
	RequestTarget string
	Method        string
}

var (
	ErrMalformedRequestLine = errors.New("malformed request-line")
	ErrEmptyRequest         = errors.New("zero bytes received")

	separator = "\r\n"
)

// MaxRequestSize bounds the single receive performed per connection.
const MaxRequestSize = 64 * 1024 // 64 KiB

// RequestFromReader performs exactly one Read of up to MaxRequestSize bytes
// and parses the result. A peer that closes without sending yields
// ErrEmptyRequest; read failures are returned as is. A malformed request line
// returns the partially filled Request together with ErrMalformedRequestLine.
func RequestFromReader(r io.Reader) (*Request, error) {
	buf := make([]byte, MaxRequestSize)

	n, err := r.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrEmptyRequest
		}
		return nil, err
	}

	// Data plus an error is still data; the error will resurface on the
	// next operation on the connection, if any.
	return Parse(buf[:n])
}

// Parse decodes data as UTF-8 and parses its first line. The returned
// Request is never nil.
func Parse(data []byte) (*Request, error) {
	raw := decode(data)
	line, _, _ := strings.Cut(raw, separator)

	req := &Request{Line: line, Raw: raw}

	rl, err := ParseRequestLine(line)
	if err != nil {
		return req, err
	}
	req.RequestLine = rl
	return req, nil
}

// ParseRequestLine splits line on single spaces into at most three fields.
// Anything other than exactly three fields is malformed.
func ParseRequestLine(line string) (*RequestLine, error) {
	tokens := strings.SplitN(line, " ", 3)
	if len(tokens) != 3 {
		return nil, ErrMalformedRequestLine
	}

	return &RequestLine{
		Method:        tokens[0],
		RequestTarget: tokens[1],
		HTTPVersion:   tokens[2],
	}, nil
}

// decode replaces ill-formed UTF-8 with U+FFFD.
func decode(data []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}
