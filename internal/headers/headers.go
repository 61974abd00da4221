package headers

import (
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"
)

// Headers is an ordered, case-insensitive header block. Names are stored
// lowercase and written back in canonical form, in insertion order.
type Headers struct {
	keys   []string
	values map[string]string
}

var (
	ErrMalformedHeaderName  = errors.New("malformed header name")
	ErrMalformedHeaderValue = errors.New("malformed header value")
)

// Per-line cap on what we are willing to emit.
const maxHeaderLine = 8 * 1024 // 8 KiB

func NewHeaders() *Headers {
	return &Headers{values: map[string]string{}}
}

// Set appends to an existing value (comma separated) or adds the header at
// the end of the block.
func (h *Headers) Set(name, value string) {
	name = strings.ToLower(name)

	if old, ok := h.values[name]; ok {
		h.values[name] = old + "," + value
		return
	}
	h.keys = append(h.keys, name)
	h.values[name] = value
}

// Override replaces the value but keeps the header's position.
func (h *Headers) Override(name, value string) {
	name = strings.ToLower(name)
	if _, ok := h.values[name]; !ok {
		h.keys = append(h.keys, name)
	}
	h.values[name] = value
}

func (h *Headers) Len() int { return len(h.keys) }

// Validate rejects names that are not RFC 9110 tokens and values that would
// break the framing (CR, LF) or exceed the per-line cap.
func (h *Headers) Validate() error {
	for _, k := range h.keys {
		if !isTokenTable([]byte(k)) {
			return fmt.Errorf("%w: %q", ErrMalformedHeaderName, k)
		}
		v := h.values[k]
		if strings.ContainsAny(v, "\r\n") || len(k)+len(v)+2 > maxHeaderLine {
			return fmt.Errorf("%w: %s", ErrMalformedHeaderValue, k)
		}
	}
	return nil
}

// Write emits "Name: value\r\n" for each header. The blank line closing the
// block is left to the caller.
func (h *Headers) Write(w io.Writer) error {
	for _, k := range h.keys {
		display := textproto.CanonicalMIMEHeaderKey(k)
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", display, h.values[k]); err != nil {
			return err
		}
	}
	return nil
}

var allowed [256]bool

func init() {
	for c := byte('0'); c <= '9'; c++ {
		allowed[c] = true
	}
	for c := byte('A'); c <= 'Z'; c++ {
		allowed[c] = true
	}
	for c := byte('a'); c <= 'z'; c++ {
		allowed[c] = true
	}
	for _, c := range []byte("!#$%&'*+-.^_`|~") {
		allowed[c] = true
	}
}

func isTokenTable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c > 127 || !allowed[c] {
			return false
		}
	}
	return true
}
