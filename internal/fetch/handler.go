// Package fetch turns "GET /fetch?<url>" requests into downloads.
package fetch

import (
	"context"
	"io"
	"net/url"
	"strings"

	"fetchgate/internal/logger"
	"fetchgate/internal/request"
	"fetchgate/internal/response"
	"fetchgate/internal/server"
)

// Prefix marks a fetch request target. The remainder is the percent-encoded
// upstream URL.
const Prefix = "/fetch?"

// FailureStatus is reported when the download failed without an upstream
// status to relay.
const FailureStatus = response.BAD_GATEWAY

const failureReason = "Something went wrong"

// Handler returns the server.Handler that dispatches fetch requests to
// Downloaders made by newDownloader.
func Handler(newDownloader Factory) server.Handler {
	return func(ctx context.Context, w io.Writer, req *request.Request) *server.HandlerError {
		rl := req.RequestLine

		if rl.Method != "GET" {
			return &server.HandlerError{StatusCode: response.NOT_IMPLEMENTED, Reason: "Not implemented"}
		}

		rest, ok := strings.CutPrefix(rl.RequestTarget, Prefix)
		if !ok {
			return &server.HandlerError{StatusCode: response.BAD_REQUEST, Reason: "Bad request"}
		}
		target := unescape(rest)

		status, body, err := download(ctx, newDownloader, target)
		if err != nil {
			logger.Warn("Download failed", "url", target, "status", status, "error", err)
			if status == int(response.OK) {
				status = 0
			}
		}
		if status != int(response.OK) {
			if status < 100 || status > 999 {
				status = int(FailureStatus)
			}
			return &server.HandlerError{StatusCode: response.StatusCode(status), Reason: failureReason}
		}

		if _, err := io.WriteString(w, body); err != nil {
			return &server.HandlerError{StatusCode: response.INTERNAL_SERVER_ERROR, Reason: failureReason}
		}
		return nil
	}
}

// unescape is url.QueryUnescape that keeps malformed escapes ("%zz", a
// trailing "%") as literal text instead of rejecting the target.
func unescape(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && ishex(s[i+1]) && ishex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func ishex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c <= 'F':
		return c - 'A' + 10
	}
	return c - 'a' + 10
}

func download(ctx context.Context, newDownloader Factory, target string) (int, string, error) {
	d := newDownloader()
	defer func() {
		if err := d.Close(); err != nil {
			logger.Debug("Error releasing downloader", "error", err)
		}
	}()
	return d.Download(ctx, target)
}
