package server

import (
	"bytes"
	"context"
	"errors"
	"fetchgate/internal/logger"
	"fetchgate/internal/registry"
	"fetchgate/internal/request"
	"fetchgate/internal/response"
	"fmt"
	"net"
	"time"
)

// helper: format duration compactly
func fmtDur(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

// handle serves exactly one request on c and then disconnects it.
func (s *Server) handle(ctx context.Context, c *registry.Client) {
	defer s.disconnect(c)
	start := time.Now()
	conn := c.Conn()

	remoteHost, _, err := net.SplitHostPort(c.Remote)
	if err != nil {
		remoteHost = c.Remote
	}
	log := logger.With("remote", remoteHost)

	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	req, err := request.RequestFromReader(conn)
	if errors.Is(err, request.ErrEmptyRequest) {
		s.events.Eventf("Zero bytes received from %s", c.Remote)
		return
	}
	if req == nil {
		// A read failing because Stop closed the connection is not news.
		if !c.Closed() {
			s.events.Eventf("Client read error! %s: %v", c.Remote, err)
		}
		return
	}
	s.events.Eventf("%s sent: %s", c.Remote, req.Line)

	resp := s.respond(ctx, req, err)

	method, target := "-", "-"
	if req.RequestLine != nil {
		method, target = req.RequestLine.Method, req.RequestLine.RequestTarget
	}

	if s.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if _, err := resp.WriteTo(conn); err != nil {
		if !c.Closed() {
			s.events.Eventf("Client write error! %s: %v", c.Remote, err)
		}
		log.Warn("request",
			"method", method, "target", target,
			"status", int(resp.Status), "duration", fmtDur(time.Since(start)), "error", err)
		return
	}

	log.Info("request",
		"method", method, "target", target,
		"status", int(resp.Status), "duration", fmtDur(time.Since(start)))
}

// respond builds the reply for a request whose line parsed with parseErr.
func (s *Server) respond(ctx context.Context, req *request.Request, parseErr error) *response.Response {
	if parseErr != nil {
		return &response.Response{Status: response.BAD_REQUEST, Reason: "Invalid request"}
	}

	body := new(bytes.Buffer)
	if herr := s.handler(ctx, body, req); herr != nil {
		return &response.Response{Status: herr.StatusCode, Reason: herr.Reason}
	}
	return &response.Response{Status: response.OK, Reason: "OK", Body: body.String()}
}

// disconnect closes c unless Stop already did, and drops it from the
// registry.
func (s *Server) disconnect(c *registry.Client) {
	closed, err := c.Close()
	if !closed {
		return
	}
	if err != nil {
		logger.Debug("Error closing connection", "remote", c.Remote, "error", err)
	}
	s.clients.Remove(c)
	s.events.Eventf("%s is disconnected", c.Remote)
}
