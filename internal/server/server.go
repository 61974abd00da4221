package server

import (
	"context"
	"errors"
	"fetchgate/internal/eventlog"
	"fetchgate/internal/logger"
	"fetchgate/internal/registry"
	"fetchgate/internal/request"
	"fetchgate/internal/response"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

var StateName = map[State]string{
	Stopped:  "stopped",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
}

func (s State) String() string {
	if name, ok := StateName[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var ErrAlreadyRunning = errors.New("server already running")

// HandlerError turns into a bodyless response with this status and reason.
type HandlerError struct {
	StatusCode response.StatusCode
	Reason     string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%d %s", int(e.StatusCode), e.Reason)
}

// Handler serves one parsed request. Whatever it writes to w becomes the body
// of a 200 OK reply; a non-nil HandlerError replaces that reply.
type Handler func(ctx context.Context, w io.Writer, req *request.Request) *HandlerError

// Config tunes the listener. Zero values mean "no limit".
type Config struct {
	// MaxConnections caps simultaneously open connections.
	MaxConnections int
	// AcceptRate is the number of accepts allowed per second.
	AcceptRate  float64
	AcceptBurst int
	// ReadTimeout bounds the wait for the request bytes.
	ReadTimeout time.Duration
	// WriteTimeout bounds sending the reply.
	WriteTimeout time.Duration
}

// Server owns one listening socket at a time. It can be started, stopped and
// started again.
type Server struct {
	handler Handler
	events  *eventlog.Log
	clients *registry.Registry
	config  Config

	// listenFn binds the listener; tests swap it.
	listenFn func(network, address string) (net.Listener, error)

	mu    sync.Mutex
	state State
	run   *run
}

// run is the state of one Start..Stop cycle.
type run struct {
	listener net.Listener
	port     int
	ctx      context.Context
	cancel   context.CancelFunc
	limiter  *rate.Limiter
	stopping atomic.Bool
	done     chan struct{} // accept loop exited
	stopped  chan struct{} // Stop finished
	err      error
}

func New(handler Handler, events *eventlog.Log, config Config) *Server {
	if handler == nil {
		handler = notImplemented
	}
	return &Server{
		handler:  handler,
		events:   events,
		clients:  registry.New(),
		config:   config,
		listenFn: net.Listen,
	}
}

func notImplemented(context.Context, io.Writer, *request.Request) *HandlerError {
	return &HandlerError{StatusCode: response.NOT_IMPLEMENTED, Reason: "Not implemented"}
}

// Start binds 0.0.0.0:port and starts accepting in the background. Port 0
// picks a free port; see Addr.
func (s *Server) Start(port uint16) error {
	s.mu.Lock()
	if s.state != Stopped {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = Starting

	l, err := s.listenFn("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		s.state = Stopped
		s.mu.Unlock()
		s.events.Eventf("Server start failed! %v", err)
		return fmt.Errorf("listen on port %d: %w", port, err)
	}

	r := &run{
		listener: l,
		port:     int(port),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		r.port = addr.Port
	}
	if s.config.MaxConnections > 0 {
		r.listener = netutil.LimitListener(l, s.config.MaxConnections)
	}
	if s.config.AcceptRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(s.config.AcceptRate), max(s.config.AcceptBurst, 1))
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	s.run = r
	s.state = Running
	s.mu.Unlock()

	s.events.Eventf("Server started on port %d", r.port)
	go s.listen(r)
	return nil
}

// Stop closes the listener, waits for the accept loop to exit and forcibly
// disconnects every open client. On a stopped server it only disconnects
// clients left over from a run that ended on an accept error.
func (s *Server) Stop() {
	s.mu.Lock()
	r := s.run
	switch {
	case r == nil || s.state == Stopped:
		s.mu.Unlock()
		if r != nil {
			r.cancel()
		}
		s.disconnectAll()
		return
	case s.state == Stopping:
		s.mu.Unlock()
		<-r.stopped
		return
	}
	s.state = Stopping
	r.stopping.Store(true)
	s.mu.Unlock()

	if err := r.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("Error closing listener", "error", err)
	}
	r.cancel()
	<-r.done

	// The accept loop registers before it hands a connection off, so once it
	// has exited nothing new can appear in the registry.
	s.disconnectAll()

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	close(r.stopped)

	s.events.Event("Server stopped!")
}

func (s *Server) disconnectAll() {
	for _, c := range s.clients.DisconnectAll() {
		s.events.Eventf("%s is disconnected", c.Remote)
	}
}

// Wait blocks until the current accept loop exits. It returns the fatal
// accept error, or nil when the loop ended because of Stop.
func (s *Server) Wait() error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return nil
	}

	<-r.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.err
}

// Err returns the error that ended the last run, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil
	}
	return s.run.err
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr is the bound address while running, nil otherwise.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running || s.run == nil {
		return nil
	}
	return s.run.listener.Addr()
}

// Clients is the number of registered connections.
func (s *Server) Clients() int {
	return s.clients.Len()
}

func (s *Server) listen(r *run) {
	defer close(r.done)
	for {
		if r.limiter != nil {
			if err := r.limiter.Wait(r.ctx); err != nil {
				return
			}
		}

		conn, err := r.listener.Accept()
		if err != nil {
			if r.stopping.Load() {
				return
			}
			s.fail(r, err)
			return
		}

		c := registry.NewClient(conn)
		s.clients.Add(c)
		s.events.Eventf("%s is connected", c.Remote)
		go s.handle(r.ctx, c)
	}
}

// fail ends a run after an accept error that Stop did not cause. Clients
// already being served keep r.ctx and finish; the next Stop cancels it.
func (s *Server) fail(r *run, err error) {
	s.mu.Lock()
	if s.run != r || s.state != Running {
		s.mu.Unlock()
		return
	}
	r.stopping.Store(true)
	r.err = fmt.Errorf("accept: %w", err)
	s.state = Stopped
	s.mu.Unlock()

	_ = r.listener.Close()
	close(r.stopped)

	logger.Error("Accept loop failed", "port", r.port, "error", err)
	s.events.Eventf("Server stopped! Accept failed: %v", err)
}
