// Package registry tracks the connections a gateway currently has open so
// they can be torn down together when the listener stops.
package registry

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Client is one accepted connection. The handler serving it owns its
// lifetime; the Registry only keeps a reference for bulk shutdown.
type Client struct {
	ID     uuid.UUID
	Remote string
	conn   net.Conn
	closed atomic.Bool
}

func NewClient(conn net.Conn) *Client {
	c := &Client{ID: uuid.New(), conn: conn}
	if addr := conn.RemoteAddr(); addr != nil {
		c.Remote = addr.String()
	}
	return c
}

// Conn returns the underlying connection.
func (c *Client) Conn() net.Conn { return c.conn }

// Closed reports whether Close has been called.
func (c *Client) Closed() bool { return c.closed.Load() }

// Close closes the connection once. It reports whether this call did the
// closing, along with the error from the underlying Close.
func (c *Client) Close() (bool, error) {
	if c.closed.Swap(true) {
		return false, nil
	}
	return true, c.conn.Close()
}

// Registry is a set of open clients safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*Client
}

func New() *Registry {
	return &Registry{clients: make(map[uuid.UUID]*Client)}
}

// Add registers c. Adding the same client twice keeps one entry.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c.ID)
}

func (r *Registry) Contains(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[c.ID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// DisconnectAll empties the registry and closes every client that was not
// already closed. Connections are closed outside the lock, so handlers
// finishing at the same time can still call Remove. It returns the clients
// this call actually closed.
func (r *Registry) DisconnectAll() []*Client {
	r.mu.Lock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		snapshot = append(snapshot, c)
	}
	clear(r.clients)
	r.mu.Unlock()

	closed := make([]*Client, 0, len(snapshot))
	for _, c := range snapshot {
		if ok, _ := c.Close(); ok {
			closed = append(closed, c)
		}
	}
	return closed
}
