package registry

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		peer.Close()
	})
	return NewClient(server), peer
}

func TestClientCloseOnce(t *testing.T) {
	c, _ := newPipeClient(t)
	assert.False(t, c.Closed())
	assert.NotEmpty(t, c.Remote)

	ok, err := c.Close()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, c.Closed())

	ok, err = c.Close()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistryAddRemove(t *testing.T) {
	r := New()
	a, _ := newPipeClient(t)
	b, _ := newPipeClient(t)

	r.Add(a)
	r.Add(a)
	r.Add(b)
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Contains(a))

	r.Remove(a)
	assert.False(t, r.Contains(a))
	assert.Equal(t, 1, r.Len())

	// Removing an absent client is a no-op
	r.Remove(a)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDisconnectAll(t *testing.T) {
	r := New()
	a, _ := newPipeClient(t)
	b, _ := newPipeClient(t)
	c, _ := newPipeClient(t)
	r.Add(a)
	r.Add(b)
	r.Add(c)

	// Already closed by its handler but not yet removed.
	_, _ = b.Close()

	closed := r.DisconnectAll()
	assert.ElementsMatch(t, []*Client{a, c}, closed)
	assert.Equal(t, 0, r.Len())
	for _, cl := range []*Client{a, b, c} {
		assert.True(t, cl.Closed())
	}

	// Second call finds nothing to do.
	assert.Empty(t, r.DisconnectAll())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := New()
	const n = 64

	clients := make([]*Client, n)
	for i := range clients {
		clients[i], _ = newPipeClient(t)
	}

	var wg sync.WaitGroup
	for i, c := range clients {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add(c)
			if i%2 == 0 {
				if ok, _ := c.Close(); ok {
					r.Remove(c)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.DisconnectAll()
	}()
	wg.Wait()

	r.DisconnectAll()
	assert.Equal(t, 0, r.Len())
	for _, c := range clients {
		assert.True(t, c.Closed())
	}
}
