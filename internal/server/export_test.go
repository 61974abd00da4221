package server

import "net"

// SetListenFunc replaces how s binds its listener.
func SetListenFunc(s *Server, f func(network, address string) (net.Listener, error)) {
	s.listenFn = f
}
