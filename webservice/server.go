package webservice

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// Server serves the status of a table over HTTP.
type Server struct {
	listener net.Listener
	iface    string
	port     string
	srv      *http.Server

	listenerMtx sync.Mutex
}

// NewServer creates a server for st listening on iface:port. The listener is
// created on first use, so a port of "0" picks a free port.
func NewServer(iface string, port string, st *Status) *Server {
	return &Server{
		iface: iface,
		port:  port,
		srv:   &http.Server{Handler: Handler(st)},
	}
}

// Start serves until Close is called.
func (s *Server) Start() error {
	l, err := s.Listener()
	if err != nil {
		return err
	}
	if err := s.srv.Serve(l); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Close stops the server and its listener.
func (s *Server) Close() error {
	s.listenerMtx.Lock()
	l := s.listener
	s.listenerMtx.Unlock()
	err := s.srv.Close()
	if l != nil {
		l.Close() // already closed if Start was called
	}
	return err
}

// URL returns the base URL of the server.
func (s *Server) URL() (string, error) {
	l, err := s.Listener()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s/", l.Addr()), nil
}

// Listener returns the listener of the server, creating it if needed.
func (s *Server) Listener() (net.Listener, error) {
	s.listenerMtx.Lock()
	defer s.listenerMtx.Unlock()

	if s.listener != nil {
		return s.listener, nil
	}

	listener, err := net.Listen("tcp4", net.JoinHostPort(s.iface, s.port))
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}
	s.listener = listener
	return s.listener, nil
}
