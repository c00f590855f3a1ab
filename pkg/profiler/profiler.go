package profiler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"
)

// Server exposes the pprof handlers on their own listener, away from the
// proxy routes. Keep it on a loopback address.
type Server struct {
	server   *http.Server
	listener net.Listener
	errCh    chan error
}

// Start binds address and serves /debug/pprof/ until Stop
func Start(address string) (*Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("profiler listen on %s: %w", address, err)
	}

	s := &Server{
		server: &http.Server{
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// profile and trace stream for their requested duration
			WriteTimeout: 2 * time.Minute,
		},
		listener: listener,
		errCh:    make(chan error, 1),
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.errCh
}
