package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/datametry/edr/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerOpts struct {
	ListenAddr string
}

// HttpServer is a http server that is preconfigured with a prometheus metrics handler and a health check.
// Additional handlers can be registered with RegisterHandler.
type HttpServer struct {
	mux  *http.ServeMux
	opts *ServerOpts
	srv  *http.Server
	ln   net.Listener

	errCh chan error
}

func NewServer(opts *ServerOpts) *HttpServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &HttpServer{
		opts:  opts,
		mux:   mux,
		errCh: make(chan error, 1),
	}
}

// Open binds the listen address and starts serving in the background.  Serve errors are reported on Err.
func (s *HttpServer) Open(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	logger.Infof("Listening at %s", ln.Addr())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return nil
}

// Addr returns the bound address.  Only valid after Open.
func (s *HttpServer) Addr() string {
	return s.ln.Addr().String()
}

// Err returns a channel that receives a serve error, if any, and is closed when the server stops.
func (s *HttpServer) Err() <-chan error {
	return s.errCh
}

// Close shuts down the http server.
func (s *HttpServer) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// RegisterHandler registers a new handler at the given path.  The handler must be registered before Open is called.
func (s *HttpServer) RegisterHandler(path string, handler http.Handler) {
	s.mux.Handle(path, handler)
}
