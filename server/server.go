package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/sloth/cache"
	"github.com/chazu/sloth/vm"
)

var log = commonlog.GetLogger("sloth.server")

// SlothServer serves the evaluation service over Connect (HTTP/JSON).
type SlothServer struct {
	worker *VMWorker
	mux    *http.ServeMux
}

// ServerOption configures a SlothServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	vmOpts []vm.Option
	store  *cache.Store
}

// WithVMOptions sets the options every evaluation VM is built with.
func WithVMOptions(opts ...vm.Option) ServerOption {
	return func(c *serverConfig) { c.vmOpts = append(c.vmOpts, opts...) }
}

// WithCache makes the server reuse compiled images from store. The server
// does not close the store.
func WithCache(store *cache.Store) ServerOption {
	return func(c *serverConfig) { c.store = store }
}

// New creates a SlothServer.
func New(opts ...ServerOption) *SlothServer {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewVMWorker(cfg.vmOpts...)
	s := &SlothServer{
		worker: worker,
		mux:    http.NewServeMux(),
	}

	evalPath, evalHandler := NewEvalServiceHandler(NewEvalService(worker, cfg.store))
	s.mux.Handle(evalPath, evalHandler)

	return s
}

// Handler returns the server's HTTP handler.
func (s *SlothServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *SlothServer) ListenAndServe(addr string) error {
	fmt.Printf("Sloth evaluation server listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://%s%s\n", addr, EvaluateProcedure)
	log.Infof("listening on %s", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// Stop shuts down the server's worker.
func (s *SlothServer) Stop() {
	s.worker.Stop()
}
