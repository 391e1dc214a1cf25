// Package admin implements the relay's optional HTTP surface: liveness and
// expvar counters. It never touches the reactor's state directly, only
// through the healthcheck.HealthCheckProvider and expvar interfaces.
package admin

import (
	"context"
	"expvar"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/relaycore/statsd-relay/pkg/healthcheck"
)

// Server is the admin HTTP endpoint: /healthz and /debug/vars.
type Server struct {
	log     logrus.FieldLogger
	address string
	router  *mux.Router
	checks  []healthcheck.HealthcheckFunc
}

// New builds an admin server bound to address, exposing provider's health
// checks on /healthz and the process's expvar counters on /debug/vars.
func New(log logrus.FieldLogger, address string, provider healthcheck.HealthCheckProvider) *Server {
	var checks []healthcheck.HealthcheckFunc
	checks, _ = healthcheck.MaybeAppendHealthChecks(checks, nil, provider)

	s := &Server{log: log, address: address, checks: checks}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet).Name("healthz")
	router.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet).Name("debug_vars")
	s.router = router

	return s
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	good := []string{}
	bad := []string{}
	for _, check := range s.checks {
		report, status := check()
		if status == healthcheck.Healthy {
			good = append(good, report)
		} else {
			bad = append(bad, report)
		}
	}

	w.Header().Set("content-type", "application/json")
	if len(bad) > 0 {
		w.WriteHeader(http.StatusInternalServerError)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	enc := jsoniter.NewEncoder(w)
	_ = enc.Encode(map[string][]string{"ok": good, "failed": bad})
}

// Run serves the admin endpoint until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	server := &http.Server{
		Addr:    s.address,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("admin server failed")
		}
	}
}
