package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KilimcininKorOglu/dirquery/internal/client"
	"github.com/KilimcininKorOglu/dirquery/internal/memdir"
	"github.com/KilimcininKorOglu/dirquery/internal/metrics"
	"github.com/KilimcininKorOglu/dirquery/internal/query"
	"github.com/KilimcininKorOglu/dirquery/internal/tracing"
)

// session is everything one command invocation talks through.
type session struct {
	conn    query.Connection
	metrics *metrics.Collector
	closers []func(context.Context) error
}

// openSession connects to the fixture or the configured server and starts
// the observability endpoints.
func (o *rootOptions) openSession(ctx context.Context) (*session, error) {
	if err := o.load(); err != nil {
		return nil, err
	}
	s := &session{}

	shutdown, err := tracing.Setup(ctx, o.cfg.Tracing.TracerConfig())
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, shutdown)

	reg := prometheus.NewRegistry()
	s.metrics = metrics.New(reg)
	if o.cfg.Metrics.Enabled {
		srv := s.serveMetrics(o, reg)
		s.closers = append(s.closers, srv.Shutdown)
	}

	if o.fixture != "" {
		dir, err := memdir.LoadFile(o.fixture, memdir.WithLogger(o.logger))
		if err != nil {
			s.close()
			return nil, err
		}
		o.logger.Debug("using fixture", "path", o.fixture, "entries", dir.Len())
		s.conn = dir
		return s, nil
	}

	ccfg, err := o.cfg.Directory.ClientConfig()
	if err != nil {
		s.close()
		return nil, err
	}
	conn, err := client.Dial(ctx, ccfg, client.WithLogger(o.logger))
	if err != nil {
		s.close()
		return nil, err
	}
	s.closers = append(s.closers, func(context.Context) error { return conn.Close() })
	s.conn = conn
	return s, nil
}

func (s *session) serveMetrics(o *rootOptions, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(o.cfg.Metrics.Path, metrics.Handler(reg))
	srv := &http.Server{
		Addr:              o.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.logger.Error("metrics server failed", "address", srv.Addr, "error", err)
		}
	}()
	o.logger.Info("serving metrics", "address", srv.Addr, "path", o.cfg.Metrics.Path)
	return srv
}

// close runs the closers in reverse order.
func (s *session) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	return errors.Join(errs...)
}
