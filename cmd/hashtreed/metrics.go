package main

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lauri000/hashtree/client"
)

// serveMetrics starts a Prometheus /metrics endpoint exposing the
// bandwidth tracker's collectors (SPEC_FULL.md §10 "Metrics"), returning a
// shutdown func.
func serveMetrics(logger log.Logger, addr string, cl *client.Client) func() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, collector := range cl.BandwidthCollectors() {
		reg.MustRegister(collector)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	return func() error {
		return srv.Shutdown(context.Background())
	}
}
