package profiler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

func handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// StartProfilerServer serves pprof and Prometheus metrics on addr until
// ctx is done.
func StartProfilerServer(ctx context.Context, addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: handler()}

	go func() {
		log.WithFields(log.Fields{
			"ADDRESS": lis.Addr(),
		}).Info("PROFILER: RUNNING")
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("PROFILER: STOPPED")
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	return lis.Addr(), nil
}
