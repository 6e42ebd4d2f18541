// Command differential recovers round 1 subkey nibbles of the two round DES
// variant from an encryption oracle by differential cryptanalysis.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joelmire/DESAttack/pkg/utils"
)

// serveMetrics exposes reg on listen until ctx is done.
func serveMetrics(ctx context.Context, listen string,
	reg *prometheus.Registry) error {

	l, err := net.Listen("tcp", listen)
	if err != nil {
		return utils.Error("failed to start metrics listener", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	go func() {
		err := srv.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			atckLog.Errorf("Metrics server: %v", err)
		}
	}()

	atckLog.Infof("Prometheus exporter started on %v/metrics", l.Addr())

	return nil
}

func run(ctx context.Context, cfg *config) error {
	setLogLevels(cfg.level)

	fmt.Printf("Initialising attack...")
	a, err := NewAttack(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Printf("done.\n")

	if cfg.Prometheus.Listen != "" {
		err := serveMetrics(ctx, cfg.Prometheus.Listen, a.registry)
		if err != nil {
			return err
		}
	}

	return a.Run(ctx)
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		var fErr *flags.Error
		if errors.As(err, &fErr) && fErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		utils.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.Fatal(err)
	}
}
