package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// Serve runs the API (and the metrics listener when enabled) until ctx is
// cancelled, then shuts both down gracefully.
func Serve(ctx context.Context, d *Dependencies) error {
	servers := []*http.Server{{
		Addr:              d.Config.Server.Addr(),
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if d.Metrics != nil {
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf("%s:%d", d.Config.Server.Host, d.Config.Observability.MetricsPort),
			Handler:           NewMetricsRouter(d),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	if d.Scheduler != nil {
		if err := d.Scheduler.Start(); err != nil {
			return err
		}
	}
	defer d.Cleanup()

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			d.Logger.Info("listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		d.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
