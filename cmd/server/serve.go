package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/iliyamo/maintenance-auth/internal/config"
	"github.com/iliyamo/maintenance-auth/internal/handler"
	"github.com/iliyamo/maintenance-auth/internal/router"
	"github.com/iliyamo/maintenance-auth/internal/service"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		rcfg, err := config.LoadRedisConfig(envconfig.OsLookuper())
		if err != nil {
			return err
		}
		rl, err := config.LoadRateLimitConfig(envconfig.OsLookuper())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, rcfg, serveMigrate)
		if err != nil {
			return err
		}
		defer a.Close()

		e := router.New(router.Options{
			Auth:        handler.NewAuthHandler(a.svc),
			Guard:       a.svc,
			RateLimit:   rl,
			Redis:       a.redis,
			Metrics:     cfg.MetricsPort != "",
			LogRequests: true,
		})
		e.Logger.SetLevel(log.Level())

		if cfg.MetricsPort != "" {
			metrics := echo.New()
			metrics.HideBanner = true
			metrics.GET("/metrics", echoprometheus.NewHandler())
			go func() {
				if err := metrics.Start(":" + cfg.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("metrics server: %v", err)
				}
			}()
			defer metrics.Close()
		}

		go runPruner(ctx, a.svc, cfg.PruneInterval)

		go func() {
			log.Infof("listening on :%s (env=%s)", cfg.Port, cfg.Env)
			if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("http server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply the schema before serving")
	rootCmd.AddCommand(serveCmd)
}

// runPruner deletes expired ledger rows every interval until ctx is done.
func runPruner(ctx context.Context, svc *service.AuthService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := svc.Prune(ctx)
			if err != nil {
				log.Warnf("prune: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("prune: removed %d expired tokens", n)
			}
		}
	}
}
