package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cobranca/billing"
	"cobranca/config"
	"cobranca/db"
	"cobranca/logging"
	"cobranca/metrics"
	"cobranca/models"
	"cobranca/router"
	"cobranca/tools"
	"cobranca/workers"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "cobranca",
		Short:        "Disparo automático de cobranças por WhatsApp",
		Long:         "cobranca runs the billing rules of each reseller at their scheduled minute and sends the WhatsApp reminders.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("COBRANCA_CONFIG"), "config file (json, yaml or toml)")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newRunCmd(&configPath),
		newMigrateCmd(&configPath),
	)
	return rootCmd
}

// app is everything a command needs, built once from the configuration.
type app struct {
	conf     config.Configuration
	log      zerolog.Logger
	db       *gorm.DB
	store    *db.BillingStore
	engine   *workers.Engine
	registry *prometheus.Registry
	location *time.Location
	closers  []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func wireApp(configPath string) (*app, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logging.New(logging.Options{Level: conf.LogLevel, Format: conf.LogFormat, Path: conf.LogPath})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{conf: conf, log: log, closers: []io.Closer{logCloser}}

	clock, err := billing.NewZoneClock(conf.Timezone)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.location = clock.Location

	gdb, err := db.Connect(conf, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = gdb
	a.closers = append(a.closers, gdb)
	a.store = db.NewBillingStore(gdb)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.engine = workers.NewEngine(workers.Options{
		Store:           a.store,
		Clock:           clock,
		Waiter:          billing.SleepWaiter{},
		Jitter:          billing.NewJitter(time.Now().UnixNano()),
		NewSender:       newWhatsAppSender(conf.Provider.Timeout),
		ProviderTimeout: conf.Provider.Timeout,
		DefaultBaseURL:  conf.Provider.BaseURL,
		Log:             log.With().Str("component", "billing").Logger(),
		Metrics:         metrics.MustNew(a.registry),
	})
	return a, nil
}

func newWhatsAppSender(timeout time.Duration) workers.SenderFactory {
	httpClient := &http.Client{Timeout: timeout}
	return func(cred models.WhatsAppConfig) workers.Sender {
		return tools.WhatsAppClient{
			BaseURL:    cred.BaseURL,
			InstanceID: cred.InstanceID,
			Token:      cred.Token,
			HTTPClient: httpClient,
		}
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (trigger, preview, runs, metrics)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.conf.LogLevel != "debug" && a.conf.LogLevel != "trace" {
				gin.SetMode(gin.ReleaseMode)
			}
			r := gin.New()
			router.Initialize(r, a.conf, router.Deps{
				Engine:     a.engine,
				Store:      a.store,
				Gatherer:   a.registry,
				Log:        a.log,
				RunContext: ctx,
			})

			if a.conf.Trigger.InProcess {
				c, err := workers.StartBillingTrigger(ctx, a.engine, a.location, a.log)
				if err != nil {
					return fmt.Errorf("start trigger: %w", err)
				}
				defer func() { <-c.Stop().Done() }()
				a.log.Info().Str("tz", a.location.String()).Msg("billing trigger: in-process, every minute")
			}

			srv := &http.Server{
				Addr:              ":" + a.conf.ApiPort,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info().Str("port", a.conf.ApiPort).Msg("cobranca listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one billing invocation now and print its summary",
		Long:  "run does what the trigger endpoint does, for hosts that prefer a crontab line (* * * * * cobranca run).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sum, err := a.engine.Run(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(sum)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the billing tables",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := wireApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := db.Migrate(a.db); err != nil {
				return err
			}
			a.log.Info().Msg("migrate: done")
			return nil
		},
	}
}
