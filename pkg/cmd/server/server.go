package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/cmd/util"
	"github.com/mpapenbr/rally-manager-go/pkg/config"
	"github.com/mpapenbr/rally-manager-go/pkg/db/postgres"
	"github.com/mpapenbr/rally-manager-go/pkg/endpoints/api"
	"github.com/mpapenbr/rally-manager-go/pkg/notify"
	"github.com/mpapenbr/rally-manager-go/pkg/notify/feed"
	natsNotify "github.com/mpapenbr/rally-manager-go/pkg/notify/nats"
	bobRepos "github.com/mpapenbr/rally-manager-go/pkg/repository/bob"
	"github.com/mpapenbr/rally-manager-go/pkg/service/race"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
	"github.com/mpapenbr/rally-manager-go/pkg/simulation"
)

var appConfig config.Config // holds processed config values

func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the rally api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:8080",
		"listen address of the api server")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (use 'stdout' for local debugging)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"path to TLS certificate")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"path to TLS key")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca",
		"",
		"path to TLS CA used to verify client certificates")
	cmd.Flags().StringVar(&config.TraefikCerts,
		"traefik-certs",
		"",
		"path to a traefik acme.json containing the server certificate")
	cmd.Flags().StringVar(&config.TraefikCertDomain,
		"traefik-cert-domain",
		"",
		"domain of the certificate in the traefik acme.json")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"url of the nats server receiving race notifications (empty: disabled)")
	cmd.Flags().StringVar(&config.ShutdownTimeout,
		"shutdown-timeout",
		"10s",
		"max duration for a graceful shutdown")
	cmd.Flags().Int64Var(&config.RandomSeed,
		"seed",
		0,
		"seed for the race variance (0: time based)")
	cmd.Flags().BoolVar(&appConfig.PrintRequests,
		"print-requests",
		false,
		"if true and log level is debug, request bodies will be logged")
	return cmd
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	_, sqlLogger, err := util.SetupLogger()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.ProfilingPort > 0 {
		startProfiling()
	}

	pgTraceOption := postgres.WithTracer(sqlLogger, log.DebugLevel)
	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, err = config.SetupTelemetry(ctx); err == nil {
			pgTraceOption = postgres.WithOtlpTracer()
			defer telemetry.Shutdown()
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	pool, err := util.OpenPool(ctx, pgTraceOption)
	if err != nil {
		return err
	}
	defer pool.Close()

	events := feed.New("race-settled")
	publisher, err := newPublisher(events)
	if err != nil {
		return err
	}
	defer publisher.Close()

	repos := bobRepos.NewRepositoriesFromPool(pool)
	txMgr := bobRepos.NewTransactionManagerFromPool(pool)
	engine := simulation.NewEngine(
		simulation.WithVariance(simulation.NewUniformVariance(uint64(config.RandomSeed))))
	apiServer := api.NewServer(
		registry.NewService(repos, txMgr),
		race.NewService(repos, txMgr,
			race.WithEngine(engine),
			race.WithPublisher(publisher)),
		api.WithPinger(pool),
		api.WithEventSource(events),
		api.WithConfig(appConfig))

	tlsConfig, err := newTLSConfig(ctx)
	if err != nil {
		return fmt.Errorf("tls setup: %w", err)
	}
	handler := otelhttp.NewHandler(newCORS().Handler(apiServer.Handler()), "rally-api")
	server := &http.Server{
		Addr:              config.ServerAddr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tlsConfig,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	setupGoRoutinesDump()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting api server",
			log.String("addr", config.ServerAddr),
			log.Bool("tls", tlsConfig != nil))
		var err error
		if tlsConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down api server")
		timeout, err := time.ParseDuration(config.ShutdownTimeout)
		if err != nil {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", log.ErrorField(err))
		return err
	}
	log.Info("Server terminated")
	return nil
}

// newPublisher combines the in-process feed with nats (if configured).
// Closing the returned publisher closes the feed as well.
func newPublisher(events *feed.Feed) (notify.Publisher, error) {
	if config.NatsURL == "" {
		return events, nil
	}
	log.Info("Publishing race notifications", log.String("nats", config.NatsURL))
	natsPublisher, err := natsNotify.Connect(config.NatsURL)
	if err != nil {
		events.Close()
		return nil, err
	}
	return notify.Multi(events, natsPublisher), nil
}

func startProfiling() {
	log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
	go func() {
		//nolint:gosec // by design
		err := http.ListenAndServe(
			fmt.Sprintf("localhost:%d", config.ProfilingPort),
			nil)
		if err != nil {
			log.Error("Profiling server stopped", log.ErrorField(err))
		}
	}()
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{api.RequestIDHeader},
	})
}
