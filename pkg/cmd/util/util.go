package util

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/config"
	"github.com/mpapenbr/rally-manager-go/pkg/db/postgres"
	"github.com/mpapenbr/rally-manager-go/pkg/utils"
)

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the application logger and the logger for sql statements
// from the config values. The application logger becomes the default logger.
func SetupLogger() (logger, sqlLogger *log.Logger, err error) {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.WithFilter(config.LogFilter)
		if err != nil {
			return nil, nil, fmt.Errorf("log filter: %w", err)
		}
		opts = append(opts, filter)
	}
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr,
			ParseLogLevel(config.LogLevel, log.InfoLevel), opts...)
		sqlLogger = log.New(os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true), log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(os.Stderr,
			ParseLogLevel(config.LogLevel, log.DebugLevel), opts...)
		sqlLogger = log.DevLogger(os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true), log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)
	return logger, sqlLogger, nil
}

// WaitForRequiredServices waits until the database (and nats, if configured)
// accept tcp connections
func WaitForRequiredServices(ctx context.Context) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, addr := range []string{
		utils.ExtractFromDBURL(config.DB),
		utils.ExtractFromNatsURL(config.NatsURL),
	} {
		if addr == "" {
			continue
		}
		g.Go(func() error {
			return utils.WaitForTCP(ctx, addr, timeout)
		})
	}
	log.Debug("Waiting for connection checks to return")
	if err := g.Wait(); err != nil {
		return fmt.Errorf("required services not ready: %w", err)
	}
	log.Debug("Required services are available")
	return nil
}

// OpenPool waits for the database and creates the connection pool.
// The caller has to close the pool.
//
//nolint:whitespace // can't make both editor and linter happy
func OpenPool(ctx context.Context, opts ...postgres.PoolConfigOption) (
	*pgxpool.Pool, error,
) {
	if err := WaitForRequiredServices(ctx); err != nil {
		return nil, err
	}
	return postgres.InitWithURL(ctx, config.DB, opts...)
}
