// Command atomic executes a JSON:API atomic operations document against PostgreSQL.
//
// The document is read from -file or stdin, the result document is written to stdout:
//
//	echo '{"atomic:operations":[{"op":"add","data":{"type":"tags","lid":"t1","attributes":{"name":"go"}}}]}' \
//		| DB_ADAPTER=pgx JSONAPI_POSTGRES_DSN=postgres://... atomic
//
// The whole batch runs in one transaction: when an operation fails, nothing is applied.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AntonStoeckl/jsonapi-operations-go/example/config"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/atomic"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/command"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/oteladapters"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/postgresengine"
)

const serviceName = "jsonapi-atomic"

var ErrUnknownDBAdapter = errors.New("unknown database adapter")

type options struct {
	file        string
	basePath    string
	migrate     bool
	verbose     bool
	showMetrics bool
}

func main() {
	opts := options{}
	flag.StringVar(&opts.file, "file", "", "Read the atomic operations document from this file instead of stdin")
	flag.StringVar(&opts.basePath, "base-path", "/", "Base path of the API, used to resolve href targets")
	flag.BoolVar(&opts.migrate, "migrate", true, "Create the store tables unless they exist")
	flag.BoolVar(&opts.verbose, "verbose", false, "Log SQL statements at debug level")
	flag.BoolVar(&opts.showMetrics, "metrics", false, "Print the collected metrics to stderr when done")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode, err := run(ctx, opts, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}

	stop()
	os.Exit(exitCode)
}

// run returns 0 when every operation succeeded, 1 when the batch failed, and 2 on errors.
func run(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	providers, err := config.NewObservabilityProviders(ctx, serviceName)
	if err != nil {
		return 2, fmt.Errorf("failed to set up observability: %w", err)
	}
	defer func() {
		if shutdownErr := providers.Shutdown(); shutdownErr != nil {
			logger.Warn("failed to shut down observability providers", "error", shutdownErr.Error())
		}
	}()

	metrics := oteladapters.NewMetricsCollector(providers.MeterProvider.Meter(serviceName))
	tracing := oteladapters.NewTracingCollector(providers.TracerProvider.Tracer(serviceName))

	store, closeDB, err := openStore(ctx,
		postgresengine.WithLogger(logger),
		postgresengine.WithMetrics(metrics),
		postgresengine.WithTracing(tracing),
	)
	if err != nil {
		return 2, err
	}
	defer closeDB()

	if opts.migrate {
		if err := store.Migrate(ctx); err != nil {
			return 2, err
		}
	}

	dispatcher, err := command.NewDispatcher(store,
		command.WithValidators(passthroughValidation{}),
		command.WithLogger(logger),
		command.WithMetrics(metrics),
		command.WithTracing(tracing),
	)
	if err != nil {
		return 2, err
	}

	processor, err := atomic.NewProcessor(dispatcher, store,
		atomic.WithTransactor(store),
		atomic.WithLogger(logger),
		atomic.WithMetrics(metrics),
		atomic.WithTracing(tracing),
	)
	if err != nil {
		return 2, err
	}

	body, err := readDocument(opts.file, stdin)
	if err != nil {
		return 2, err
	}

	ops, err := jsonapi.ParseAtomicOperations(body, jsonapi.WithHrefParser(jsonapi.NewPathHrefParser(opts.basePath)))
	if err != nil {
		var parseErr *jsonapi.ParseError
		if errors.As(err, &parseErr) {
			return 1, writeDocument(stdout, errorsDocument(parseErr.ErrorList()))
		}

		return 2, err
	}

	results, err := processor.Execute(ctx, nil, ops)
	if err != nil {
		return 2, err
	}

	if err := writeDocument(stdout, resultsDocument(results)); err != nil {
		return 2, err
	}

	if opts.showMetrics {
		if err := writeMetrics(ctx, stderr, providers); err != nil {
			logger.Warn("failed to collect metrics", "error", err.Error())
		}
	}

	if results.Failed() {
		return 1, nil
	}

	return 0, nil
}

// openStore builds the Store on the connection type selected with DB_ADAPTER.
func openStore(ctx context.Context, storeOpts ...postgresengine.Option) (postgresengine.Store, func(), error) {
	switch adapter := config.DBAdapter(); adapter {
	case config.AdapterPGX:
		pool, err := config.PostgresPGXPool(ctx)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, err := postgresengine.NewStoreFromPGXPool(pool, storeOpts...)
		if err != nil {
			pool.Close()
			return postgresengine.Store{}, nil, err
		}

		return store, pool.Close, nil

	case config.AdapterSQL:
		db, err := config.PostgresSQLDB(ctx)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLDB(db, storeOpts...)
		if err != nil {
			_ = db.Close()
			return postgresengine.Store{}, nil, err
		}

		return store, func() { _ = db.Close() }, nil

	case config.AdapterSQLX:
		db, err := config.PostgresSQLX(ctx)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLX(db, storeOpts...)
		if err != nil {
			_ = db.Close()
			return postgresengine.Store{}, nil, err
		}

		return store, func() { _ = db.Close() }, nil

	default:
		return postgresengine.Store{}, nil, errors.Join(ErrUnknownDBAdapter, errors.New(adapter))
	}
}

func readDocument(file string, stdin io.Reader) ([]byte, error) {
	if file == "" {
		return io.ReadAll(stdin)
	}

	return os.ReadFile(file)
}

// passthroughValidation accepts every operation and query of every resource type.
type passthroughValidation struct{}

func (passthroughValidation) ValidatorsFor(_ jsonapi.ResourceType) jsonapi.Validators {
	return jsonapi.PassthroughValidators{}
}
