// Command meetcored serves the competition ranking engine over HTTP: the
// /api/v1 surface, the embedded OpenAPI contract, Prometheus metrics, expvar
// counters, and a health probe.
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetcore/internal/adapters/competition"
	"meetcore/internal/archive"
	"meetcore/internal/blob"
	"meetcore/internal/config"
	"meetcore/internal/core"
	"meetcore/internal/entitymodel"
	"meetcore/internal/infra/persistence/sqlite"
	"meetcore/pkg/domain"
)

const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "meetcored:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	engine := core.NewDefaultRulesEngine()
	store, err := openStore(cfg, engine)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithAuditRecorder(core.NewLoggerAuditRecorder(logger)),
		core.WithHouses(cfg.Houses),
		core.WithStrictAllocations(cfg.StrictAllocations),
	}
	var metrics *core.PrometheusMetricsRecorder
	if cfg.Metrics {
		metrics = core.NewPrometheusMetricsRecorder()
		opts = append(opts, core.WithMetricsRecorder(metrics))
	}
	if cfg.Trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(os.Stderr)))
	}
	if state, ok := store.(archive.StateStore); ok {
		opts = append(opts, core.WithSnapshotArchive(archive.New(blobs, state)))
	} else {
		logger.Warn("snapshots disabled: store does not export state", "storage_driver", cfg.StorageDriver)
	}

	svc := core.NewService(store, opts...)

	mux := http.NewServeMux()
	mux.Handle("/", competition.NewHandler(svc))
	mux.Handle("/openapi.yaml", entitymodel.NewOpenAPIHandler())
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", handleHealth)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", cfg.Addr,
			"storage_driver", cfg.StorageDriver,
			"blob_driver", cfg.BlobDriver,
			"rulebook", entitymodel.RulebookVersion(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func openStore(cfg config.Config, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	switch core.StorageDriver(cfg.StorageDriver) {
	case core.StorageMemory:
		return core.NewMemoryStore(engine), nil
	case core.StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case core.StoragePostgres:
		return core.NewPostgresStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openBlobs(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch blob.Driver(cfg.BlobDriver) {
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	case blob.DriverFilesystem:
		return blob.NewFilesystem(cfg.BlobFSRoot)
	case blob.DriverS3:
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:    cfg.BlobS3Bucket,
			Region:    cfg.BlobS3Region,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","rulebook":%q}`+"\n", entitymodel.RulebookVersion())
}
