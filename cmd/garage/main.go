package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/cmd/garage/cli"
	"github.com/phoenix-garage/garage/internal/actions"
	"github.com/phoenix-garage/garage/internal/app"
	"github.com/phoenix-garage/garage/internal/dashboard"
	"github.com/phoenix-garage/garage/internal/intake"
	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/invoice"
	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/legacy"
	"github.com/phoenix-garage/garage/internal/observability"
	"github.com/phoenix-garage/garage/internal/platform/blob"
	"github.com/phoenix-garage/garage/internal/platform/cache"
	"github.com/phoenix-garage/garage/internal/platform/db"
	"github.com/phoenix-garage/garage/internal/shared"
	"github.com/phoenix-garage/garage/jobs"
	"github.com/phoenix-garage/garage/migrations"
)

const usage = `usage: garage <command> [flags]

commands:
  serve                         run the HTTP API (default)
  migrate [up|down]             apply or roll back schema migrations
  import-legacy --file F        import a legacy spreadsheet export
        [--mode dry|apply] [--json] [--verbose]
  enqueue <task>|stats          trigger a worker task or print queue counters
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg)

	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return migrate(cfg, logger, args, stderr)
	case "import-legacy":
		return importLegacy(ctx, cfg, logger, args, stdin, stdout, stderr)
	case "enqueue":
		return enqueue(ctx, cfg, args, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{ConnectTimeout: cfg.PGConnectTimeout, MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	locker := shared.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockWait)

	var uploader blob.Uploader
	if cfg.BlobConfigured() {
		s3Uploader, err := blob.NewS3Uploader(ctx, blob.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
			Timeout:   cfg.UploadTimeout,
			MaxBytes:  cfg.UploadMaxBytes,
		})
		if err != nil {
			logger.Error("init object store", slog.Any("error", err))
			return 1
		}
		uploader = s3Uploader
	} else {
		logger.Warn("S3 is not configured, image uploads are disabled")
	}

	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger, logger)

	jobConfig := jobcard.ServiceConfig{}
	if cfg.StrictTransitions {
		jobConfig.Transitions = jobcard.ForwardOnlyTransitions
	}
	jobService := jobcard.NewService(jobcard.NewRepository(pool), auditLogger, logger, jobConfig)

	invoiceService := invoice.NewService(invoice.NewRepository(pool), jobService, locker, auditLogger, metrics, logger, invoice.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
		TaxRate:            cfg.TaxRate(),
	})

	intakeService := intake.NewService(
		intake.NewDraftStore(redisClient, cfg.IntakeDraftTTL),
		jobService, uploader, idempotencyStore, metrics, logger,
	)
	dashboardService := dashboard.NewService(jobService, inventoryService)
	dispatcher := actions.NewDispatcher(inventoryService, jobService, invoiceService, uploader, metrics, logger)

	inspector := asynq.NewInspector(cfg.Redis().QueueOpts())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		HealthChecks: []app.HealthCheck{
			{Name: "postgres", Check: pool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		JobHandler:       jobcard.NewHandler(logger, jobService),
		InvoiceHandler:   invoice.NewHandler(logger, invoiceService),
		IntakeHandler:    intake.NewHandler(logger, intakeService, cfg.UploadMaxBytes),
		DashboardHandler: dashboard.NewHandler(logger, dashboardService),
		UploadHandler:    actions.NewUploadHandler(logger, uploader, metrics, cfg.UploadMaxBytes),
		ActionHandler:    actions.NewHandler(logger, dispatcher, cfg.ActionMaxBytes),
		QueueHandler:     jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stopProcess()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
		return 1
	}
	logger.Info("http server stopped")
	return 0
}

// stopProcess delivers SIGTERM to ourselves so serve unwinds through the normal
// shutdown path.
func stopProcess() {
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(syscall.SIGTERM)
	}
}

func migrate(cfg *app.Config, logger *slog.Logger, args []string, stderr io.Writer) int {
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}
	if direction != "up" && direction != "down" {
		fmt.Fprintf(stderr, "migrate: direction must be up or down, got %q\n", direction)
		return 2
	}
	if err := db.Migrate(cfg.PGDSN, migrations.Files, direction, logger); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		return 1
	}
	return 0
}

func importLegacy(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("import-legacy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "path to the .xlsx export, or - for stdin")
	mode := fs.String("mode", string(legacy.ModeDry), "dry or apply")
	jsonOut := fs.Bool("json", false, "print the summary as JSON")
	verbose := fs.Bool("verbose", false, "list every warning and rejected row")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var sink legacy.Sink
	if strings.EqualFold(*mode, string(legacy.ModeApply)) {
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{ConnectTimeout: cfg.PGConnectTimeout})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		sink = legacy.NewPGSink(pool)
	}

	command := cli.NewLegacyCLI(legacy.NewImporter(sink, logger))
	return command.ImportCommand(ctx, cli.LegacyImportOptions{
		Source:     *file,
		Mode:       legacy.Mode(*mode),
		JSONOutput: *jsonOut,
		Verbose:    *verbose,
		Stdout:     stdout,
		Stderr:     stderr,
		Stdin:      stdin,
	})
}

func enqueue(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintf(stderr, "enqueue: expected one of %s, %s or stats\n", jobs.TaskStatusAudit, jobs.TaskIdempotencyCleanup)
		return 2
	}
	redisOpts := cfg.Redis().QueueOpts()
	client := jobs.NewClient(redisOpts)
	defer func() { _ = client.Close() }()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	jobsCLI := cli.NewJobsCLI(client, inspector)
	if args[0] == "stats" {
		return jobsCLI.StatsCommand(stdout, stderr)
	}
	return jobsCLI.EnqueueCommand(ctx, args[0], stdout, stderr)
}
