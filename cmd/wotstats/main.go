package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/riskibarqy/wotstats/internal/app"
	"github.com/riskibarqy/wotstats/internal/config"
	"github.com/riskibarqy/wotstats/internal/domain/observation"
	"github.com/riskibarqy/wotstats/internal/infrastructure/repository/csvfile"
	"github.com/riskibarqy/wotstats/internal/observability"
	"github.com/riskibarqy/wotstats/internal/platform/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger := logging.NewJSONWriter(os.Stderr, cfg.LogLevel).With(
		"service", cfg.ServiceName,
		"env", cfg.AppEnv,
	)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("uptrace shutdown failed", "error", err)
		}
	}()

	stopProfiling, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		return 1
	}
	defer func() {
		if err := stopProfiling(); err != nil {
			logger.Warn("pyroscope stop failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]
	ctx, span := otel.Tracer("github.com/riskibarqy/wotstats/cmd/wotstats").Start(ctx, "wotstats."+cmd)
	defer span.End()

	switch cmd {
	case "ingest":
		err = runIngest(ctx, cfg, rest, stdout, logger)
	case "export":
		err = runExport(ctx, cfg, rest, logger)
	case "import":
		err = runImport(ctx, cfg, rest, logger)
	case "report":
		err = runReport(ctx, cfg, rest, stdout, logger)
	default:
		printUsage()
		return 2
	}

	if err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, usage.Error())
			printUsage()
			return 2
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "command failed", "command", cmd, "error", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func runIngest(ctx context.Context, cfg config.Config, args []string, stdout io.Writer, logger *logging.Logger) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	withReport := fs.Bool("report", false, "print the report when the cycle added rows")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 0 {
		return usageError("ingest takes no positional arguments")
	}

	spec := observation.StatisticsSpec()
	store, err := app.OpenStore(ctx, cfg, spec, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	metrics := observability.NewIngestionMetrics()
	svc, err := app.NewIngestionService(cfg, store.Repository, metrics, logger)
	if err != nil {
		return err
	}

	summary, runErr := svc.Run(ctx, cfg.WOTAccountIDs)
	if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Warn("write metrics textfile failed", "path", cfg.MetricsTextfile, "error", err)
	}
	if runErr != nil {
		return runErr
	}
	if !*withReport || !summary.Changed() {
		return nil
	}
	return writeReport(ctx, store.Repository, spec, cfg.ReportWindow, stdout, logger)
}

func writeReport(ctx context.Context, repo observation.Repository, spec observation.FieldSpec, window time.Duration, stdout io.Writer, logger *logging.Logger) error {
	svc, err := app.NewReportService(repo, spec, logger)
	if err != nil {
		return err
	}
	report, err := svc.Build(ctx, window)
	if err != nil {
		return err
	}
	return printReport(stdout, report)
}

func runExport(ctx context.Context, cfg config.Config, args []string, logger *logging.Logger) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 1 {
		return usageError("export requires exactly one output file")
	}
	path := fs.Arg(0)

	spec := observation.StatisticsSpec()
	store, err := app.OpenStore(ctx, cfg, spec, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	items, err := store.Repository.ListOrdered(ctx)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := csvfile.Export(f, spec, items); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}

	logger.Info("history exported", "path", path, "rows", len(items))
	return nil
}

func runImport(ctx context.Context, cfg config.Config, args []string, logger *logging.Logger) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	strict := fs.Bool("strict", false, "fail on the first row that is already stored")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 1 {
		return usageError("import requires exactly one input file")
	}
	path := fs.Arg(0)

	spec := observation.StatisticsSpec()
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	flats, err := csvfile.ReadRecords(f, spec, csvfile.Legacy)
	_ = f.Close()
	if err != nil {
		return err
	}

	store, err := app.OpenStore(ctx, cfg, spec, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	svc, err := app.NewImportService(cfg, store.Repository, *strict, logger)
	if err != nil {
		return err
	}
	_, err = svc.Import(ctx, "csv:"+filepath.Base(path), flats)
	return err
}

func runReport(ctx context.Context, cfg config.Config, args []string, stdout io.Writer, logger *logging.Logger) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	rawWindow := fs.String("window", "", "history window such as 30d, 2w or 72h (default REPORT_WINDOW)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	window := cfg.ReportWindow
	if *rawWindow != "" {
		parsed, err := config.ParseWindow(*rawWindow)
		if err != nil {
			return usageError(err.Error())
		}
		window = parsed
	}

	spec := observation.StatisticsSpec()
	store, err := app.OpenStore(ctx, cfg, spec, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	return writeReport(ctx, store.Repository, spec, window, stdout, logger)
}

func closeStore(store *app.Store, logger *logging.Logger) {
	if err := store.Close(); err != nil {
		logger.Warn("close history store failed", "backend", store.Backend, "error", err)
	}
}

func printUsage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s <ingest|export|import|report> [args]\n", name)
	fmt.Fprintln(os.Stderr, "examples:")
	fmt.Fprintf(os.Stderr, "  %s ingest -report\n", name)
	fmt.Fprintf(os.Stderr, "  %s export history.csv\n", name)
	fmt.Fprintf(os.Stderr, "  %s import -strict legacy.csv\n", name)
	fmt.Fprintf(os.Stderr, "  %s report -window 30d\n", name)
}
