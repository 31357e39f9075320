package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/wotstats/external/wargaming"
	"github.com/riskibarqy/wotstats/internal/config"
	"github.com/riskibarqy/wotstats/internal/domain/observation"
	"github.com/riskibarqy/wotstats/internal/infrastructure/repository/csvfile"
	"github.com/riskibarqy/wotstats/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/wotstats/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/wotstats/internal/infrastructure/repository/sqlite"
	"github.com/riskibarqy/wotstats/internal/platform/logging"
	"github.com/riskibarqy/wotstats/internal/platform/record"
	"github.com/riskibarqy/wotstats/internal/usecase"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendCSV      = "csv"
	BackendMemory   = "memory"
)

// Store is the history store selected by DB_URL.
type Store struct {
	Backend    string
	Repository observation.Repository

	db *sqlx.DB
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenStore picks the history backend from the DB_URL scheme:
// postgres:// (or postgresql://), sqlite://<path>, csv://<path> or memory://.
func OpenStore(ctx context.Context, cfg config.Config, spec observation.FieldSpec, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}

	raw := strings.TrimSpace(cfg.DBURL)
	backend, target, err := parseStoreURL(raw)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendPostgres:
		db, err := openPostgres(ctx, normalizeDBURL(raw, cfg.DBDisablePreparedBinary))
		if err != nil {
			return nil, err
		}
		logger.Info("history store opened", "backend", backend, "db_name", dbNameFromURL(raw))
		return &Store{Backend: backend, Repository: postgres.NewStatisticsRepository(db, spec), db: db}, nil

	case BackendSQLite:
		db, err := sqlite.Open(ctx, target,
			otelsql.WithDBName(dbNameFromURL(target)),
			otelsql.WithQueryFormatter(formatDBQueryForTrace),
		)
		if err != nil {
			return nil, err
		}
		repo := sqlite.NewStatisticsRepository(db, spec)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("history store opened", "backend", backend, "path", target)
		return &Store{Backend: backend, Repository: repo, db: db}, nil

	case BackendCSV:
		repo, err := csvfile.NewStatisticsRepository(target, spec)
		if err != nil {
			return nil, err
		}
		logger.Info("history store opened", "backend", backend, "path", target)
		return &Store{Backend: backend, Repository: repo}, nil

	case BackendMemory:
		logger.Warn("history store is in memory, nothing will be persisted")
		return &Store{Backend: backend, Repository: memory.NewStatisticsRepository()}, nil
	}

	return nil, fmt.Errorf("unsupported DB_URL scheme %q", backend)
}

func parseStoreURL(raw string) (backend, target string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("DB_URL is required")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "", "", fmt.Errorf("DB_URL %q has no scheme", raw)
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return BackendPostgres, raw, nil
	case BackendSQLite, BackendCSV:
		path, err := url.PathUnescape(rest)
		if err != nil {
			return "", "", fmt.Errorf("parse DB_URL path: %w", err)
		}
		if strings.TrimSpace(path) == "" {
			return "", "", fmt.Errorf("DB_URL %q has no path", raw)
		}
		return strings.ToLower(scheme), path, nil
	case BackendMemory:
		return BackendMemory, "", nil
	default:
		return "", "", fmt.Errorf("unsupported DB_URL scheme %q", scheme)
	}
}

func openPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(dsn)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewIngestionService wires the stats API client into the ingestion engine.
func NewIngestionService(cfg config.Config, repo observation.Repository, recorder usecase.IngestionRecorder, logger *logging.Logger) (*usecase.IngestionService, error) {
	if err := cfg.ValidateForIngest(); err != nil {
		return nil, err
	}

	client, err := wargaming.NewClient(wargaming.ClientConfig{
		Realm:         cfg.Realm,
		BaseURL:       cfg.WOTBaseURL,
		ApplicationID: cfg.WOTApplicationID,
		Timeout:       cfg.WOTTimeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build stats api client: %w", err)
	}

	ingestCfg, err := ingestionConfig(cfg)
	if err != nil {
		return nil, err
	}
	return usecase.NewIngestionService(client, repo, ingestCfg, recorder, logger), nil
}

// NewImportService builds an ingestion engine without a stats source. Only
// Import may be used on it.
func NewImportService(cfg config.Config, repo observation.Repository, strict bool, logger *logging.Logger) (*usecase.IngestionService, error) {
	ingestCfg, err := ingestionConfig(cfg)
	if err != nil {
		return nil, err
	}
	if strict {
		ingestCfg.DedupPolicy = usecase.DedupFail
	}
	return usecase.NewIngestionService(nil, repo, ingestCfg, nil, logger), nil
}

func ingestionConfig(cfg config.Config) (usecase.IngestionConfig, error) {
	out := usecase.DefaultIngestionConfig()

	policy, err := usecase.ParseDedupPolicy(cfg.IngestDedupPolicy)
	if err != nil {
		return usecase.IngestionConfig{}, err
	}
	collision, err := record.ParseCollisionPolicy(cfg.FlattenCollisionPolicy)
	if err != nil {
		return usecase.IngestionConfig{}, err
	}

	out.DedupPolicy = policy
	out.Flatten.Collision = collision
	return out, nil
}

func NewReportService(repo observation.Repository, spec observation.FieldSpec, logger *logging.Logger) (*usecase.ReportService, error) {
	return usecase.NewReportService(repo, spec, usecase.DefaultPlots(), logger)
}

// MigrationURL returns the DB_URL for golang-migrate. Only postgres stores
// are migrated; the sqlite store creates its schema on open.
func MigrationURL(cfg config.Config) (string, error) {
	raw := strings.TrimSpace(cfg.DBURL)
	backend, _, err := parseStoreURL(raw)
	if err != nil {
		return "", err
	}
	if backend != BackendPostgres {
		return "", fmt.Errorf("migrations need a postgres DB_URL, got %s://", backend)
	}
	return normalizeDBURL(raw, cfg.DBDisablePreparedBinary), nil
}
