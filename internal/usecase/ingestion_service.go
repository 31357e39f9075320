package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/riskibarqy/wotstats/internal/domain/observation"
	"github.com/riskibarqy/wotstats/internal/platform/logging"
	"github.com/riskibarqy/wotstats/internal/platform/record"
	"go.opentelemetry.io/otel/attribute"
)

const sourceStatsAPI = "stats_api"

// StatsProvider fetches raw payloads for a batch of accounts in one request.
// The result holds one entry per returned account; Payload is nil when the
// API knows no such account.
type StatsProvider interface {
	FetchAccountInfo(ctx context.Context, accountIDs []int64) ([]AccountPayload, error)
}

type AccountPayload struct {
	AccountID int64
	Payload   *record.Object
}

// IngestionRecorder receives the outcome of every cycle.
type IngestionRecorder interface {
	ObserveIngestion(summary IngestionSummary, err error)
}

type DedupPolicy string

const (
	DedupSkip DedupPolicy = "skip"
	DedupFail DedupPolicy = "fail"
)

func ParseDedupPolicy(raw string) (DedupPolicy, error) {
	switch DedupPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DedupSkip:
		return DedupSkip, nil
	case DedupFail:
		return DedupFail, nil
	default:
		return "", fmt.Errorf("%w: invalid dedup policy %q: valid values are skip, fail", ErrInvalidInput, raw)
	}
}

type IngestionConfig struct {
	Spec        observation.FieldSpec
	Flatten     record.FlattenOptions
	DedupPolicy DedupPolicy
}

// DefaultIngestionConfig flattens payloads in strip mode onto the statistics
// table and skips duplicates.
func DefaultIngestionConfig() IngestionConfig {
	flatten := record.DefaultFlattenOptions()
	flatten.Strip = true
	return IngestionConfig{
		Spec:        observation.StatisticsSpec(),
		Flatten:     flatten,
		DedupPolicy: DedupSkip,
	}
}

type FailedSubject struct {
	AccountID int64
	Err       error
}

type IngestionSummary struct {
	RunID      string
	Source     string
	Requested  int
	Fetched    int
	Inserted   int
	Skipped    int
	Failed     []FailedSubject
	StartedAt  time.Time
	FinishedAt time.Time
}

// Changed reports whether the cycle added any row to the history.
func (s IngestionSummary) Changed() bool {
	return s.Inserted > 0
}

func (s IngestionSummary) FailedAccountIDs() []int64 {
	out := make([]int64, 0, len(s.Failed))
	for _, item := range s.Failed {
		out = append(out, item.AccountID)
	}
	return out
}

func (s *IngestionSummary) fail(accountID int64, err error) {
	s.Failed = append(s.Failed, FailedSubject{AccountID: accountID, Err: err})
}

type IngestionService struct {
	provider StatsProvider
	repo     observation.Repository
	cfg      IngestionConfig
	recorder IngestionRecorder
	logger   *logging.Logger
	now      func() time.Time
}

func NewIngestionService(
	provider StatsProvider,
	repo observation.Repository,
	cfg IngestionConfig,
	recorder IngestionRecorder,
	logger *logging.Logger,
) *IngestionService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DedupPolicy == "" {
		cfg.DedupPolicy = DedupSkip
	}

	return &IngestionService{
		provider: provider,
		repo:     repo,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one ingestion cycle: a single batched fetch followed by
// sequential flatten, normalize, project and insert per account.
func (s *IngestionService) Run(ctx context.Context, accountIDs []int64) (summary IngestionSummary, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IngestionService.Run",
		attribute.Int("wotstats.accounts.requested", len(accountIDs)),
	)
	defer func() {
		span.SetAttributes(attribute.Int("wotstats.records.inserted", summary.Inserted))
		endSpan(span, err)
	}()

	summary = s.newSummary(sourceStatsAPI, len(accountIDs))
	if len(accountIDs) == 0 {
		s.logger.WarnContext(ctx, "there are no configured accounts, nothing to do", "run_id", summary.RunID)
		return s.finish(ctx, summary, nil)
	}

	ids, err := cleanAccountIDs(accountIDs)
	if err != nil {
		return s.finish(ctx, summary, err)
	}
	if s.provider == nil {
		return s.finish(ctx, summary, fmt.Errorf("%w: stats provider is not configured", ErrSourceFailure))
	}

	payloads, err := s.provider.FetchAccountInfo(ctx, ids)
	if err != nil {
		return s.finish(ctx, summary, fmt.Errorf("%w: fetch account info: %w", ErrSourceFailure, err))
	}
	summary.Fetched = len(payloads)

	pending := make([]observation.Observation, 0, len(payloads))
	for _, payload := range payloads {
		if payload.Payload == nil {
			summary.fail(payload.AccountID, fmt.Errorf("%w: account_id=%d unknown to the stats api", ErrInvalidInput, payload.AccountID))
			continue
		}

		flat, err := record.Flatten(payload.Payload, s.cfg.Flatten)
		if err != nil {
			summary.fail(payload.AccountID, fmt.Errorf("flatten account_id=%d: %w", payload.AccountID, err))
			continue
		}
		if value, ok := flat.Get(s.cfg.Spec.SubjectColumn); !ok || value == nil {
			flat.Set(s.cfg.Spec.SubjectColumn, payload.AccountID)
		}

		item, err := s.transform(flat)
		if err != nil {
			summary.fail(payload.AccountID, fmt.Errorf("transform account_id=%d: %w", payload.AccountID, err))
			continue
		}
		pending = append(pending, item)
	}

	err = s.insertAll(ctx, &summary, pending)
	return s.finish(ctx, summary, err)
}

// Import pushes already flat records, such as rows of a CSV history file,
// through normalize, project and insert.
func (s *IngestionService) Import(ctx context.Context, source string, flats []*record.Object) (summary IngestionSummary, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IngestionService.Import",
		attribute.String("wotstats.source", source),
		attribute.Int("wotstats.rows", len(flats)),
	)
	defer func() { endSpan(span, err) }()

	summary = s.newSummary(strings.TrimSpace(source), len(flats))
	summary.Fetched = len(flats)

	pending := make([]observation.Observation, 0, len(flats))
	for idx, flat := range flats {
		item, err := s.transform(flat)
		if err != nil {
			accountID, _ := observation.Coerce(observation.ColumnInteger, firstValue(flat, s.cfg.Spec.SubjectColumn))
			id, _ := accountID.(int64)
			summary.fail(id, fmt.Errorf("transform row %d: %w", idx+1, err))
			continue
		}
		pending = append(pending, item)
	}

	err = s.insertAll(ctx, &summary, pending)
	return s.finish(ctx, summary, err)
}

func (s *IngestionService) transform(flat *record.Object) (observation.Observation, error) {
	normalized, err := record.NormalizeTimestamps(flat, s.cfg.Spec.TimeColumns())
	if err != nil {
		return observation.Observation{}, err
	}
	values := record.Project(normalized, s.cfg.Spec.Names())
	return s.cfg.Spec.Build(values)
}

func (s *IngestionService) insertAll(ctx context.Context, summary *IngestionSummary, pending []observation.Observation) error {
	if s.repo == nil {
		return fmt.Errorf("%w: history store is not configured", ErrStorageFailure)
	}

	for _, item := range pending {
		updatedAt := item.ObservedAt.Format(time.RFC3339)
		s.logger.InfoContext(ctx, "attempting insert",
			"run_id", summary.RunID,
			"account_id", item.SubjectID,
			"nickname", s.cfg.Spec.Text(item, observation.NicknameColumn),
			"updated_at", updatedAt,
		)

		result, err := s.repo.Insert(ctx, item)
		if err != nil {
			return fmt.Errorf("%w: insert account_id=%d updated_at=%s: %w", ErrStorageFailure, item.SubjectID, updatedAt, err)
		}

		switch result {
		case observation.InsertResultInserted:
			summary.Inserted++
			s.logger.InfoContext(ctx, "insert successful", "run_id", summary.RunID, "account_id", item.SubjectID)
		case observation.InsertResultDuplicate:
			if s.cfg.DedupPolicy == DedupFail {
				return fmt.Errorf("%w: account_id=%d updated_at=%s already stored", ErrDuplicateRejected, item.SubjectID, updatedAt)
			}
			summary.Skipped++
			s.logger.InfoContext(ctx, "skipping, record exists", "run_id", summary.RunID, "account_id", item.SubjectID)
		default:
			return fmt.Errorf("%w: unexpected insert result %d for account_id=%d", ErrStorageFailure, result, item.SubjectID)
		}
	}
	return nil
}

func (s *IngestionService) newSummary(source string, requested int) IngestionSummary {
	return IngestionSummary{
		RunID:     uuid.NewString(),
		Source:    source,
		Requested: requested,
		StartedAt: s.now().UTC(),
	}
}

func (s *IngestionService) finish(ctx context.Context, summary IngestionSummary, err error) (IngestionSummary, error) {
	summary.FinishedAt = s.now().UTC()

	fields := []any{
		"run_id", summary.RunID,
		"source", summary.Source,
		"requested", summary.Requested,
		"fetched", summary.Fetched,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
		"failed", len(summary.Failed),
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	}
	if len(summary.Failed) > 0 {
		fields = append(fields, "failed_account_ids", summary.FailedAccountIDs())
	}
	for _, failed := range summary.Failed {
		s.logger.WarnContext(ctx, "account ingestion failed", "run_id", summary.RunID, "account_id", failed.AccountID, "error", failed.Err)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "ingestion cycle aborted", append(fields, "error", err)...)
	} else {
		s.logger.InfoContext(ctx, "ingestion cycle finished", fields...)
	}

	if s.recorder != nil {
		s.recorder.ObserveIngestion(summary, err)
	}
	return summary, err
}

func cleanAccountIDs(accountIDs []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(accountIDs))
	out := make([]int64, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id <= 0 {
			return nil, fmt.Errorf("%w: account id must be greater than zero, got %d", ErrInvalidInput, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func firstValue(flat *record.Object, key string) any {
	value, _ := flat.Get(key)
	return value
}
