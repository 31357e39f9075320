package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/wotstats/internal/domain/realm"
	"github.com/riskibarqy/wotstats/internal/platform/logging"
)

// Config stores runtime configuration for the wotstats commands.
type Config struct {
	AppEnv                  string `validate:"oneof=dev stage prod"`
	ServiceName             string `validate:"required"`
	ServiceVersion          string
	LogLevel                logging.Level
	DBURL                   string `validate:"required"`
	DBDisablePreparedBinary bool
	Realm                   realm.Realm `validate:"required"`
	WOTBaseURL              string      `validate:"omitempty,url"`
	WOTApplicationID        string
	WOTAccountIDs           []int64 `validate:"dive,gt=0"`
	WOTTimeout              time.Duration `validate:"gt=0"`
	IngestDedupPolicy       string        `validate:"oneof=skip fail"`
	FlattenCollisionPolicy  string        `validate:"oneof=last first fail"`
	ReportWindow            time.Duration `validate:"gte=0"`
	MetricsTextfile         string
	UptraceEnabled          bool
	UptraceDSN              string `validate:"required_if=UptraceEnabled true"`
	PyroscopeEnabled        bool
	PyroscopeServerAddress  string `validate:"required_if=PyroscopeEnabled true"`
	PyroscopeAppName        string
	PyroscopeAuthToken      string
	PyroscopeUploadRate     time.Duration `validate:"gt=0"`
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	serviceName := strings.TrimSpace(getEnv("APP_SERVICE_NAME", "wotstats"))

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	wotRealm, err := realm.Parse(getEnv("WOT_REALM", string(realm.EU)))
	if err != nil {
		return Config{}, fmt.Errorf("parse WOT_REALM: %w", err)
	}

	accountIDs, err := parseAccountIDs(getEnv("WOT_ACCOUNT_IDS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parse WOT_ACCOUNT_IDS: %w", err)
	}

	wotTimeout, err := time.ParseDuration(getEnv("WOT_TIMEOUT", "20s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse WOT_TIMEOUT: %w", err)
	}

	reportWindow, err := ParseWindow(getEnv("REPORT_WINDOW", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parse REPORT_WINDOW: %w", err)
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}

	cfg := Config{
		AppEnv:                  appEnv,
		ServiceName:             serviceName,
		ServiceVersion:          strings.TrimSpace(getEnv("APP_SERVICE_VERSION", "dev")),
		LogLevel:                parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		DBURL:                   strings.TrimSpace(getEnv("DB_URL", "sqlite://wotstats.db")),
		DBDisablePreparedBinary: dbDisablePreparedBinary,
		Realm:                   wotRealm,
		WOTBaseURL:              strings.TrimSpace(getEnv("WOT_BASE_URL", "")),
		WOTApplicationID:        strings.TrimSpace(getEnv("WOT_APPLICATION_ID", "")),
		WOTAccountIDs:           accountIDs,
		WOTTimeout:              wotTimeout,
		IngestDedupPolicy:       strings.ToLower(strings.TrimSpace(getEnv("INGEST_DEDUP_POLICY", "skip"))),
		FlattenCollisionPolicy:  strings.ToLower(strings.TrimSpace(getEnv("FLATTEN_COLLISION_POLICY", "last"))),
		ReportWindow:            reportWindow,
		MetricsTextfile:         strings.TrimSpace(getEnv("METRICS_TEXTFILE", "")),
		UptraceEnabled:          uptraceEnabled,
		UptraceDSN:              uptraceDSN,
		PyroscopeEnabled:        pyroscopeEnabled,
		PyroscopeServerAddress:  strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", "")),
		PyroscopeAppName:        strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", serviceName)),
		PyroscopeAuthToken:      strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeUploadRate:     pyroscopeUploadRate,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ValidateForIngest checks the settings only the ingest command needs.
func (c Config) ValidateForIngest() error {
	if c.WOTApplicationID == "" {
		return fmt.Errorf("WOT_APPLICATION_ID is required for ingest")
	}
	if c.WOTBaseURL == "" && c.Realm.APIRoot() == "" {
		return fmt.Errorf("WOT_REALM %q has no api root", c.Realm)
	}
	return nil
}

// ParseWindow parses a report window such as "30d", "2w" or any
// time.ParseDuration value. Empty means the whole history.
func ParseWindow(raw string) (time.Duration, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, nil
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(value, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(value, "w"):
		unit = 7 * 24 * time.Hour
	}
	if unit > 0 {
		n, err := strconv.Atoi(strings.TrimSpace(value[:len(value)-1]))
		if err != nil {
			return 0, fmt.Errorf("invalid window %q: %w", raw, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("window must be >= 0, got %q", raw)
		}
		return time.Duration(n) * unit, nil
	}

	out, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", raw, err)
	}
	if out < 0 {
		return 0, fmt.Errorf("window must be >= 0, got %q", raw)
	}
	return out, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseAccountIDs(raw string) ([]int64, error) {
	items := splitCSV(raw)
	out := make([]int64, 0, len(items))
	for _, item := range items {
		value, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid account id %q: %w", item, err)
		}
		if value <= 0 {
			return nil, fmt.Errorf("account id must be > 0, got %q", item)
		}
		out = append(out, value)
	}
	return out, nil
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
