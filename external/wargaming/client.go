package wargaming

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/wotstats/internal/domain/realm"
	"github.com/riskibarqy/wotstats/internal/platform/logging"
	"github.com/riskibarqy/wotstats/internal/platform/record"
	"github.com/riskibarqy/wotstats/internal/usecase"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	accountInfoPath = "account/info/"
	maxBodyBytes    = 6 << 20
	statusOK        = "ok"
)

// AccountInfoFields is the fixed field list requested from account/info.
var AccountInfoFields = []string{
	"last_battle_time",
	"updated_at",
	"global_rating",
	"clan_id",
	"statistics.trees_cut",
	"statistics.random.spotted",
	"statistics.random.battles_on_stunning_vehicles",
	"statistics.random.avg_damage_blocked",
	"statistics.random.capture_points",
	"statistics.random.explosion_hits",
	"statistics.random.piercings",
	"statistics.random.xp",
	"statistics.random.avg_damage_assisted",
	"statistics.random.dropped_capture_points",
	"statistics.random.damage_dealt",
	"statistics.random.hits_percents",
	"statistics.random.draws",
	"statistics.random.tanking_factor",
	"statistics.random.battles",
	"statistics.random.damage_received",
	"statistics.random.survived_battles",
	"statistics.random.frags",
	"statistics.random.stun_number",
	"statistics.random.avg_damage_assisted_radio",
	"statistics.random.direct_hits_received",
	"statistics.random.stun_assisted_damage",
	"statistics.random.hits",
	"statistics.random.battle_avg_xp",
	"statistics.random.wins",
	"statistics.random.losses",
	"statistics.random.piercings_received",
	"statistics.random.no_damage_direct_hits_received",
	"statistics.random.shots",
	"statistics.random.explosion_hits_received",
	"statistics.random.avg_damage_assisted_track",
	"nickname",
	"logout_at",
}

const defaultTimeout = 20 * time.Second

var accountInfoExtra = []string{"statistics.random"}

var applicationIDParamRegex = regexp.MustCompile(`application_id=[^&\s"']+`)

type ClientConfig struct {
	HTTPClient    *http.Client
	Realm         realm.Realm
	BaseURL       string
	ApplicationID string
	Timeout       time.Duration
	Logger        *logging.Logger
}

// Client talks to the Wargaming public API. Requests are never retried.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	applicationID string
	logger        *logging.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = cfg.Realm.APIRoot()
	}
	if baseURL == "" {
		return nil, crerr.Newf("unknown realm %q and no base url override", cfg.Realm)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, crerr.Wrapf(err, "invalid stats api base url %q", baseURL)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	applicationID := strings.TrimSpace(cfg.ApplicationID)
	if applicationID == "" {
		return nil, crerr.New("application id is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	} else if cfg.Timeout > 0 && httpClient.Timeout != cfg.Timeout {
		clone := *httpClient
		clone.Timeout = cfg.Timeout
		httpClient = &clone
	}

	return &Client{
		httpClient:    httpClient,
		baseURL:       baseURL,
		applicationID: applicationID,
		logger:        logger,
	}, nil
}

type accountInfoEnvelope struct {
	Status string `json:"status"`
	Meta   struct {
		Count int `json:"count"`
	} `json:"meta"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
		Value   any    `json:"value"`
	} `json:"error"`
	Data map[string]json.RawMessage `json:"data"`
}

// FetchAccountInfo requests every account in one call. The result follows the
// order of accountIDs; accounts the API reports as null or omits get a nil
// payload.
func (c *Client) FetchAccountInfo(ctx context.Context, accountIDs []int64) ([]usecase.AccountPayload, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	form := url.Values{}
	form.Set("application_id", c.applicationID)
	form.Set("account_id", strings.Join(ids, ","))
	form.Set("fields", strings.Join(AccountInfoFields, ","))
	form.Set("extra", strings.Join(accountInfoExtra, ","))

	raw, err := c.post(ctx, accountInfoPath, form)
	if err != nil {
		return nil, err
	}

	var envelope accountInfoEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, crerr.Wrapf(err, "decode account info body=%s", abbreviateBody(raw))
	}
	if envelope.Status != statusOK {
		return nil, sourceErrorFromEnvelope(envelope)
	}

	out := make([]usecase.AccountPayload, 0, len(accountIDs))
	for i, id := range accountIDs {
		item := usecase.AccountPayload{AccountID: id}
		data, ok := envelope.Data[ids[i]]
		if ok && !isJSONNull(data) {
			payload, err := record.ParseObject(data)
			if err != nil {
				return nil, crerr.Wrapf(err, "decode account info account_id=%d", id)
			}
			item.Payload = payload
		}
		out = append(out, item)
	}

	c.logger.DebugContext(ctx, "account info fetched", "requested", len(accountIDs), "count", envelope.Meta.Count)
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, crerr.Wrap(err, "build request")
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, crerr.Wrap(&redactedError{msg: c.sanitize(err.Error()), cause: err}, "send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, crerr.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "stats api request failed", "url", fullURL, "status", resp.StatusCode)
		return nil, &usecase.SourceError{
			Code:       resp.StatusCode,
			Message:    c.sanitize(abbreviateBody(raw)),
			HTTPStatus: resp.StatusCode,
		}
	}
	return raw, nil
}

// redactedError hides the application id in the message but keeps the cause
// reachable for errors.Is and errors.As.
type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

func (c *Client) sanitize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if c.applicationID != "" {
		value = strings.ReplaceAll(value, c.applicationID, "REDACTED")
	}
	return applicationIDParamRegex.ReplaceAllString(value, "application_id=REDACTED")
}

func sourceErrorFromEnvelope(envelope accountInfoEnvelope) error {
	if envelope.Error == nil {
		return &usecase.SourceError{Message: fmt.Sprintf("unexpected status %q", envelope.Status)}
	}
	out := &usecase.SourceError{
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
		Field:   envelope.Error.Field,
	}
	if envelope.Error.Value != nil {
		out.Value = fmt.Sprint(envelope.Error.Value)
	}
	return out
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func abbreviateBody(raw []byte) string {
	const limit = 256
	body := strings.TrimSpace(string(raw))
	if len(body) <= limit {
		return body
	}
	return body[:limit] + "..."
}
