package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"practice-judge/internal/monitor"
)

// MaxPollAttempts bounds the retrieval loop. At one poll per second this caps
// a single execution at roughly 30s. Configuration may lower it, never raise it.
const MaxPollAttempts = 30

// DefaultPollInterval is the fixed wait between retrieval calls.
const DefaultPollInterval = time.Second

// Judge0Options configures a Judge0Client.
type Judge0Options struct {
	BaseURL        string
	Host           string // sent as X-RapidAPI-Host when non-empty
	APIKey         string // sent as X-RapidAPI-Key when non-empty
	PollInterval   time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
	Limits         ResourceLimits // zero fields fall back to provider defaults
	Cache          ResultCache
	Metrics        *monitor.Metrics
}

// Judge0Client submits whole programs to a Judge0 instance and waits for the
// final verdict. It keeps no state between calls.
type Judge0Client struct {
	baseURL      string
	host         string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  int
	limits       ResourceLimits
	cache        ResultCache
	metrics      *monitor.Metrics
	tracer       *monitor.Tracer
}

type createSubmissionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
	ResourceLimits
}

type createSubmissionResponse struct {
	Token string `json:"token"`
}

// NewJudge0Client creates a client. Zero-valued options fall back to the
// provider defaults: 1s poll interval and 30 attempts.
func NewJudge0Client(opts Judge0Options) *Judge0Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 || opts.MaxAttempts > MaxPollAttempts {
		opts.MaxAttempts = MaxPollAttempts
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	return &Judge0Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		host:         opts.Host,
		apiKey:       opts.APIKey,
		httpClient:   &http.Client{Timeout: opts.RequestTimeout},
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxAttempts,
		limits:       opts.Limits,
		cache:        opts.Cache,
		metrics:      opts.Metrics,
		tracer:       monitor.NewTracer(),
	}
}

// Execute submits code with the given language and stdin, then polls until
// the provider reports a final status. The result is returned untransformed.
func (c *Judge0Client) Execute(ctx context.Context, code, language, stdin string) (*ExecutionResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}
	languageID, err := LanguageID(language)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.StartSpan(ctx, "judge0.execute",
		monitor.AttrLanguage.String(language),
		monitor.AttrCodeHash.String(CodeHash(code)[:16]),
	)
	defer span.End()

	key := cacheKey(language, code, stdin)
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, key); ok {
			log.Debug().Str("language", language).Msg("judge0 result served from cache")
			return cached, nil
		}
	}

	start := time.Now()
	token, err := c.submit(ctx, createSubmissionRequest{
		SourceCode:     code,
		LanguageID:     languageID,
		Stdin:          stdin,
		ResourceLimits: c.limits,
	})
	if err != nil {
		c.metrics.RecordProviderError("submit")
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(monitor.AttrToken.String(token))

	logger := log.With().Str("token", token).Str("language", language).Logger()
	logger.Debug().Msg("submission created")

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, &ExecutionError{Op: "poll", Err: ctx.Err()}
		case <-time.After(c.pollInterval):
		}

		result, err := c.fetch(ctx, token)
		if err != nil {
			c.metrics.RecordProviderError("retrieve")
			span.RecordError(err)
			return nil, err
		}

		logger.Debug().
			Int("attempt", attempt).
			Int("status_id", result.Status.ID).
			Str("status", result.Status.Description).
			Msg("polled submission")

		if !result.Status.Pending() {
			c.metrics.RecordPollAttempts(attempt)
			span.SetAttributes(monitor.AttrStatusID.Int(result.Status.ID))
			logger.Info().
				Int("attempts", attempt).
				Str("status", result.Status.Description).
				Dur("elapsed", time.Since(start)).
				Msg("submission finished")

			if c.cache != nil && result.Status.Accepted() {
				c.cache.Set(ctx, key, result)
			}
			return result, nil
		}
	}

	c.metrics.RecordPollAttempts(c.maxAttempts)
	c.metrics.RecordProviderError("timeout")
	logger.Warn().Int("attempts", c.maxAttempts).Msg("submission still pending, giving up")
	return nil, fmt.Errorf("%w (no final status after %d attempts)", ErrTimeout, c.maxAttempts)
}

func (c *Judge0Client) submit(ctx context.Context, body createSubmissionRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding submission: %w", err)
	}

	endpoint := c.baseURL + "/submissions?" + url.Values{
		"base64_encoded": {"false"},
		"wait":           {"false"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ExecutionError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s", ErrSubmissionFailed, describeResponse(resp))
	}

	var created createSubmissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrSubmissionFailed, err)
	}
	if created.Token == "" {
		return "", fmt.Errorf("%w: no token received from submission", ErrSubmissionFailed)
	}
	return created.Token, nil
}

func (c *Judge0Client) fetch(ctx context.Context, token string) (*ExecutionResult, error) {
	endpoint := c.baseURL + "/submissions/" + url.PathEscape(token) + "?base64_encoded=false"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building retrieval request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ExecutionError{Op: "retrieve", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrRetrievalFailed, describeResponse(resp))
	}

	var result ExecutionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrRetrievalFailed, err)
	}
	if result.Token == "" {
		result.Token = token
	}
	return &result, nil
}

func (c *Judge0Client) setAuthHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}
}

// describeResponse renders "<code> <text> - <body>" for error messages.
func describeResponse(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Sprintf("%d %s - %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
}
