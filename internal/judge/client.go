// Package judge submits programs to a Judge0-compatible execution service.
package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/metrics"
	"github.com/codeforge/judge-harness/internal/synth"
)

const (
	maxResponseBytes = 8 << 20

	// maxOutputBytes caps each output field kept on an outcome.
	maxOutputBytes     = 64 * 1024 // 64 KB
	outputTruncatedMsg = "\n... output truncated (64 KB limit) ..."
)

// Config is everything the client needs to reach the judge.
type Config struct {
	BaseURL   string
	APIKey    string // RapidAPI key
	APIHost   string // RapidAPI host; defaults to the BaseURL host
	AuthToken string // self-hosted X-Auth-Token

	RequestTimeout  time.Duration
	TimeoutHeadroom time.Duration

	RatePerSecond float64
	Burst         int

	MaxRetries           int
	RetryInitialInterval time.Duration

	Base64 bool
}

// Client is safe for concurrent use; its rate limiter and connection pool are
// shared by every caller.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a judge client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIHost == "" {
		if u, err := url.Parse(cfg.BaseURL); err == nil {
			cfg.APIHost = u.Host
		}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 250 * time.Millisecond
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

type submissionRequest struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput string  `json:"expected_output"`
	CPUTimeLimit   float64 `json:"cpu_time_limit"`
	MemoryLimit    int     `json:"memory_limit"`
	WallTimeLimit  float64 `json:"wall_time_limit"`
	MaxFileSize    int     `json:"max_file_size"`
}

type submissionResponse struct {
	Stdout        *string             `json:"stdout"`
	Stderr        *string             `json:"stderr"`
	CompileOutput *string             `json:"compile_output"`
	Time          flexFloat           `json:"time"`
	Memory        flexFloat           `json:"memory"`
	Status        *domain.JudgeStatus `json:"status"`
	Message       *string             `json:"message"`
}

// flexFloat accepts a JSON number, a numeric string, or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric field %s: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}

// Submit runs source on the judge and waits for the verdict. It never fails:
// every local or transport problem comes back as an Internal Error outcome.
func (c *Client) Submit(ctx context.Context, lang domain.Language, source string, limits domain.ExecutionLimits, expected string) domain.JudgeOutcome {
	langID, ok := LanguageID(lang)
	if !ok {
		return domain.FailureOutcome(uuid.Nil, &domain.UnsupportedLanguageError{Language: string(lang)})
	}

	start := time.Now()
	resp, err := c.submit(ctx, c.buildRequest(langID, source, limits, expected), limits)
	metrics.JudgeRequestDuration.WithLabelValues(string(lang)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("Judge submission failed",
			zap.String("language", string(lang)),
			zap.Error(err),
		)
		outcome := domain.FailureOutcome(uuid.Nil, err)
		outcome.ExpectedOutput = expected
		return outcome
	}

	outcome, err := c.toOutcome(resp, expected)
	if err != nil {
		outcome = domain.FailureOutcome(uuid.Nil, err)
		outcome.ExpectedOutput = expected
	}
	return outcome
}

func (c *Client) buildRequest(langID int, source string, limits domain.ExecutionLimits, expected string) submissionRequest {
	req := submissionRequest{
		SourceCode:     source,
		LanguageID:     langID,
		ExpectedOutput: expected,
		CPUTimeLimit:   limits.CPUTimeLimit,
		MemoryLimit:    limits.MemoryLimitKB,
		WallTimeLimit:  limits.WallTimeLimit,
		MaxFileSize:    limits.MaxFileSizeKB,
	}
	if c.cfg.Base64 {
		req.SourceCode = base64.StdEncoding.EncodeToString([]byte(source))
		req.ExpectedOutput = base64.StdEncoding.EncodeToString([]byte(expected))
	}
	return req
}

// requestTimeout keeps the client deadline above the sandbox wall clock.
func (c *Client) requestTimeout(limits domain.ExecutionLimits) time.Duration {
	wall := time.Duration(limits.WallTimeLimit*float64(time.Second)) + c.cfg.TimeoutHeadroom
	return max(c.cfg.RequestTimeout, wall)
}

func (c *Client) submit(ctx context.Context, body submissionRequest, limits domain.ExecutionLimits) (*submissionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	endpoint := fmt.Sprintf("%s/submissions?base64_encoded=%t&wait=true", c.cfg.BaseURL, c.cfg.Base64)
	timeout := c.requestTimeout(limits)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInitialInterval
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(c.cfg.MaxRetries, 0))), ctx)

	resp, err := backoff.RetryWithData(func() (*submissionResponse, error) {
		return c.attempt(ctx, endpoint, payload, timeout)
	}, retry)
	if err != nil && ctx.Err() != nil {
		var transport *domain.TransportError
		if !errors.As(err, &transport) {
			err = &domain.TransportError{Timeout: isTimeout(err), Err: err}
		}
	}
	return resp, err
}

// attempt performs one HTTP round trip. Only throttling and gateway errors are
// returned as retryable; everything else is wrapped as permanent.
func (c *Client) attempt(ctx context.Context, endpoint string, payload []byte, timeout time.Duration) (*submissionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(&domain.TransportError{Timeout: isTimeout(err), Err: err})
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build judge request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-rapidapi-key", c.cfg.APIKey)
		req.Header.Set("x-rapidapi-host", c.cfg.APIHost)
	}
	if c.cfg.AuthToken != "" {
		req.Header.Set("X-Auth-Token", c.cfg.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, backoff.Permanent(&domain.TransportError{Timeout: isTimeout(err), Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, backoff.Permanent(&domain.TransportError{Timeout: isTimeout(err), Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		protoErr := &domain.JudgeProtocolError{StatusCode: resp.StatusCode, Body: string(raw)}
		if retryable(resp.StatusCode) {
			metrics.JudgeRetries.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
			c.logger.Debug("Judge throttled or unavailable, retrying",
				zap.Int("status_code", resp.StatusCode),
			)
			return nil, protoErr
		}
		return nil, backoff.Permanent(protoErr)
	}

	var decoded submissionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, backoff.Permanent(&domain.JudgeProtocolError{StatusCode: resp.StatusCode, Body: string(raw), Err: err})
	}
	if decoded.Status == nil {
		return nil, backoff.Permanent(&domain.JudgeProtocolError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			Err:        errors.New("response has no status"),
		})
	}
	return &decoded, nil
}

func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) toOutcome(resp *submissionResponse, expected string) (domain.JudgeOutcome, error) {
	var fields [4]string
	for i, p := range []*string{resp.Stdout, resp.Stderr, resp.CompileOutput, resp.Message} {
		if p == nil {
			continue
		}
		fields[i] = *p
		if c.cfg.Base64 {
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*p))
			if err != nil {
				return domain.JudgeOutcome{}, &domain.JudgeProtocolError{StatusCode: http.StatusOK, Err: fmt.Errorf("decode base64 field: %w", err)}
			}
			fields[i] = string(decoded)
		}
	}

	outcome := domain.JudgeOutcome{
		Stdout:         fields[0],
		Stderr:         fields[1],
		CompileOutput:  fields[2],
		Message:        fields[3],
		Time:           float64(resp.Time),
		MemoryKB:       int(resp.Memory),
		Status:         *resp.Status,
		ExpectedOutput: expected,
	}
	classify(&outcome)

	// Clip only after classification so comparison sees the full output
	outcome.Stdout = truncateOutput(outcome.Stdout)
	outcome.Stderr = truncateOutput(outcome.Stderr)
	outcome.CompileOutput = truncateOutput(outcome.CompileOutput)
	return outcome, nil
}

// truncateOutput cuts s to maxOutputBytes on a rune boundary and appends a
// truncation notice.
func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	cut := maxOutputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + outputTruncatedMsg
}

// classify derives Passed and Failure from the judge status and the
// driver's stderr tag.
func classify(o *domain.JudgeOutcome) {
	switch {
	case o.Status.ID == domain.StatusAccepted || o.Status.ID == domain.StatusWrongAnswer:
		if o.ExpectedOutput == "" {
			o.Passed = o.Status.ID == domain.StatusAccepted
			return
		}
		o.Passed = OutputsMatch(o.Stdout, o.ExpectedOutput)
		if o.Passed {
			o.Status = domain.JudgeStatus{ID: domain.StatusAccepted, Description: "Accepted"}
		} else if o.Status.ID == domain.StatusAccepted {
			o.Status = domain.JudgeStatus{ID: domain.StatusWrongAnswer, Description: "Wrong Answer"}
		}
	case o.Status.ID == domain.StatusCompilationError:
		o.Failure = domain.FailureCompile
	case o.Status.ID == domain.StatusInternalError || o.Status.ID == domain.StatusExecFormatError:
		o.Failure = domain.FailureInternal
	case o.Status.IsRuntimeError():
		o.Failure = domain.FailureRuntime
		if class, detail := synth.ClassifyStderr(o.Stderr); class != domain.FailureNone {
			o.Failure = class
			o.Message = class.Describe() + ": " + detail
		}
	}
}

// OutputsMatch compares program output with the expected output, ignoring
// surrounding whitespace and JSON formatting differences.
func OutputsMatch(actual, expected string) bool {
	a, e := strings.TrimSpace(actual), strings.TrimSpace(expected)
	if a == e {
		return true
	}
	av, ok := decodeExact(a)
	if !ok {
		return false
	}
	ev, ok := decodeExact(e)
	if !ok {
		return false
	}
	return jsonEqual(av, ev)
}

// decodeExact parses one JSON document keeping numbers as their source text.
func decodeExact(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}

// numbersEqual compares JSON numbers by value without going through float64,
// so large integers keep every digit.
func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	if strings.ContainsAny(string(a)+string(b), "eE") {
		af, errA := a.Float64()
		bf, errB := b.Float64()
		return errA == nil && errB == nil && af == bf
	}
	ar, okA := new(big.Rat).SetString(string(a))
	br, okB := new(big.Rat).SetString(string(b))
	return okA && okB && ar.Cmp(br) == 0
}

func jsonEqual(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !jsonEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !jsonEqual(v, w) {
				return false
			}
		}
		return true
	case json.Number:
		bv, ok := b.(json.Number)
		return ok && numbersEqual(av, bv)
	}
	return a == b
}
