package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"jiraharvest/pkg/config"
	"jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/ratelimit"
	"jiraharvest/pkg/retry"
)

// maxErrorBodyBytes bounds how much of an error response body is logged
const maxErrorBodyBytes = 400

// Client issues search and single-issue calls against a remote Jira
// instance, owning retry, backoff, and rate-limit handling for transient
// failures.
type Client struct {
	httpClient *http.Client
	baseURL    string
	fields     string
	userAgent  string
	username   string
	apiToken   string
	limiter    ratelimit.Limiter
	retryCfg   *retry.Config
	logger     logger.Logger
}

// NewClient creates a client from the given configuration
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Jira.RequestTimeout,
		},
		baseURL:   cfg.Jira.BaseURL,
		fields:    cfg.Jira.Fields,
		userAgent: cfg.Jira.UserAgent,
		limiter:   ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute),
		retryCfg: &retry.Config{
			MaxAttempts:       cfg.Fetch.MaxRetries,
			RateLimitAttempts: cfg.Fetch.RateLimitRetries,
			Backoff:           retry.DefaultExponentialBackoff(),
			RetryIf:           retry.DefaultRetryIf,
			Context:           context.Background(),
			Logger:            log,
		},
		logger: log,
	}
}

// SetBasicAuth configures credentials sent with every request. Anonymous
// access works against public instances; Jira Cloud wants email + API token.
func (c *Client) SetBasicAuth(username, apiToken string) {
	c.username = username
	c.apiToken = apiToken
}

// SetLimiter replaces the client-side throttle
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	if l != nil {
		c.limiter = l
	}
}

// SearchIssues returns one page of the project's issue sequence, ordered by
// creation time ascending, starting at startAt. The Issues slice is empty
// when startAt is at or past the end of the sequence.
func (c *Client) SearchIssues(ctx context.Context, project string, startAt, maxResults int) (*SearchResult, error) {
	url := SearchURL(c.baseURL, project, startAt, maxResults)

	var result SearchResult
	err := c.getJSON(ctx, url, func(body []byte) error {
		result = SearchResult{}
		if err := json.Unmarshal(body, &result); err != nil {
			return &errors.Error{
				Type:    errors.ErrorTypeParsing,
				Message: fmt.Sprintf("failed to parse search response: %v", err),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Drop entries with no identity key at the boundary so downstream code
	// never sees them. The remote still counts them in its offsets, so the
	// raw page length is preserved in Returned for the caller's pagination.
	result.Returned = len(result.Issues)
	valid := result.Issues[:0]
	for _, summary := range result.Issues {
		if summary.Key == "" {
			c.logger.WarnWithFields("search entry without issue key skipped", map[string]interface{}{
				"project":  project,
				"start_at": startAt,
			})
			continue
		}
		valid = append(valid, summary)
	}
	result.Issues = valid

	return &result, nil
}

// GetIssue fetches the complete document for one issue key. The returned
// Issue carries the verbatim response body alongside the validated identity.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	url := IssueURL(c.baseURL, key, c.fields)

	var issue Issue
	err := c.getJSON(ctx, url, func(body []byte) error {
		var envelope issueEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return &errors.Error{
				Type:    errors.ErrorTypeParsing,
				Message: fmt.Sprintf("failed to parse issue %s: %v", key, err),
			}
		}
		if envelope.Key == "" {
			return &errors.Error{
				Type:    errors.ErrorTypeParsing,
				Message: fmt.Sprintf("issue document for %s has no key", key),
			}
		}
		raw := make(json.RawMessage, len(body))
		copy(raw, body)
		issue = Issue{ID: envelope.ID, Key: envelope.Key, Raw: raw}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &issue, nil
}

// getJSON performs a GET with the shared failure policy: rate-limit wait,
// retry with backoff on transient errors, Retry-After honored on 429, and
// bounded retries when the body cannot be decoded.
func (c *Client) getJSON(ctx context.Context, url string, decode func([]byte) error) error {
	return retry.Do(func() error {
		body, err := c.getOnce(ctx, url)
		if err != nil {
			return err
		}
		return decode(body)
	}, c.retryCfg.WithContext(ctx))
}

// getOnce performs a single GET attempt, classifying failures into the typed
// error taxonomy.
func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	c.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.username != "" && c.apiToken != "" {
		req.SetBasicAuth(c.username, c.apiToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if err := classifyStatus(resp); err != nil {
		// Drain up to the log limit for error diagnostics
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if len(snippet) > 0 {
			err.Message = fmt.Sprintf("%s: %s", err.Message, string(snippet))
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
		}
	}

	return body, nil
}

// classifyStatus maps an HTTP response to the typed error taxonomy, nil for
// success.
func classifyStatus(resp *http.Response) *errors.Error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errors.Error{
			Type:       errors.ErrorTypeRateLimit,
			Code:       resp.StatusCode,
			Message:    "too many requests",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return &errors.Error{
			Type:    errors.ErrorTypeServer,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("server returned status %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("authentication rejected with status %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusNotFound:
		return &errors.Error{
			Type:    errors.ErrorTypeNotFound,
			Code:    resp.StatusCode,
			Message: "resource not found",
		}
	default:
		return &errors.Error{
			Type:    errors.ErrorTypeClient,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("request rejected with status %d", resp.StatusCode),
		}
	}
}

// parseRetryAfter interprets a Retry-After header value as whole seconds,
// zero when absent or non-numeric.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
