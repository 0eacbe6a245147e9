package jira

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiraharvest/pkg/config"
	"jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/ratelimit"
	"jiraharvest/pkg/retry"
)

// mockRoundTripper intercepts HTTP requests so no real network is involved
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

// newTestClient builds a client whose transport is the given handler, with
// throttling disabled and near-instant retries.
func newTestClient(handler func(req *http.Request) (*http.Response, error)) *Client {
	cfg := config.DefaultConfig()
	client := NewClient(cfg, logger.NewTestLogger())

	client.httpClient = &http.Client{
		Transport: &mockRoundTripper{handler: handler},
		Timeout:   5 * time.Second,
	}
	client.SetLimiter(ratelimit.Unlimited{})
	client.retryCfg.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}

	return client
}

const searchPage = `{
	"startAt": 0,
	"maxResults": 2,
	"total": 5,
	"issues": [
		{"id": "1", "key": "SPARK-1", "fields": {"summary": "first", "created": "2020-01-01T00:00:00.000+0000"}},
		{"id": "2", "key": "SPARK-2", "fields": {"summary": "second", "created": "2020-01-02T00:00:00.000+0000"}}
	]
}`

func TestSearchIssues(t *testing.T) {
	var gotURL string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return newResponse(http.StatusOK, searchPage), nil
	})

	result, err := client.SearchIssues(context.Background(), "SPARK", 0, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 2, result.Returned)
	require.Len(t, result.Issues, 2)
	assert.Equal(t, "SPARK-1", result.Issues[0].Key)
	assert.Equal(t, "first", result.Issues[0].Fields.Summary)

	assert.Contains(t, gotURL, "startAt=0")
	assert.Contains(t, gotURL, "maxResults=2")
	assert.Contains(t, gotURL, "ORDER+BY+created+ASC")
}

func TestSearchIssuesDropsKeylessEntries(t *testing.T) {
	page := `{"startAt":0,"maxResults":3,"total":3,"issues":[
		{"id":"1","key":"SPARK-1","fields":{}},
		{"id":"2","fields":{}},
		{"id":"3","key":"SPARK-3","fields":{}}
	]}`
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, page), nil
	})

	result, err := client.SearchIssues(context.Background(), "SPARK", 0, 3)
	require.NoError(t, err)

	require.Len(t, result.Issues, 2)
	assert.Equal(t, "SPARK-1", result.Issues[0].Key)
	assert.Equal(t, "SPARK-3", result.Issues[1].Key)

	// The raw page length counts the dropped entry: the remote's offsets
	// include it, so pagination must too.
	assert.Equal(t, 3, result.Returned)
}

func TestSearchIssuesRetriesServerErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return newResponse(http.StatusServiceUnavailable, "try later"), nil
		}
		return newResponse(http.StatusOK, searchPage), nil
	})

	result, err := client.SearchIssues(context.Background(), "SPARK", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, result.Issues, 2)
}

func TestSearchIssuesRetriesMalformedBody(t *testing.T) {
	attempts := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 2 {
			return newResponse(http.StatusOK, "<html>proxy error</html>"), nil
		}
		return newResponse(http.StatusOK, searchPage), nil
	})

	_, err := client.SearchIssues(context.Background(), "SPARK", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestSearchIssuesExhaustsRetryBudget(t *testing.T) {
	attempts := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		attempts++
		return newResponse(http.StatusInternalServerError, ""), nil
	})

	_, err := client.SearchIssues(context.Background(), "SPARK", 0, 2)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeServer, errors.GetType(err))
	assert.Equal(t, client.retryCfg.MaxAttempts, attempts)
}

func TestSearchIssuesDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		attempts++
		return newResponse(http.StatusBadRequest, `{"errorMessages":["bad jql"]}`), nil
	})

	_, err := client.SearchIssues(context.Background(), "SPARK", 0, 2)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx responses must not be retried")
	assert.Equal(t, errors.ErrorTypeClient, errors.GetType(err))
}

func TestRateLimitCarriesRetryAfter(t *testing.T) {
	attempts := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			resp := newResponse(http.StatusTooManyRequests, "slow down")
			resp.Header.Set("Retry-After", "0")
			return resp, nil
		}
		return newResponse(http.StatusOK, searchPage), nil
	})

	// Capture the typed error the retry layer sees
	var seen error
	client.retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = err
	}

	_, err := client.SearchIssues(context.Background(), "SPARK", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, errors.ErrorTypeRateLimit, errors.GetType(seen))
}

func TestGetIssue(t *testing.T) {
	body := `{"id":"12345","key":"SPARK-1","fields":{"summary":"first","custom_field_8899":{"deep":["structure"]}}}`
	var gotURL string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return newResponse(http.StatusOK, body), nil
	})

	issue, err := client.GetIssue(context.Background(), "SPARK-1")
	require.NoError(t, err)

	assert.Equal(t, "12345", issue.ID)
	assert.Equal(t, "SPARK-1", issue.Key)
	// The stored document is the verbatim response, unknown fields included
	assert.Equal(t, body, string(issue.Raw))
	assert.Contains(t, gotURL, "/rest/api/2/issue/SPARK-1")
	assert.Contains(t, gotURL, "fields=%2Aall")
}

func TestGetIssueRejectsKeylessDocument(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, `{"id":"1","fields":{}}`), nil
	})
	client.retryCfg.MaxAttempts = 2

	_, err := client.GetIssue(context.Background(), "SPARK-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeParsing, errors.GetType(err))
}

func TestGetIssueNotFound(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusNotFound, ""), nil
	})

	_, err := client.GetIssue(context.Background(), "SPARK-999999")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.GetType(err))
}

func TestBasicAuthHeader(t *testing.T) {
	var user, pass string
	var ok bool
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		user, pass, ok = req.BasicAuth()
		return newResponse(http.StatusOK, searchPage), nil
	})
	client.SetBasicAuth("dev@example.com", "token123")

	_, err := client.SearchIssues(context.Background(), "SPARK", 0, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dev@example.com", user)
	assert.Equal(t, "token123", pass)
}

func TestAnonymousRequestsOmitAuth(t *testing.T) {
	var hasAuth bool
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		_, _, hasAuth = req.BasicAuth()
		return newResponse(http.StatusOK, searchPage), nil
	})

	_, err := client.SearchIssues(context.Background(), "SPARK", 0, 2)
	require.NoError(t, err)
	assert.False(t, hasAuth)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		wantType errors.ErrorType
	}{
		{http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
		{http.StatusInternalServerError, errors.ErrorTypeServer},
		{http.StatusBadGateway, errors.ErrorTypeServer},
		{http.StatusUnauthorized, errors.ErrorTypeAuth},
		{http.StatusForbidden, errors.ErrorTypeAuth},
		{http.StatusNotFound, errors.ErrorTypeNotFound},
		{http.StatusBadRequest, errors.ErrorTypeClient},
	}

	for _, test := range tests {
		resp := newResponse(test.status, "")
		err := classifyStatus(resp)
		require.NotNil(t, err)
		assert.Equal(t, test.wantType, err.Type, "status %d", test.status)
		resp.Body.Close()
	}

	okResp := newResponse(http.StatusOK, "")
	assert.Nil(t, classifyStatus(okResp))
	okResp.Body.Close()
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
}
