// Package retry implements the shared failure-handling policy for calls to
// the remote Jira API.
//
// Transient failures (network errors, 5xx responses, unparseable bodies) are
// retried with exponential backoff, base 1s doubling each attempt and capped
// at 60s, for up to 5 attempts. Rate-limited calls (429) get a larger budget
// of 8 attempts and honor a server-provided Retry-After hint when one is
// present. Non-retryable errors (other 4xx) surface immediately.
//
// Usage:
//
//	err := retry.Do(func() error {
//	    return client.Ping()
//	}, retry.DefaultConfig())
package retry
