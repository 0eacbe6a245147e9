// Package jira provides a minimal client for the Jira REST API, covering
// the two calls the harvesting pipeline needs: paginated issue search and
// single-issue fetch.
//
// Responses are validated at this boundary into typed partial schemas so
// downstream components never probe loosely-structured maps. All calls run
// under a shared failure policy: client-side throttling, exponential backoff
// on transient failures, and Retry-After-aware handling of rate limiting.
package jira
