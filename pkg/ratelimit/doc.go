// Package ratelimit provides client-side throttling for requests to the
// remote Jira API.
//
// The remote service openly rate-limits, so the client spaces its own
// requests out rather than relying solely on 429 backoff. The token bucket
// limiter refills to full capacity after each refill period:
//
//	// 60 requests per minute
//	limiter := ratelimit.NewTokenBucket(60, time.Minute)
//	limiter.Wait()
//	// proceed with request
package ratelimit
