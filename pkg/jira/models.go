package jira

import "encoding/json"

// SearchResult is the validated shape of the search endpoint response.
// Only the fields the pipeline relies on are typed; absent fields take
// their zero values.
type SearchResult struct {
	StartAt    int            `json:"startAt"`
	MaxResults int            `json:"maxResults"`
	Total      int            `json:"total"`
	Issues     []IssueSummary `json:"issues"`

	// Returned counts the entries the remote actually served for this page,
	// before boundary validation. Entries dropped during validation still
	// occupy offsets in the remote sequence, so pagination and exhaustion
	// decisions must key off this count, not len(Issues).
	Returned int `json:"-"`
}

// IssueSummary is the lightweight per-issue entry returned by the search
// endpoint, carrying at least the issue's identity key.
type IssueSummary struct {
	ID     string        `json:"id"`
	Key    string        `json:"key"`
	Fields SummaryFields `json:"fields"`
}

// SummaryFields holds the subset of summary fields the pipeline reads
type SummaryFields struct {
	Summary string `json:"summary"`
	Created string `json:"created"`
}

// Issue is a full issue document. Raw holds the verbatim response body as
// returned by the remote service; ID and Key are validated at the client
// boundary so downstream code never probes loose maps.
type Issue struct {
	ID  string
	Key string
	Raw json.RawMessage
}

// issueEnvelope is the minimal schema a full issue document must satisfy
type issueEnvelope struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}
