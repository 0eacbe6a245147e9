package jira

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// SearchEndpoint is the paginated issue search endpoint
	SearchEndpoint = "/rest/api/2/search"

	// IssueEndpoint is the single-issue endpoint pattern
	IssueEndpoint = "/rest/api/2/issue/"

	// MaxPageSize is the largest page the search endpoint will serve
	MaxPageSize = 1000
)

// BuildJQL returns the search filter scoping results to one project in
// ascending creation-time order.
func BuildJQL(project string) string {
	return fmt.Sprintf("project = %s ORDER BY created ASC", project)
}

// SearchURL constructs the URL for one page of the project's issue sequence
func SearchURL(baseURL, project string, startAt, maxResults int) string {
	if maxResults > MaxPageSize {
		maxResults = MaxPageSize
	}

	params := url.Values{}
	params.Set("jql", BuildJQL(project))
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))

	return strings.TrimRight(baseURL, "/") + SearchEndpoint + "?" + params.Encode()
}

// IssueURL constructs the URL for fetching one full issue document
func IssueURL(baseURL, key, fields string) string {
	params := url.Values{}
	if fields != "" {
		params.Set("fields", fields)
	}

	u := strings.TrimRight(baseURL, "/") + IssueEndpoint + url.PathEscape(key)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// IsValidProjectKey checks if a project key is plausible: uppercase letters
// and digits, starting with a letter.
func IsValidProjectKey(key string) bool {
	if key == "" || len(key) > 32 {
		return false
	}
	if key[0] < 'A' || key[0] > 'Z' {
		return false
	}
	for _, ch := range key {
		if !((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
			return false
		}
	}
	return true
}

// SanitizeProjectKey normalizes user input into a project key
func SanitizeProjectKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
