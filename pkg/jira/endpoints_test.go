package jira

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildJQL(t *testing.T) {
	assert.Equal(t, "project = SPARK ORDER BY created ASC", BuildJQL("SPARK"))
}

func TestSearchURL(t *testing.T) {
	u, err := url.Parse(SearchURL("https://issues.apache.org/jira", "SPARK", 150, 50))
	require.NoError(t, err)

	assert.Equal(t, "/jira/rest/api/2/search", u.Path)

	q := u.Query()
	assert.Equal(t, "project = SPARK ORDER BY created ASC", q.Get("jql"))
	assert.Equal(t, "150", q.Get("startAt"))
	assert.Equal(t, "50", q.Get("maxResults"))
}

func TestSearchURLTrimsTrailingSlash(t *testing.T) {
	u := SearchURL("https://example.com/jira/", "HIVE", 0, 10)
	assert.NotContains(t, u, "jira//rest")
}

func TestSearchURLCapsPageSize(t *testing.T) {
	u, err := url.Parse(SearchURL("https://example.com", "SPARK", 0, 5000))
	require.NoError(t, err)
	assert.Equal(t, "1000", u.Query().Get("maxResults"))
}

func TestIssueURL(t *testing.T) {
	u, err := url.Parse(IssueURL("https://issues.apache.org/jira", "SPARK-123", "*all"))
	require.NoError(t, err)

	assert.Equal(t, "/jira/rest/api/2/issue/SPARK-123", u.Path)
	assert.Equal(t, "*all", u.Query().Get("fields"))
}

func TestIssueURLWithoutFields(t *testing.T) {
	u := IssueURL("https://example.com", "SPARK-1", "")
	assert.Equal(t, "https://example.com/rest/api/2/issue/SPARK-1", u)
}

func TestIsValidProjectKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"SPARK", true},
		{"HADOOP", true},
		{"S3", true},
		{"A", true},
		{"", false},
		{"spark", false},
		{"1SPARK", false},
		{"SPARK-1", false},
		{"SPA RK", false},
		{"ABCDEFGHIJKLMNOPQRSTUVWXYZABCDEFG", false}, // over 32 chars
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			assert.Equal(t, test.valid, IsValidProjectKey(test.key))
		})
	}
}

func TestSanitizeProjectKey(t *testing.T) {
	assert.Equal(t, "SPARK", SanitizeProjectKey("  spark "))
	assert.Equal(t, "HIVE", SanitizeProjectKey("hive"))
}
