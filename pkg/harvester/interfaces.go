package harvester

import (
	"context"

	"jiraharvest/pkg/jira"
)

// IssueClient defines the remote API operations the harvester drives
type IssueClient interface {
	SearchIssues(ctx context.Context, project string, startAt, maxResults int) (*jira.SearchResult, error)
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
}

// RecordStore defines the raw artifact operations the harvester needs
type RecordStore interface {
	Exists(project, key string) bool
	Put(project, key string, doc []byte) error
}
