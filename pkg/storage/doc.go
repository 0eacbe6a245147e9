// Package storage implements the raw record store: one immutable JSON file
// per fetched issue, namespaced per project. Artifact presence is the ground
// truth for "already fetched" during resume; the checkpoint cursor is only
// an optimization over it.
package storage
