// Package checkpoint persists per-project harvesting progress.
//
// The store holds one durable file mapping project keys to checkpoints and
// is the single source of truth for where a run left off and how much more
// was requested. Every save writes to a temporary file and atomically
// renames it over the target, so readers never observe a half-written state.
package checkpoint
