// Package harvester implements the resumable fetch pipeline: a per-project
// orchestration loop over the remote search and fetch endpoints, with the
// checkpoint persisted after every stored record so a crash can lose at most
// one record's worth of work, and a sequential multi-project runner on top.
package harvester
