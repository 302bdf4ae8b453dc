// Package registry provides the in-process registries that give agents
// knowledge of their own graphs and runs.
//
// # Registries
//
//   - GraphRegistry: registered graph manifests, keyed by graph id, with
//     automatic version capture on structural change
//   - VersionStore: per-graph version history with structural diffing
//   - ExecutionRegistry: execution history keyed by thread id, with
//     status tracking and aggregate statistics
//   - StateRegistry: state snapshots per thread, with recursive JSON
//     diffing between snapshots
//
// All registries are safe for concurrent use and return copies; shared
// instances can be cloned cheaply since they share the underlying store.
//
// # Manifest Loading
//
// Loader reads graph manifests from a directory of YAML files and can
// watch the directory with fsnotify, re-registering manifests as files
// change.
package registry
