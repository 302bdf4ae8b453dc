// Package graph defines the graph model for flowgraph agent workflows.
//
// # Overview
//
// A workflow is a directed graph of computation nodes. The package provides:
//
//   - Manifest: the complete declarative description of a graph (nodes,
//     edges, entry point, tags)
//   - Analysis: structural validation with cycle detection and topological
//     execution levels
//   - ContentHash/NodeHash: deterministic structural fingerprints used by
//     the version registry to detect changes
//   - DOT export/import for visualization and interchange
//   - Condition evaluation for conditional edges
//
// # Edges
//
// Edges come in three flavors:
//
//   - plain: always followed
//   - conditional: followed when the condition expression evaluates to true
//     against the current state; conditional edges may form loops and are
//     excluded from level assignment
//   - parallel: fan-out edges whose targets may run concurrently
//
// # Error Classification
//
// Errors are classified for retry and recovery logic:
//
//   - Transient: temporary failures that may succeed on retry
//   - Throttled: rate limiting that requires backoff
//   - Conflict: concurrent modification conflicts
//   - Permanent: non-recoverable errors (validation failures, missing nodes)
//
// Use IsTransient/IsThrottled/IsConflict/IsPermanent to inspect errors.
package graph
