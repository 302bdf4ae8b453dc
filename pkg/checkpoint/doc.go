// Package checkpoint persists execution state so interrupted runs can
// resume from the last completed node.
//
// The Checkpointer interface has three implementations: an in-memory
// store for tests and ephemeral runs, a SQLite store for single-node
// durability, and a Redis store for shared deployments.
package checkpoint
