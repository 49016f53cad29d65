// Package bulk implements bulk embedding orchestration for knowledge pools.
//
// A run walks a pool's source collections, chunks every eligible document,
// streams the chunks through the pool's provider adapter, and commits the
// returned vectors as the pool's embedding rows. Runs advance through small
// at-least-once tasks (prepare, then poll-or-complete) rather than blocking
// on the provider, so a run survives process restarts and duplicate task
// delivery. Failed batches can be resubmitted through the RetryCoordinator
// without re-running the whole pool.
package bulk
