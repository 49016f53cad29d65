package bulk

import "errors"

var (
	// ErrNoCollections is returned when a pool registers no source collections.
	ErrNoCollections = errors.New("pool has no collections")

	// ErrChunkerRequired is returned when a pool has no chunking function.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrAdapterRequired is returned when a pool has no provider adapter.
	ErrAdapterRequired = errors.New("provider adapter required")

	// ErrUnknownPool is returned when an operation names an unregistered pool.
	ErrUnknownPool = errors.New("unknown pool")

	// ErrRunRepositoryRequired is returned when a run repository is not provided.
	ErrRunRepositoryRequired = errors.New("run repository required")

	// ErrQueueRequired is returned when a task queue is not provided.
	ErrQueueRequired = errors.New("task queue required")
)
