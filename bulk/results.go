package bulk

import "github.com/poiesic/vectorpool/core"

// StartResult is the outcome of a run start request. When Conflict is set,
// RunId and Status describe the already-active run that blocked the start.
type StartResult struct {
	RunId    core.ID
	Status   core.RunStatus
	Conflict bool
	Message  string
}

// RetryResult is the outcome of a batch retry request. On success (and on
// the idempotent replay of a previous retry) NewBatchId names the
// replacement batch. Conflict is set when the batch's run is still active.
type RetryResult struct {
	RunId      core.ID
	BatchId    core.ID
	NewBatchId core.ID
	Conflict   bool
	NotFound   bool
	Message    string
}
