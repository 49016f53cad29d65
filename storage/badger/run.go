package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) (*RunRepository, error) {
	idSeq, err := backend.GetSequence(runIDSeq)
	if err != nil {
		return nil, err
	}

	return &RunRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *RunRepository) Close() error {
	return r.idSeq.Release()
}

// CreateRun persists a new run after checking the single-flight invariant.
// The active-run scan and the write share one transaction, so BadgerDB's
// conflict detection refuses simultaneous creates for the same pool.
func (r *RunRepository) CreateRun(ctx context.Context, run *core.Run) (*core.Run, error) {
	if run.Id == 0 {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return nil, err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return nil, err
			}
		}
		run.Id = core.ID(nextID)
	}
	if run.SubmittedAt.IsZero() {
		run.SubmittedAt = time.Now().UTC()
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		active, err := findActiveRun(tx, run.Pool)
		if err != nil {
			return err
		}
		if active != nil {
			return storage.ErrActiveRunExists
		}

		if err := writeRun(tx, run); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// UpdateRun updates an existing run and maintains its (pool, status) index.
func (r *RunRepository) UpdateRun(ctx context.Context, run *core.Run) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		old, err := readRun(tx, run.Id)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		if old.Status != run.Status {
			if err := tx.Delete(makeRunPoolStatusKey(old.Pool, old.Status, old.Id)); err != nil {
				return err
			}
		}
		if err := writeRun(tx, run); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves a run by ID.
func (r *RunRepository) GetRun(ctx context.Context, id core.ID) (*core.Run, error) {
	var run *core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		run, err = readRun(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, storage.ErrNotFound
	}
	return run, nil
}

// FindActiveRun returns the queued or running run for a pool, if any.
func (r *RunRepository) FindActiveRun(ctx context.Context, pool string) (*core.Run, error) {
	var run *core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		run, err = findActiveRun(tx, pool)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, storage.ErrNotFound
	}
	return run, nil
}

// ListRuns retrieves all runs for a pool, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, pool string) ([]*core.Run, error) {
	var runs []*core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		statuses := []core.RunStatus{
			core.RunStatusQueued, core.RunStatusRunning,
			core.RunStatusSucceeded, core.RunStatusFailed, core.RunStatusCanceled,
		}
		for _, status := range statuses {
			found, err := runsByPoolStatus(tx, pool, status)
			if err != nil {
				return err
			}
			runs = append(runs, found...)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(runs, func(a, b *core.Run) int {
		if a.Id > b.Id {
			return -1
		}
		if a.Id < b.Id {
			return 1
		}
		return 0
	})
	return runs, nil
}

// writeRun stores the run record and its (pool, status) index entry.
func writeRun(tx *badger.Txn, run *core.Run) error {
	value, err := storage.MarshalRun(run)
	if err != nil {
		return err
	}
	if err := tx.Set(makeRunKey(run.Id), value); err != nil {
		return err
	}
	return tx.Set(makeRunPoolStatusKey(run.Pool, run.Status, run.Id), storage.MarshalID(run.Id))
}

// readRun reads a run record, returning nil when absent.
func readRun(tx *badger.Txn, id core.ID) (*core.Run, error) {
	item, err := tx.Get(makeRunKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var run *core.Run
	err = item.Value(func(val []byte) error {
		var err error
		run, err = storage.UnmarshalRun(val)
		return err
	})
	return run, err
}

// findActiveRun scans the queued and running index slots for a pool.
func findActiveRun(tx *badger.Txn, pool string) (*core.Run, error) {
	for _, status := range []core.RunStatus{core.RunStatusQueued, core.RunStatusRunning} {
		found, err := runsByPoolStatus(tx, pool, status)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found[0], nil
		}
	}
	return nil, nil
}

// runsByPoolStatus loads all runs in one (pool, status) index slot.
func runsByPoolStatus(tx *badger.Txn, pool string, status core.RunStatus) ([]*core.Run, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeRunPoolStatusPrefix(pool, status)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var runs []*core.Run
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id core.ID
		err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return nil, err
		}

		run, err := readRun(tx, id)
		if err != nil {
			return nil, err
		}
		if run != nil {
			runs = append(runs, run)
		}
	}
	return runs, nil
}
