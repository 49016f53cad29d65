package badger

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

// BatchRepository implements storage.BatchRepository for BadgerDB.
type BatchRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.BatchRepository = (*BatchRepository)(nil)

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(backend *Backend) (*BatchRepository, error) {
	idSeq, err := backend.GetSequence(batchIDSeq)
	if err != nil {
		return nil, err
	}

	return &BatchRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *BatchRepository) Close() error {
	return r.idSeq.Release()
}

// CreateBatch persists a new batch. A negative Index asks for the next
// available zero-based index within the run; the index scan and the write
// share one transaction so indices stay unique and increasing.
func (r *BatchRepository) CreateBatch(ctx context.Context, batch *core.Batch) (*core.Batch, error) {
	if batch.Id == 0 {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return nil, err
		}
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return nil, err
			}
		}
		batch.Id = core.ID(nextID)
	}
	if batch.SubmittedAt.IsZero() {
		batch.SubmittedAt = time.Now().UTC()
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if batch.Index < 0 {
			next, err := nextBatchIndex(tx, batch.RunId)
			if err != nil {
				return err
			}
			batch.Index = next
		}

		if err := writeBatch(tx, batch); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return batch, nil
}

// UpdateBatch updates an existing batch.
func (r *BatchRepository) UpdateBatch(ctx context.Context, batch *core.Batch) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		old, err := readBatch(tx, batch.Id)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		if err := writeBatch(tx, batch); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetBatch retrieves a batch by ID.
func (r *BatchRepository) GetBatch(ctx context.Context, id core.ID) (*core.Batch, error) {
	var batch *core.Batch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		batch, err = readBatch(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, storage.ErrNotFound
	}
	return batch, nil
}

// GetBatchesByRun retrieves all batches for a run, ordered by batch index.
func (r *BatchRepository) GetBatchesByRun(ctx context.Context, runId core.ID) ([]*core.Batch, error) {
	var batches []*core.Batch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeBatchRunPrefix(runId)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			batch, err := readBatch(tx, id)
			if err != nil {
				return err
			}
			if batch != nil {
				batches = append(batches, batch)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// writeBatch stores the batch record and its (run, index) index entry.
func writeBatch(tx *badger.Txn, batch *core.Batch) error {
	value, err := storage.MarshalBatch(batch)
	if err != nil {
		return err
	}
	if err := tx.Set(makeBatchKey(batch.Id), value); err != nil {
		return err
	}
	return tx.Set(makeBatchRunKey(batch.RunId, batch.Index), storage.MarshalID(batch.Id))
}

// readBatch reads a batch record, returning nil when absent.
func readBatch(tx *badger.Txn, id core.ID) (*core.Batch, error) {
	item, err := tx.Get(makeBatchKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var batch *core.Batch
	err = item.Value(func(val []byte) error {
		var err error
		batch, err = storage.UnmarshalBatch(val)
		return err
	})
	return batch, err
}

// nextBatchIndex returns one past the highest index assigned within a run.
// Index keys are fixed-width BigEndian, so the last key under the run's
// prefix carries the highest index.
func nextBatchIndex(tx *badger.Txn, runId core.ID) (int, error) {
	prefix := makeBatchRunPrefix(runId)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	highest := -1
	for iter.Rewind(); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		idx := int(binary.BigEndian.Uint64(key[len(prefix):]))
		if idx > highest {
			highest = idx
		}
	}
	return highest + 1, nil
}
