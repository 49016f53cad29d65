package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

// InputMetadataRepository implements storage.InputMetadataRepository for BadgerDB.
type InputMetadataRepository struct {
	backend *Backend
}

var _ storage.InputMetadataRepository = (*InputMetadataRepository)(nil)

// NewInputMetadataRepository creates a new InputMetadataRepository.
func NewInputMetadataRepository(backend *Backend) *InputMetadataRepository {
	return &InputMetadataRepository{backend: backend}
}

// Close is a no-op; the repository holds no sequence.
func (r *InputMetadataRepository) Close() error {
	return nil
}

// AddInputMetadata persists metadata rows. Row IDs are derived from
// (run, inputID) content, so re-adding the same chunk overwrites the
// existing row instead of duplicating it.
func (r *InputMetadataRepository) AddInputMetadata(ctx context.Context, rows ...*core.InputMetadata) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, row := range rows {
			if row.Id == 0 {
				row.Id = metadataID(row.RunId, row.InputId)
			}

			value, err := storage.MarshalInputMetadata(row)
			if err != nil {
				return err
			}
			if err := tx.Set(makeMetadataKey(row.Id), value); err != nil {
				return err
			}
			if err := tx.Set(makeMetadataInputKey(row.RunId, row.InputId), storage.MarshalID(row.Id)); err != nil {
				return err
			}
			if err := tx.Set(makeMetadataBatchKey(row.BatchId, row.Id), storage.MarshalID(row.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FindByInputId retrieves the metadata row for a provider input id within a run.
func (r *InputMetadataRepository) FindByInputId(ctx context.Context, runId core.ID, inputId string) (*core.InputMetadata, error) {
	var meta *core.InputMetadata
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeMetadataInputKey(runId, inputId))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		var id core.ID
		if err := item.Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return err
		}

		meta, err = readMetadata(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, storage.ErrNotFound
	}
	return meta, nil
}

// GetByBatch retrieves all metadata rows currently assigned to a batch.
func (r *InputMetadataRepository) GetByBatch(ctx context.Context, batchId core.ID) ([]*core.InputMetadata, error) {
	var rows []*core.InputMetadata
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeMetadataBatchPrefix(batchId)
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

			meta, err := readMetadata(tx, id)
			if err != nil {
				return err
			}
			if meta != nil {
				rows = append(rows, meta)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByDocument counts the metadata rows a run holds for one document.
// Input IDs start with "collection:documentID:", so the (run, inputID)
// index serves this as a prefix scan.
func (r *InputMetadataRepository) CountByDocument(ctx context.Context, runId core.ID, collection, documentId string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeMetadataDocumentPrefix(runId, collection, documentId)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ReassignBatch re-points metadata rows from one batch to another. Rows a
// resubmission has already re-pointed at a different batch keep their new
// assignment; only their stale index entries under the old batch are cleared.
func (r *InputMetadataRepository) ReassignBatch(ctx context.Context, runId, oldBatchId, newBatchId core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeMetadataBatchPrefix(oldBatchId)
		iter := tx.NewIterator(opts)

		var metaIds []core.ID
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			metaIds = append(metaIds, id)
		}
		iter.Close()

		for _, id := range metaIds {
			if err := tx.Delete(makeMetadataBatchKey(oldBatchId, id)); err != nil {
				return err
			}

			meta, err := readMetadata(tx, id)
			if err != nil {
				return err
			}
			if meta == nil {
				continue
			}
			if meta.RunId != runId {
				return fmt.Errorf("metadata %d belongs to run %d, not %d", id, meta.RunId, runId)
			}

			if meta.BatchId == oldBatchId {
				meta.BatchId = newBatchId
				value, err := storage.MarshalInputMetadata(meta)
				if err != nil {
					return err
				}
				if err := tx.Set(makeMetadataKey(id), value); err != nil {
					return err
				}
			}
			if err := tx.Set(makeMetadataBatchKey(meta.BatchId, id), storage.MarshalID(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteByRun removes all metadata rows for a run, including index entries.
func (r *InputMetadataRepository) DeleteByRun(ctx context.Context, runId core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeMetadataRunPrefix(runId)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)

		type entry struct {
			inputKey []byte
			id       core.ID
		}
		var entries []entry
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var id core.ID
			err := item.Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			entries = append(entries, entry{inputKey: item.KeyCopy(nil), id: id})
		}
		iter.Close()

		for _, e := range entries {
			meta, err := readMetadata(tx, e.id)
			if err != nil {
				return err
			}
			if meta != nil {
				if err := tx.Delete(makeMetadataBatchKey(meta.BatchId, e.id)); err != nil {
					return err
				}
			}
			if err := tx.Delete(makeMetadataKey(e.id)); err != nil {
				return err
			}
			if err := tx.Delete(e.inputKey); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readMetadata reads a metadata record, returning nil when absent.
func readMetadata(tx *badger.Txn, id core.ID) (*core.InputMetadata, error) {
	item, err := tx.Get(makeMetadataKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var meta *core.InputMetadata
	err = item.Value(func(val []byte) error {
		var err error
		meta, err = storage.UnmarshalInputMetadata(val)
		return err
	})
	return meta, err
}

// metadataID derives a deterministic record ID from (run, inputID).
func metadataID(runId core.ID, inputId string) core.ID {
	return core.IDFromContent(fmt.Sprintf("%d:%s", runId, inputId))
}
