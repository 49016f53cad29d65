package badger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Run and batch ids are allocated from badger sequences. The bandwidth is
// small because runs are rare events compared to embedding writes.
const sequenceBandwidth = 16

// Backend wraps a BadgerDB instance shared by all repositories.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogAdapter routes badger's internal logging through slog.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any)   { a.logger.Error(fmt.Sprintf(msg, items...)) }
func (a *slogAdapter) Warningf(msg string, items ...any) { a.logger.Warn(fmt.Sprintf(msg, items...)) }
func (a *slogAdapter) Infof(msg string, items ...any)    { a.logger.Info(fmt.Sprintf(msg, items...)) }
func (a *slogAdapter) Debugf(msg string, items ...any)   { a.logger.Debug(fmt.Sprintf(msg, items...)) }

// OpenBackend opens the BadgerDB database at dataDir, creating the directory
// when it does not exist. With inMemory set, no files are written; this is
// the mode the test constructors use.
func OpenBackend(dataDir string, inMemory bool) (*Backend, error) {
	logger := slog.Default().With("component", "storage")

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir %s: %w", dataDir, err)
		}
		opts = badger.DefaultOptions(dataDir)
	}

	// Embedding vectors are float32 payloads that compress poorly.
	opts.Compression = options.None
	opts.Logger = &slogAdapter{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{db: db, logger: logger}, nil
}

// WithTx runs fn inside a transaction. Write transactions must call
// tx.Commit themselves; the transaction is discarded on the way out either
// way, which is a no-op after a successful commit.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// GetSequence returns a named id sequence.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), sequenceBandwidth)
}

// IsClosed reports whether the database has been closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// Close closes the database. Repositories holding sequences must release
// them before the backend closes.
func (b *Backend) Close() error {
	return b.db.Close()
}
