// Package badger provides a BadgerDB-backed metadata index. It is the
// durable single-node option: records survive process restarts without an
// external database. For multi-replica deployments use the postgres index,
// which all replicas can share.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/blinkhost/blink/internal/logger"
	"github.com/blinkhost/blink/pkg/index"
)

const recordPrefix = "record/"

// Config holds configuration for the Badger index.
type Config struct {
	// Path is the directory for the Badger value log and LSM tree.
	Path string

	// SyncWrites forces fsync on every write. Slower but a Put that
	// returned success survives a crash. Default: true.
	SyncWrites bool
}

// DefaultConfig returns the default configuration for the given path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// Index is a Badger-backed implementation of index.Index.
type Index struct {
	db  *badgerdb.DB
	log *slog.Logger
}

// New opens (or creates) a Badger index at cfg.Path.
func New(cfg Config) (*Index, error) {
	if cfg.Path == "" {
		return nil, errors.New("badger path is required")
	}

	log := logger.With("component", "badger_index")

	opts := badgerdb.DefaultOptions(cfg.Path)
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %v", index.ErrIndexUnavailable, cfg.Path, err)
	}

	log.Info("Badger index opened", "path", cfg.Path, "sync_writes", cfg.SyncWrites)

	return &Index{db: db, log: log}, nil
}

func recordKey(token string) []byte {
	return []byte(recordPrefix + token)
}

// storedRecord is the on-disk encoding. The token is the key, so only the
// bindings are stored in the value.
type storedRecord struct {
	BlobRef     string `json:"blob_ref"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
	ContentType string `json:"content_type,omitempty"`
}

// Put stores the record in a single Badger transaction.
func (i *Index) Put(ctx context.Context, rec index.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	val, err := json.Marshal(storedRecord{
		BlobRef:     rec.BlobRef,
		ExpiresAtMs: rec.ExpiresAtMs,
		ContentType: rec.ContentType,
	})
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", index.ErrIndexIO, err)
	}

	err = i.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(recordKey(rec.Token), val)
	})
	if err != nil {
		return fmt.Errorf("%w: put record: %v", index.ErrIndexIO, err)
	}

	return nil
}

// Get returns the record for token, or (nil, nil) when absent.
func (i *Index) Get(ctx context.Context, token string) (*index.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *index.Record

	err := i.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(recordKey(token))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(val, &stored); err != nil {
				return err
			}
			rec = &index.Record{
				Token:       token,
				BlobRef:     stored.BlobRef,
				ExpiresAtMs: stored.ExpiresAtMs,
				ContentType: stored.ContentType,
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get record: %v", index.ErrIndexIO, err)
	}

	return rec, nil
}

// HealthCheck reports whether the database is open.
func (i *Index) HealthCheck(ctx context.Context) error {
	if i.db.IsClosed() {
		return index.ErrIndexClosed
	}
	return nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	if i.db.IsClosed() {
		return nil
	}
	i.log.Info("closing Badger index")
	return i.db.Close()
}

var _ index.Index = (*Index)(nil)
