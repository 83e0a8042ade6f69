package badger

import (
	"cmp"
	"context"
	"iter"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// Collection implements storage.Collection for BadgerDB.
// Similarity is the dot product, so stored and query vectors are expected
// to be unit length.
type Collection struct {
	backend *Backend
}

var (
	_ storage.Collection = (*Collection)(nil)
	_ storage.Scanner    = (*Collection)(nil)
)

// NewCollection creates a chunk collection on an open backend.
func NewCollection(backend *Backend) (*Collection, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &Collection{backend: backend}, nil
}

// Close is a no-op; the backend is owned and closed by the caller.
func (c *Collection) Close() error {
	return nil
}

// BatchUpsert writes all records in a single transaction.
func (c *Collection) BatchUpsert(ctx context.Context, records []core.ChunkRecord) error {
	if len(records) == 0 {
		return storage.ErrEmptyBatch
	}
	for i := range records {
		if err := core.ValidateChunkRecord(&records[i]); err != nil {
			return err
		}
	}

	return c.backend.WithTx(func(tx *badger.Txn) error {
		for i := range records {
			key := makeChunkKey(records[i].ID)
			if err := tx.Set(key, storage.MarshalChunkRecord(&records[i])); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Query scans every stored chunk and keeps the topK best by dot product.
func (c *Collection) Query(ctx context.Context, vector []float32, topK int) ([]*core.SearchResult, error) {
	if topK <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.SearchResult

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record *core.ChunkRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalChunkRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(record.Vector) == 0 {
				continue
			}

			results = append(results, &core.SearchResult{
				Record: record,
				Score:  dotProduct(vector, record.Vector),
			})

			// Keep memory proportional to topK rather than collection size.
			if len(results) >= 2*topK {
				results = best(results, topK)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return best(results, topK), nil
}

// Count returns the number of stored chunks.
func (c *Collection) Count(ctx context.Context) (int, error) {
	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkRecordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Scan yields every stored chunk in key order from a read snapshot.
// Stopping early ends the snapshot.
func (c *Collection) Scan(ctx context.Context) iter.Seq2[core.ChunkRecord, error] {
	return func(yield func(core.ChunkRecord, error) bool) {
		stopped := false
		err := c.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(chunkRecordPrefix)
			it := tx.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				var record *core.ChunkRecord
				err := it.Item().Value(func(val []byte) error {
					var err error
					record, err = storage.UnmarshalChunkRecord(val)
					return err
				})
				if err != nil {
					return err
				}
				if !yield(*record, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		}, false)
		if err != nil && !stopped {
			yield(core.ChunkRecord{}, err)
		}
	}
}

// best sorts by score descending and truncates to limit.
func best(results []*core.SearchResult, limit int) []*core.SearchResult {
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > limit {
		clear(results[limit:])
		results = results[:limit]
	}
	return results
}
