package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "pending_writes"

// Store keeps buffered document writes in a BoltDB bucket ordered by
// priority, then enqueue time. A second bucket indexes the pending write of
// each document so repeated writes to one document collapse into one.
type Store struct {
	db     *bolt.DB
	queue  []byte
	byDocs []byte
}

// Open initializes the BoltDB file and ensures both buckets exist.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = defaultBucket
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		queue:  []byte(bucket),
		byDocs: []byte(bucket + "_index"),
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{s.queue, s.byDocs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Enqueue stores a write, merging it with a pending write to the same
// document:
//
//	create + update -> create carrying the new data
//	create + delete -> nothing (the document never reached the store)
//	update + update -> the later update
//	update + delete -> delete
//
// A merged write keeps the queue position of the pending one.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize()

	return s.db.Update(func(tx *bolt.Tx) error {
		queue, index := tx.Bucket(s.queue), tx.Bucket(s.byDocs)

		docKey := item.documentKey()
		if docKey != nil {
			if pendingKey := index.Get(docKey); pendingKey != nil {
				var pending Item
				if raw := queue.Get(pendingKey); raw != nil && json.Unmarshal(raw, &pending) == nil {
					merged, keep := merge(pending, item)
					if !keep {
						if err := queue.Delete(pendingKey); err != nil {
							return err
						}
						return index.Delete(docKey)
					}
					if merged != nil {
						return put(queue, pendingKey, *merged)
					}
				}
			}
		}

		key := []byte(buildKey(item))
		if err := put(queue, key, item); err != nil {
			return err
		}
		if docKey != nil {
			return index.Put(docKey, key)
		}
		return nil
	})
}

// merge folds next into pending. It returns the replacement for pending,
// or keep=false when both writes cancel out. A nil replacement with
// keep=true means next has to be queued on its own.
func merge(pending, next Item) (*Item, bool) {
	switch {
	case pending.Operation == OperationCreate && next.Operation == OperationDelete:
		return nil, false
	case pending.Operation == OperationCreate && next.Operation == OperationUpdate:
		pending.Data = next.Data
		return &pending, true
	case pending.Operation == OperationUpdate && (next.Operation == OperationUpdate || next.Operation == OperationDelete):
		next.Timestamp = pending.Timestamp
		next.Retries = pending.Retries
		return &next, true
	default:
		return nil, true
	}
}

func put(queue *bolt.Bucket, key []byte, item Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return queue.Put(key, payload)
}

// GetBatch returns up to limit items without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.queue).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.bucketKey = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes an item returned by GetBatch.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		key := item.bucketKey
		if len(key) == 0 {
			key = tx.Bucket(s.byDocs).Get(item.documentKey())
		}
		return s.remove(tx, key, item.documentKey())
	})
}

func (s *Store) remove(tx *bolt.Tx, key, docKey []byte) error {
	if len(key) == 0 {
		return nil
	}
	if err := tx.Bucket(s.queue).Delete(key); err != nil {
		return err
	}
	index := tx.Bucket(s.byDocs)
	if docKey != nil && string(index.Get(docKey)) == string(key) {
		return index.Delete(docKey)
	}
	return nil
}

// Requeue moves an item to the back of its priority band.
func (s *Store) Requeue(item Item) error {
	if err := s.Remove(item); err != nil {
		return err
	}
	item.bucketKey = nil
	item.Timestamp = time.Now()
	return s.Enqueue(item)
}

// Size returns the number of buffered items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.queue).Stats().KeyN
		return nil
	})
	return count, err
}

// CountByEntity reports how many writes are pending per entity.
func (s *Store) CountByEntity() (map[string]int, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	counts := make(map[string]int)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.queue).ForEach(func(_, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				counts["unknown"]++
				return nil
			}
			counts[item.Entity]++
			return nil
		})
	})
	return counts, err
}

// Cleanup drops items enqueued before olderThan and returns how many.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		var stale []Item
		c := tx.Bucket(s.queue).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.Timestamp.Before(olderThan) {
				item.bucketKey = append([]byte(nil), k...)
				stale = append(stale, item)
			}
		}
		for _, item := range stale {
			if err := s.remove(tx, item.bucketKey, item.documentKey()); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildKey(item Item) string {
	return fmt.Sprintf("%d_%020d_%s_%s", item.Priority, item.Timestamp.UnixNano(), item.Entity, item.ID)
}
