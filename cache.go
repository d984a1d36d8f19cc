/*
 * signac
 * Copyright (C) 2022 signac community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package signac

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"go.etcd.io/bbolt"
)

// Cache is a byte-blob cache consulted by Open and refreshed by Flush.
// There is no process-wide cache; callers inject a handle with WithCache.
type Cache interface {
	// Get returns the cached value for key, if present.
	Get(key string) ([]byte, bool)
	// Set stores a value under key, replacing any previous value.
	Set(key string, value []byte)
}

const defaultMissWarningThreshold = 500

// MemCache is an in-memory Cache. It counts misses and logs a single
// diagnostic once the miss count exceeds a threshold.
type MemCache struct {
	data      map[string][]byte
	misses    int
	warned    bool
	threshold int
	logger    *slog.Logger
}

// MemCacheOption configures a MemCache.
type MemCacheOption func(*MemCache)

// WithMissWarningThreshold overrides the number of misses after which a
// diagnostic is logged.
func WithMissWarningThreshold(n int) MemCacheOption {
	return func(m *MemCache) {
		m.threshold = n
	}
}

// WithCacheLogger sets the logger used for the miss diagnostic.
func WithCacheLogger(logger *slog.Logger) MemCacheOption {
	return func(m *MemCache) {
		m.logger = logger
	}
}

// NewMemCache creates an empty in-memory cache.
func NewMemCache(opts ...MemCacheOption) *MemCache {
	m := &MemCache{
		data:      make(map[string][]byte),
		threshold: defaultMissWarningThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemCache) Get(key string) ([]byte, bool) {
	value, ok := m.data[key]
	if !ok {
		m.misses++
		if !m.warned && m.misses > m.threshold {
			m.logger.Debug("high number of cache misses", "misses", m.misses)
			m.warned = true
		}
	}
	return value, ok
}

func (m *MemCache) Set(key string, value []byte) {
	m.data[key] = value
}

// Misses returns how many lookups did not find an entry.
func (m *MemCache) Misses() int {
	return m.misses
}

const cacheBucket = "_cache"

// BoltCache is a Cache persisted in a bbolt database, so entries outlive the
// process that wrote them. bbolt locks the database file while it is open;
// a second process opening the same path waits until the first closes it.
type BoltCache struct {
	db *bbolt.DB
}

// NewBoltCache opens (or creates) a bbolt-backed cache at the given path.
func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, boltDBFileMode, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &BoltCache{db: db}, nil
}

func (b *BoltCache) Get(key string) ([]byte, bool) {
	var value []byte
	_ = b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucket))
		if bucket == nil {
			return nil
		}
		if data := bucket.Get([]byte(key)); data != nil {
			value = make([]byte, len(data))
			copy(value, data)
		}
		return nil
	})
	return value, value != nil
}

func (b *BoltCache) Set(key string, value []byte) {
	_ = b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
}

// Close releases the underlying database.
func (b *BoltCache) Close() error {
	return b.db.Close()
}

// cacheEntry is the payload stored per collection file: the raw NDJSON blob
// stamped with the file state it reflects.
type cacheEntry struct {
	ModTime int64  `json:"mtime"`
	Size    int64  `json:"size"`
	Data    []byte `json:"data"`
}

func lookupCacheEntry(cache Cache, key string, info os.FileInfo) (cacheEntry, bool) {
	raw, ok := cache.Get(key)
	if !ok {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return cacheEntry{}, false
	}
	if entry.ModTime != info.ModTime().UnixNano() || entry.Size != info.Size() {
		return cacheEntry{}, false
	}
	return entry, true
}

func storeCacheEntry(cache Cache, key string, info os.FileInfo, data []byte) {
	raw, err := json.Marshal(cacheEntry{
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
		Data:    data,
	})
	if err != nil {
		return
	}
	cache.Set(key, raw)
}
