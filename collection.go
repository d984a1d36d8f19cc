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
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Collection manages a set of schema-less documents in memory, optionally
// backed by a newline-delimited JSON file. Documents are keyed by a string
// primary key and can be searched with nested filter expressions; secondary
// indexes are built lazily per queried key and kept current across mutations.
//
// A Collection assumes a single caller at a time and performs no locking.
type Collection struct {
	primaryKey    string
	docs          map[string]Document
	order         []string
	dirty         idSet
	indexes       map[string]*Index
	requiresFlush bool

	file     *os.File
	path     string
	memory   bool
	readOnly bool
	closed   bool

	logger *slog.Logger
	cache  Cache
}

// Option configures a Collection.
type Option func(*Collection)

// WithPrimaryKey overrides the name of the primary key field (default "_id").
func WithPrimaryKey(key string) Option {
	return func(c *Collection) {
		c.primaryKey = key
	}
}

// WithLogger sets the logger used for index build and flush diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// WithCache attaches a read cache consulted by Open and refreshed by Flush.
func WithCache(cache Cache) Option {
	return func(c *Collection) {
		c.cache = cache
	}
}

// WithReadOnly opens the backing file for reading only. Flushing a modified
// read-only collection fails with an I/O error.
func WithReadOnly() Option {
	return func(c *Collection) {
		c.readOnly = true
	}
}

// New creates an in-memory collection initialized with the given documents.
// Every initial document must already carry a string primary key value.
func New(docs []Document, opts ...Option) (*Collection, error) {
	c := &Collection{
		primaryKey: DefaultPrimaryKey,
		docs:       make(map[string]Document),
		dirty:      make(idSet),
		indexes:    make(map[string]*Index),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, doc := range docs {
		norm, err := normalizeDocument(doc)
		if err != nil {
			return nil, err
		}
		id, err := c.docID(norm)
		if err != nil {
			return nil, err
		}
		if err := c.put(id, norm); err != nil {
			return nil, err
		}
	}
	// not needed after the initial read
	c.requiresFlush = false
	c.updateIndexes()
	return c, nil
}

func (c *Collection) assertOpen() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}

// docID extracts the primary key value of a document.
func (c *Collection) docID(doc Document) (string, error) {
	raw, ok := doc[c.primaryKey]
	if !ok {
		return "", fmt.Errorf("%w: document has no '%s' field", ErrInvalidPrimaryKey, c.primaryKey)
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: the primary key must be a non-empty string", ErrInvalidPrimaryKey)
	}
	return id, nil
}

// put stores an already normalized document under id, preserving insertion
// order for ids seen before, and marks the id dirty for index maintenance.
func (c *Collection) put(id string, doc Document) error {
	if id == "" {
		return fmt.Errorf("%w: the primary key must be a non-empty string", ErrInvalidPrimaryKey)
	}
	if raw, ok := doc[c.primaryKey]; ok {
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: the primary key must be of type string", ErrInvalidPrimaryKey)
		}
		if s != id {
			return fmt.Errorf("%w: primary key mismatch", ErrInvalidPrimaryKey)
		}
	} else {
		doc[c.primaryKey] = id
	}
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
	c.dirty.add(id)
	c.requiresFlush = true
	return nil
}

// PrimaryKey returns the name of the collection's primary key field.
func (c *Collection) PrimaryKey() string {
	return c.primaryKey
}

// Len returns the number of documents in the collection.
func (c *Collection) Len() int {
	return len(c.docs)
}

// Contains reports whether a document with the given id exists.
func (c *Collection) Contains(id string) bool {
	_, ok := c.docs[id]
	return ok
}

// IDs returns all primary ids in insertion order.
func (c *Collection) IDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// Get returns a deep copy of the document stored under id, so mutations of
// the returned value never reach collection state.
func (c *Collection) Get(id string) (Document, error) {
	if err := c.assertOpen(); err != nil {
		return nil, err
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNotFound, id)
	}
	return normalizeDocument(doc)
}

// Set stores a document under id. The document is normalized through a JSON
// round-trip; a missing primary key field is filled with id, a present one
// must equal id.
func (c *Collection) Set(id string, doc Document) error {
	if err := c.assertOpen(); err != nil {
		return err
	}
	norm, err := normalizeDocument(doc)
	if err != nil {
		return err
	}
	return c.put(id, norm)
}

// InsertOne inserts one document into the collection. A document without a
// primary key value is assigned a fresh v4 UUID. Returns the id of the
// inserted document.
func (c *Collection) InsertOne(doc Document) (string, error) {
	if err := c.assertOpen(); err != nil {
		return "", err
	}
	var id string
	if raw, ok := doc[c.primaryKey]; ok {
		s, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%w: the primary key must be of type string", ErrInvalidPrimaryKey)
		}
		id = s
	} else {
		id = uuid.NewString()
	}
	if err := c.Set(id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Update upserts the given documents into the collection. Documents without
// a primary key value are assigned a fresh v4 UUID; existing documents with
// the same primary key are replaced.
func (c *Collection) Update(docs []Document) error {
	for _, doc := range docs {
		if _, err := c.InsertOne(doc); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the document stored under id and scrubs it from all indexes.
func (c *Collection) Delete(id string) error {
	if err := c.assertOpen(); err != nil {
		return err
	}
	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("%w: '%s'", ErrNotFound, id)
	}
	delete(c.docs, id)
	for i, ordered := range c.order {
		if ordered == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.removeFromIndexes(id)
	delete(c.dirty, id)
	c.requiresFlush = true
	return nil
}

// Clear removes all documents and indexes from the collection.
func (c *Collection) Clear() error {
	if err := c.assertOpen(); err != nil {
		return err
	}
	c.docs = make(map[string]Document)
	c.order = nil
	c.indexes = make(map[string]*Index)
	c.dirty = make(idSet)
	c.requiresFlush = true
	return nil
}

// Index returns the index for the given key, building it first when build is
// true. The returned index is always current with the latest state of the
// collection. The primary key has no secondary index.
func (c *Collection) Index(key string, build bool) (*Index, error) {
	if err := c.assertOpen(); err != nil {
		return nil, err
	}
	if key == c.primaryKey {
		return nil, fmt.Errorf("%w: cannot access index for primary key", ErrInvalidPrimaryKey)
	}
	if _, ok := c.indexes[key]; !ok {
		if !build {
			return nil, fmt.Errorf("%w: no index for key '%s'", ErrNoIndex, key)
		}
		c.buildIndex(key)
	}
	c.updateIndexes()
	return c.indexes[key], nil
}

// indexFor returns the index for key, building it on demand and refreshing
// dirty state first. Unlike Index it serves the primary key too, for
// operator expressions on the primary key field.
func (c *Collection) indexFor(key string) *Index {
	if _, ok := c.indexes[key]; !ok {
		c.buildIndex(key)
	}
	c.updateIndexes()
	return c.indexes[key]
}

func (c *Collection) buildIndex(key string) {
	c.logger.Debug("building index", "key", key)
	index := newIndex(key)
	for _, id := range c.order {
		c.indexDocInto(index, c.docs[id], id)
	}
	c.indexes[key] = index
	c.logger.Debug("built index", "key", key, "buckets", index.Len())
}

// indexDocInto records one document in an index. Besides the nested descent,
// a literal flat key containing dots is a secondary match path, pending
// deprecation.
func (c *Collection) indexDocInto(index *Index, doc Document, id string) {
	nodes := splitPath(index.key)
	if v, ok := resolvePath(doc, nodes); ok {
		index.add(id, v)
	}
	if len(nodes) > 1 {
		if v, ok := doc[index.key]; ok {
			c.logger.Warn("using keys with dots ('.') is pending deprecation", "key", index.key)
			index.add(id, v)
		}
	}
}

func (c *Collection) removeFromIndexes(id string) {
	for _, index := range c.indexes {
		index.removeID(id)
	}
}

// updateIndexes re-indexes all dirty ids against every known index: each
// dirty id is first scrubbed from every bucket, then indexed again. Runs
// before any query; afterwards the dirty set is empty.
func (c *Collection) updateIndexes() {
	if len(c.dirty) == 0 {
		return
	}
	for id := range c.dirty {
		c.removeFromIndexes(id)
	}
	for id := range c.dirty {
		doc := c.docs[id]
		for _, index := range c.indexes {
			c.indexDocInto(index, doc, id)
		}
	}
	c.dirty = make(idSet)
}

// allIDs returns the id universe: every primary id in the collection.
func (c *Collection) allIDs() idSet {
	out := make(idSet, len(c.docs))
	for id := range c.docs {
		out.add(id)
	}
	return out
}
