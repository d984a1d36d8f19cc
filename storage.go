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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Open opens a collection associated with a file on disk, creating the file
// when it does not exist yet. The file holds one JSON document per line.
// Modifications are written back on Flush and Close. The sentinel path
// ":memory:" binds an in-memory sink without any I/O.
func Open(path string, opts ...Option) (*Collection, error) {
	c, err := New(nil, opts...)
	if err != nil {
		return nil, err
	}
	if path == MemoryPath {
		c.memory = true
		return c, nil
	}
	var file *os.File
	if c.readOnly {
		file, err = os.Open(path)
	} else {
		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	}
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	c.file = file
	c.path = path
	if err := c.load(); err != nil {
		_ = file.Close()
		return nil, err
	}
	c.logger.Debug("opened collection", "path", path, "documents", c.Len())
	return c, nil
}

// load reads the backing file into the collection. With a cache attached,
// a cached blob whose stamp matches the file's current size and modification
// time serves the documents without reading the file.
func (c *Collection) load() error {
	info, err := c.file.Stat()
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}

	var data []byte
	fromCache := false
	if c.cache != nil {
		if entry, ok := lookupCacheEntry(c.cache, c.path, info); ok {
			data = entry.Data
			fromCache = true
			c.logger.Debug("loaded collection from cache", "path", c.path)
		}
	}
	if !fromCache {
		data, err = io.ReadAll(c.file)
		if err != nil {
			return fmt.Errorf("read collection: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	for {
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read collection: %w", err)
		}
		id, err := c.docID(doc)
		if err != nil {
			return err
		}
		if err := c.put(id, doc); err != nil {
			return err
		}
	}
	c.requiresFlush = false
	c.updateIndexes()

	if !fromCache && c.cache != nil {
		storeCacheEntry(c.cache, c.path, info, data)
	}
	return nil
}

// Dump writes every document as one JSON object per line, in insertion
// order.
func (c *Collection) Dump(w io.Writer) error {
	if err := c.assertOpen(); err != nil {
		return err
	}
	return c.dump(w)
}

func (c *Collection) dump(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, id := range c.order {
		if err := enc.Encode(c.docs[id]); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}
	return nil
}

// Flush writes all changes to the backing file by truncating it and dumping
// every document in insertion order. Without pending changes or without a
// backing file this is a no-op. On failure the collection still requires a
// flush.
func (c *Collection) Flush() error {
	if err := c.assertOpen(); err != nil {
		return err
	}
	if !c.requiresFlush {
		c.logger.Debug("flushed collection (no changes)")
		return nil
	}
	if c.file == nil {
		c.logger.Debug("flushed collection")
		c.requiresFlush = false
		return nil
	}

	var buf bytes.Buffer
	if err := c.dump(&buf); err != nil {
		return err
	}
	if err := c.file.Truncate(0); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if _, err := c.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	c.requiresFlush = false

	if c.cache != nil {
		if info, err := c.file.Stat(); err == nil {
			storeCacheEntry(c.cache, c.path, info, buf.Bytes())
		}
	}
	c.logger.Debug("flushed collection to file", "path", c.path)
	return nil
}

// Close flushes pending changes, releases the backing file and renders the
// collection unusable. Closing an already closed collection is a no-op.
func (c *Collection) Close() error {
	if c.closed {
		return nil
	}
	flushErr := c.Flush()
	var closeErr error
	if c.file != nil {
		closeErr = c.file.Close()
		c.file = nil
	}
	c.closed = true
	c.docs = nil
	c.order = nil
	c.indexes = nil
	c.dirty = nil
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("close: %w", closeErr)
	}
	return nil
}
