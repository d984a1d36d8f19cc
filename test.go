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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memberDocs returns fresh copies of the member example documents.
func memberDocs() []Document {
	return []Document{
		{"_id": "a", "age": 32, "name": "John"},
		{"_id": "b", "age": 28, "name": "Alice"},
		{"_id": "c", "age": 32, "name": "Kevin"},
	}
}

// nestedDocs returns documents with a nested value structure.
func nestedDocs() []Document {
	return []Document{
		{"_id": "x", "nested": map[string]any{"value": 42}},
		{"_id": "y", "nested": map[string]any{"value": 7}},
	}
}

// testCollection returns an in-memory collection holding the given docs.
func testCollection(t *testing.T, docs []Document) *Collection {
	t.Helper()
	c, err := New(docs)
	require.NoError(t, err)
	return c
}

// testFilePath returns a path for a collection file in a temporary directory
// that is removed with the test.
func testFilePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "collection.txt")
}

// assertFound checks that a filter matches exactly the wanted ids.
func assertFound(t *testing.T, c *Collection, filter Document, want ...string) {
	t.Helper()
	results, err := c.Find(filter, 0)
	if !assert.NoError(t, err) {
		return
	}
	assert.ElementsMatch(t, want, results.IDs())
}

// assertNoEmptyBuckets checks index invariant: maintenance prunes empty
// buckets.
func assertNoEmptyBuckets(t *testing.T, index *Index) {
	t.Helper()
	for key, b := range index.buckets {
		assert.NotEmptyf(t, b.ids, "empty bucket for key %q", key)
	}
}
