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
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Run("ok - creates a missing file", func(t *testing.T) {
		path := testFilePath(t)
		c, err := Open(path)
		require.NoError(t, err)
		defer c.Close()

		assert.Equal(t, 0, c.Len())
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("ok - in-memory sink", func(t *testing.T) {
		c, err := Open(MemoryPath)
		require.NoError(t, err)

		_, err = c.InsertOne(Document{"v": 1})
		require.NoError(t, err)
		require.NoError(t, c.Flush())
		assert.NoError(t, c.Close())
	})

	t.Run("error - read-only on a missing file", func(t *testing.T) {
		_, err := Open(testFilePath(t), WithReadOnly())
		assert.Error(t, err)
	})

	t.Run("error - malformed file content", func(t *testing.T) {
		path := testFilePath(t)
		require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0644))
		_, err := Open(path)
		assert.Error(t, err)
	})
}

func TestCollection_PersistenceRoundTrip(t *testing.T) {
	path := testFilePath(t)

	c, err := Open(path)
	require.NoError(t, err)
	for _, doc := range memberDocs() {
		_, err := c.InsertOne(doc)
		require.NoError(t, err)
	}
	require.NoError(t, c.Close())

	// file content: one JSON object per line, insertion order
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for i, id := range []string{"a", "b", "c"} {
		var doc Document
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &doc))
		assert.Equal(t, id, doc["_id"])
	}

	// reload and search
	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"a", "b", "c"}, c.IDs())
	assertFound(t, c, Document{"age": 32}, "a", "c")

	doc, err := c.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "Alice", doc["name"])
	assert.Equal(t, json.Number("28"), doc["age"])
}

func TestCollection_Flush(t *testing.T) {
	t.Run("ok - mutations persist after flush", func(t *testing.T) {
		path := testFilePath(t)
		c, err := Open(path)
		require.NoError(t, err)
		defer c.Close()

		_, err = c.InsertOne(Document{"_id": "a", "v": 1})
		require.NoError(t, err)
		require.NoError(t, c.Flush())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"_id":"a"`)
	})

	t.Run("ok - flush without changes is a no-op", func(t *testing.T) {
		c, err := Open(testFilePath(t))
		require.NoError(t, err)
		defer c.Close()
		assert.NoError(t, c.Flush())
	})

	t.Run("ok - deletions shrink the file", func(t *testing.T) {
		path := testFilePath(t)
		c, err := Open(path)
		require.NoError(t, err)
		for _, doc := range memberDocs() {
			_, err := c.InsertOne(doc)
			require.NoError(t, err)
		}
		require.NoError(t, c.Flush())
		require.NoError(t, c.Delete("b"))
		require.NoError(t, c.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		assert.Len(t, lines, 2)
		assert.NotContains(t, string(data), "Alice")
	})

	t.Run("error - flushing a modified read-only collection", func(t *testing.T) {
		path := testFilePath(t)
		seed, err := Open(path)
		require.NoError(t, err)
		_, err = seed.InsertOne(Document{"_id": "a", "v": 1})
		require.NoError(t, err)
		require.NoError(t, seed.Close())

		c, err := Open(path, WithReadOnly())
		require.NoError(t, err)
		require.NoError(t, c.Set("a", Document{"_id": "a", "v": 2}))

		assert.Error(t, c.Flush())
		assert.True(t, c.requiresFlush)
	})
}
