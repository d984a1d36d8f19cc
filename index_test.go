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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T, c *Collection, key string) *Index {
	t.Helper()
	index, err := c.Index(key, true)
	require.NoError(t, err)
	return index
}

func setOf(ids ...string) idSet {
	return newIDSet(ids...)
}

func TestCollection_Index(t *testing.T) {
	t.Run("ok - build on demand", func(t *testing.T) {
		c := testCollection(t, memberDocs())
		index := testIndex(t, c, "age")

		assert.Equal(t, "age", index.Key())
		assert.Equal(t, 2, index.Len())
		assert.ElementsMatch(t, []string{"a", "c"}, index.Get(32))
		assert.ElementsMatch(t, []string{"b"}, index.Get(28))
	})

	t.Run("ok - index follows mutations", func(t *testing.T) {
		c := testCollection(t, memberDocs())
		index := testIndex(t, c, "age")

		require.NoError(t, c.Set("b", Document{"_id": "b", "age": 32, "name": "Alice"}))
		index = testIndex(t, c, "age")

		assert.ElementsMatch(t, []string{"a", "b", "c"}, index.Get(32))
		assert.Empty(t, index.Get(28))
		assertNoEmptyBuckets(t, index)
	})

	t.Run("ok - delete scrubs ids and prunes buckets", func(t *testing.T) {
		c := testCollection(t, memberDocs())
		index := testIndex(t, c, "age")

		require.NoError(t, c.Delete("b"))

		assert.Empty(t, index.Get(28))
		assertNoEmptyBuckets(t, index)
	})

	t.Run("ok - missing values are skipped", func(t *testing.T) {
		c := testCollection(t, []Document{
			{"_id": "1", "a": 1},
			{"_id": "2", "b": 2},
		})
		index := testIndex(t, c, "a")
		assert.Equal(t, 1, index.Len())
	})

	t.Run("ok - mapping values land under the placeholder", func(t *testing.T) {
		c := testCollection(t, []Document{
			{"_id": "d", "meta": map[string]any{"x": 1}},
			{"_id": "e", "meta": "plain"},
		})
		index := testIndex(t, c, "meta")

		assert.Equal(t, 2, index.Len())
		// mapping values do not participate in equality
		assert.Empty(t, index.Get(map[string]any{"x": 1}))
		assert.ElementsMatch(t, []string{"e"}, index.Get("plain"))
	})

	t.Run("error - no index without build", func(t *testing.T) {
		c := testCollection(t, memberDocs())
		_, err := c.Index("age", false)
		assert.ErrorIs(t, err, ErrNoIndex)
	})

	t.Run("error - primary key has no secondary index", func(t *testing.T) {
		c := testCollection(t, memberDocs())
		_, err := c.Index("_id", true)
		assert.ErrorIs(t, err, ErrInvalidPrimaryKey)
	})
}

func TestIndex_FindWithOperator(t *testing.T) {
	newAgeIndex := func(t *testing.T) *Index {
		t.Helper()
		return testIndex(t, testCollection(t, memberDocs()), "age")
	}
	newNameIndex := func(t *testing.T) *Index {
		t.Helper()
		return testIndex(t, testCollection(t, memberDocs()), "name")
	}

	t.Run("$eq", func(t *testing.T) {
		match, err := newAgeIndex(t).findWithOperator("$eq", json.Number("32"))
		require.NoError(t, err)
		assert.Equal(t, setOf("a", "c"), match)
	})

	t.Run("$ne", func(t *testing.T) {
		match, err := newAgeIndex(t).findWithOperator("$ne", json.Number("32"))
		require.NoError(t, err)
		assert.Equal(t, setOf("b"), match)
	})

	t.Run("$gt and friends", func(t *testing.T) {
		index := newAgeIndex(t)

		match, err := index.findWithOperator("$gt", json.Number("29"))
		require.NoError(t, err)
		assert.Equal(t, setOf("a", "c"), match)

		match, err = index.findWithOperator("$gte", json.Number("28"))
		require.NoError(t, err)
		assert.Equal(t, setOf("a", "b", "c"), match)

		match, err = index.findWithOperator("$lt", json.Number("32"))
		require.NoError(t, err)
		assert.Equal(t, setOf("b"), match)

		match, err = index.findWithOperator("$lte", json.Number("28"))
		require.NoError(t, err)
		assert.Equal(t, setOf("b"), match)
	})

	t.Run("comparison across incomparable types matches nothing", func(t *testing.T) {
		match, err := newNameIndex(t).findWithOperator("$gt", json.Number("29"))
		require.NoError(t, err)
		assert.Empty(t, match)
	})

	t.Run("$in", func(t *testing.T) {
		match, err := newAgeIndex(t).findWithOperator("$in", []any{json.Number("28"), json.Number("32")})
		require.NoError(t, err)
		assert.Equal(t, setOf("a", "b", "c"), match)
	})

	t.Run("$nin", func(t *testing.T) {
		match, err := newAgeIndex(t).findWithOperator("$nin", []any{json.Number("32")})
		require.NoError(t, err)
		assert.Equal(t, setOf("b"), match)
	})

	t.Run("error - $in argument must be a sequence", func(t *testing.T) {
		_, err := newAgeIndex(t).findWithOperator("$in", json.Number("32"))
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("$regex", func(t *testing.T) {
		match, err := newNameIndex(t).findWithOperator("$regex", "^K")
		require.NoError(t, err)
		assert.Equal(t, setOf("c"), match)
	})

	t.Run("$regex against non-strings matches nothing", func(t *testing.T) {
		match, err := newAgeIndex(t).findWithOperator("$regex", "3")
		require.NoError(t, err)
		assert.Empty(t, match)
	})

	t.Run("error - $regex argument must compile", func(t *testing.T) {
		_, err := newNameIndex(t).findWithOperator("$regex", "([")
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("$type", func(t *testing.T) {
		match, err := newNameIndex(t).findWithOperator("$type", "str")
		require.NoError(t, err)
		assert.Equal(t, setOf("a", "b", "c"), match)

		match, err = newAgeIndex(t).findWithOperator("$type", "int")
		require.NoError(t, err)
		assert.Equal(t, setOf("a", "b", "c"), match)
	})

	t.Run("error - $type with unknown name", func(t *testing.T) {
		_, err := newAgeIndex(t).findWithOperator("$type", "decimal")
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("$where", func(t *testing.T) {
		match, err := newAgeIndex(t).findWithOperator("$where", "value > 29")
		require.NoError(t, err)
		assert.Equal(t, setOf("a", "c"), match)
	})

	t.Run("error - $where argument must compile", func(t *testing.T) {
		_, err := newAgeIndex(t).findWithOperator("$where", "value >")
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("error - unknown operator", func(t *testing.T) {
		_, err := newAgeIndex(t).findWithOperator("$almost", 1)
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("placeholder buckets match inequality but not type or regex", func(t *testing.T) {
		c := testCollection(t, []Document{
			{"_id": "d", "meta": map[string]any{"x": 1}},
		})
		index := testIndex(t, c, "meta")

		match, err := index.findWithOperator("$ne", "anything")
		require.NoError(t, err)
		assert.Equal(t, setOf("d"), match)

		match, err = index.findWithOperator("$type", "str")
		require.NoError(t, err)
		assert.Empty(t, match)

		match, err = index.findWithOperator("$regex", ".")
		require.NoError(t, err)
		assert.Empty(t, match)
	})
}
