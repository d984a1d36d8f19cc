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

import "errors"

// DefaultPrimaryKey is the name of the primary key field unless overridden
// with WithPrimaryKey.
const DefaultPrimaryKey = "_id"

// MemoryPath is the sentinel path that binds a collection to an in-memory
// sink without any file I/O.
const MemoryPath = ":memory:"

const boltDBFileMode = 0600

// Document is a schema-less mapping of string keys to JSON values.
// Documents are normalized through a JSON round-trip before they are stored,
// so only JSON-representable values ever enter the engine.
type Document map[string]any

// ErrClosed is returned when an operation is attempted on a closed collection.
var ErrClosed = errors.New("collection is closed")

// ErrNotFound is returned when a document cannot be found by its primary key.
var ErrNotFound = errors.New("document not found")

// ErrNoIndex is returned when no index is found to query against
var ErrNoIndex = errors.New("no index found")

// ErrInvalidFilter is returned when a filter does not follow the query grammar.
var ErrInvalidFilter = errors.New("invalid filter")

// ErrInvalidPrimaryKey is returned when a primary key is missing, not a
// string, or conflicts with the id under which a document is stored.
var ErrInvalidPrimaryKey = errors.New("invalid primary key")
