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

import "fmt"

// Results is the result vector of a find operation. It can be queried for
// its size and iterated multiple times; documents materialize as deep copies.
type Results struct {
	collection *Collection
	ids        []string
}

// Len returns the number of matching documents.
func (r *Results) Len() int {
	return len(r.ids)
}

// IDs returns the primary ids of all matching documents.
func (r *Results) IDs() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// Docs returns deep copies of all matching documents.
func (r *Results) Docs() ([]Document, error) {
	docs := make([]Document, 0, len(r.ids))
	for _, id := range r.ids {
		doc, err := r.collection.Get(id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Find returns all documents matching the filter, but not more than limit
// (0 means no limit). A nil or empty filter matches every document.
//
// Nested values are searched with the '.' separator, e.g.
// {"nested.value": 42}. Field operators ($eq $ne $gt $gte $lt $lte $in $nin
// $regex $type $where $exists) attach as the final dotted segment, e.g.
// {"age": {"$gte": 32}}; sub-filters combine under $and, $or and $not.
func (c *Collection) Find(filter Document, limit int) (*Results, error) {
	ids, err := c.findIDs(filter, limit)
	if err != nil {
		return nil, err
	}
	return &Results{collection: c, ids: ids}, nil
}

// FindOne returns the first document matching the filter, or nil when
// nothing matches.
func (c *Collection) FindOne(filter Document) (Document, error) {
	ids, err := c.findIDs(filter, 1)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.Get(ids[0])
}

// DeleteOne deletes the first document that matches the filter, if any.
func (c *Collection) DeleteOne(filter Document) error {
	ids, err := c.findIDs(filter, 1)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMany deletes all documents that match the filter and returns how
// many were removed.
func (c *Collection) DeleteMany(filter Document) (int, error) {
	ids, err := c.findIDs(filter, 0)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := c.Delete(id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// ReplaceOne replaces the first document matching the filter with the
// replacement document. With upsert, the replacement is inserted when
// nothing matches. Returns the id of the affected document, or the empty
// string when nothing was replaced.
func (c *Collection) ReplaceOne(filter Document, replacement Document, upsert bool) (string, error) {
	if err := c.assertOpen(); err != nil {
		return "", err
	}
	if len(filter) == 1 {
		if raw, ok := filter[c.primaryKey]; ok {
			if id, ok := raw.(string); ok {
				if !upsert && !c.Contains(id) {
					return "", nil
				}
				if err := c.Set(id, replacement); err != nil {
					return "", err
				}
				return id, nil
			}
		}
	}
	ids, err := c.findIDs(filter, 1)
	if err != nil {
		return "", err
	}
	if len(ids) > 0 {
		if err := c.Set(ids[0], replacement); err != nil {
			return "", err
		}
		return ids[0], nil
	}
	if upsert {
		return c.InsertOne(replacement)
	}
	return "", nil
}

// normalizeFilter passes a filter through the JSON round-trip so the engine
// never observes caller aliasing and only JSON-representable values.
func normalizeFilter(filter Document) (map[string]any, error) {
	if filter == nil {
		return nil, nil
	}
	v, err := normalizeValue(map[string]any(filter))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: a filter must be a mapping", ErrInvalidFilter)
	}
	return m, nil
}

// findIDs normalizes and validates the filter and reduces it to the ids of
// all matching documents, in insertion order, truncated to limit.
func (c *Collection) findIDs(filter Document, limit int) ([]string, error) {
	if err := c.assertOpen(); err != nil {
		return nil, err
	}
	f, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if len(f) == 0 {
		ids := c.IDs()
		if limit > 0 && limit < len(ids) {
			ids = ids[:limit]
		}
		return ids, nil
	}
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	result, err := c.findResult(f)
	if err != nil {
		return nil, err
	}
	ordered := make([]string, 0, len(result))
	for _, id := range c.order {
		if result.contains(id) {
			ordered = append(ordered, id)
			if limit > 0 && len(ordered) == limit {
				break
			}
		}
	}
	return ordered, nil
}

// findResult reduces one filter level to a set of matching ids: the
// primary-key short-circuit first, then every flattened field expression
// intersected with early exit on an empty result, then the logical
// $not/$and/$or subtrees. A nil result stands for the id universe until the
// first reduction.
func (c *Collection) findResult(f map[string]any) (idSet, error) {
	if len(f) == 0 {
		return c.allIDs(), nil
	}

	var result idSet
	reduce := func(match idSet) {
		if result == nil {
			result = match
		} else {
			result = result.intersect(match)
		}
	}

	// A scalar primary key expression reduces the result immediately, no
	// search required.
	if raw, ok := f[c.primaryKey]; ok && isScalarValue(raw) {
		delete(f, c.primaryKey)
		id, ok := raw.(string)
		if !ok || !c.Contains(id) {
			return make(idSet), nil
		}
		reduce(newIDSet(id))
	}

	orExprs, hasOr := f["$or"]
	andExprs, hasAnd := f["$and"]
	notExpr, hasNot := f["$not"]
	delete(f, "$or")
	delete(f, "$and")
	delete(f, "$not")

	for _, ex := range traverseFilter(f) {
		match, err := c.findExpression(ex.key, ex.value)
		if err != nil {
			return nil, err
		}
		reduce(match)
		if result != nil && len(result) == 0 {
			// no match, no need to continue
			return result, nil
		}
	}

	if hasNot {
		notMatch, err := c.findResult(notExpr.(map[string]any))
		if err != nil {
			return nil, err
		}
		reduce(c.allIDs().minus(notMatch))
	}

	if hasAnd {
		for _, sub := range andExprs.([]any) {
			match, err := c.findResult(sub.(map[string]any))
			if err != nil {
				return nil, err
			}
			reduce(match)
		}
	}

	if hasOr {
		union := make(idSet)
		for _, sub := range orExprs.([]any) {
			match, err := c.findResult(sub.(map[string]any))
			if err != nil {
				return nil, err
			}
			union.merge(match)
		}
		reduce(union)
	}

	if result == nil {
		return c.allIDs(), nil
	}
	return result, nil
}

// findExpression evaluates a single flattened (dotted key, value) pair
// against the index on the key's field path.
func (c *Collection) findExpression(key string, value any) (idSet, error) {
	base, op, err := splitOperator(key)
	if err != nil {
		return nil, err
	}
	switch {
	case op == "":
		return c.indexFor(key).equalityIDs(value), nil
	case op == "$exists":
		exists, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: the value of the '$exists' operator must be boolean", ErrInvalidFilter)
		}
		match := c.indexFor(base).allIDs()
		if exists {
			return match, nil
		}
		return c.allIDs().minus(match), nil
	case indexOperators[op]:
		return c.indexFor(base).findWithOperator(op, value)
	default:
		return nil, fmt.Errorf("%w: unknown expression-operator '%s'", ErrInvalidFilter, op)
	}
}

func isScalarValue(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	}
	return true
}
