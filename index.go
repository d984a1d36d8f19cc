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
	"regexp"
	"sort"

	"github.com/expr-lang/expr"
)

// idSet is a set of primary ids.
type idSet map[string]struct{}

func newIDSet(ids ...string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) add(id string) {
	s[id] = struct{}{}
}

func (s idSet) contains(id string) bool {
	_, ok := s[id]
	return ok
}

// merge adds all ids of other to s.
func (s idSet) merge(other idSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// intersect returns a new set with the ids present in both s and other.
func (s idSet) intersect(other idSet) idSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(idSet)
	for id := range small {
		if large.contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// minus returns a new set with the ids of s that are not in other.
func (s idSet) minus(other idSet) idSet {
	out := make(idSet)
	for id := range s {
		if !other.contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// bucket groups the ids of all documents whose value under the indexed key
// shares one canonical form.
type bucket struct {
	value any
	ids   idSet
}

// Index maps the canonical form of a value to the set of primary ids of
// documents carrying that value under the indexed key. Indexes are built
// lazily by the first query that needs them and kept current by the owning
// collection; callers receiving an Index from Collection.Index must not
// mutate it through any side channel.
type Index struct {
	key     string
	buckets map[string]*bucket
}

func newIndex(key string) *Index {
	return &Index{
		key:     key,
		buckets: make(map[string]*bucket),
	}
}

// Key returns the dotted key this index covers.
func (i *Index) Key() string {
	return i.key
}

// Len returns the number of value buckets.
func (i *Index) Len() int {
	return len(i.buckets)
}

// Get returns the ids of all documents whose value equals the given value.
// Mapping values never match: they are recorded under a placeholder and take
// part in $exists only.
func (i *Index) Get(value any) []string {
	if _, ok := value.(map[string]any); ok {
		return nil
	}
	if _, ok := value.(Document); ok {
		return nil
	}
	b, ok := i.buckets[canonicalKey(value)]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(b.ids))
	for id := range b.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// add records id under the bucket for value.
func (i *Index) add(id string, value any) {
	key := canonicalKey(value)
	stored := value
	switch value.(type) {
	case map[string]any, Document:
		key = dictPlaceholderKey
		stored = dictPlaceholder{}
	}
	b, ok := i.buckets[key]
	if !ok {
		b = &bucket{value: stored, ids: make(idSet)}
		i.buckets[key] = b
	}
	b.ids.add(id)
}

// removeID scrubs id from every bucket, pruning buckets that become empty.
func (i *Index) removeID(id string) {
	for key, b := range i.buckets {
		delete(b.ids, id)
		if len(b.ids) == 0 {
			delete(i.buckets, key)
		}
	}
}

// allIDs returns the union of every bucket, i.e. the ids of all documents for
// which the indexed key resolves to any value at all.
func (i *Index) allIDs() idSet {
	out := make(idSet)
	for _, b := range i.buckets {
		out.merge(b.ids)
	}
	return out
}

// equalityIDs returns the ids matching value exactly, as a set.
func (i *Index) equalityIDs(value any) idSet {
	switch value.(type) {
	case map[string]any, Document:
		return make(idSet)
	}
	b, ok := i.buckets[canonicalKey(value)]
	if !ok {
		return make(idSet)
	}
	out := make(idSet, len(b.ids))
	out.merge(b.ids)
	return out
}

// findWithOperator scans the index buckets and returns the union of all
// buckets whose value satisfies the operator against the argument.
func (i *Index) findWithOperator(op string, arg any) (idSet, error) {
	out := make(idSet)
	switch op {
	case "$eq":
		return i.equalityIDs(arg), nil

	case "$ne":
		key := canonicalKey(arg)
		for k, b := range i.buckets {
			if k != key {
				out.merge(b.ids)
			}
		}

	case "$gt", "$gte", "$lt", "$lte":
		for _, b := range i.buckets {
			c, ok := compareValues(b.value, arg)
			if !ok {
				continue
			}
			switch op {
			case "$gt":
				ok = c > 0
			case "$gte":
				ok = c >= 0
			case "$lt":
				ok = c < 0
			case "$lte":
				ok = c <= 0
			}
			if ok {
				out.merge(b.ids)
			}
		}

	case "$in", "$nin":
		elems, ok := arg.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: the argument of '%s' must be a sequence", ErrInvalidFilter, op)
		}
		members := make(map[string]struct{}, len(elems))
		for _, elem := range elems {
			members[canonicalKey(elem)] = struct{}{}
		}
		for k, b := range i.buckets {
			_, member := members[k]
			if member == (op == "$in") {
				out.merge(b.ids)
			}
		}

	case "$regex":
		pattern, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("%w: the argument of '$regex' must be a string", ErrInvalidFilter)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		for _, b := range i.buckets {
			if s, ok := b.value.(string); ok && re.MatchString(s) {
				out.merge(b.ids)
			}
		}

	case "$type":
		name, ok := arg.(string)
		if !ok || !knownTypeNames[name] {
			return nil, fmt.Errorf("%w: unknown argument for '$type' operator: '%v'", ErrInvalidFilter, arg)
		}
		for _, b := range i.buckets {
			if typeName(b.value) == name {
				out.merge(b.ids)
			}
		}

	case "$where":
		src, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("%w: the argument of '$where' must be an expression string", ErrInvalidFilter)
		}
		program, err := expr.Compile(src, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		for _, b := range i.buckets {
			result, err := expr.Run(program, map[string]any{"value": exportValue(b.value)})
			if err != nil {
				continue
			}
			if match, ok := result.(bool); ok && match {
				out.merge(b.ids)
			}
		}

	default:
		return nil, fmt.Errorf("%w: unknown expression-operator '%s'", ErrInvalidFilter, op)
	}
	return out, nil
}
