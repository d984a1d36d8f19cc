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
	"strings"
)

// indexOperators are the field operators evaluated by scanning an index.
var indexOperators = map[string]bool{
	"$eq":    true,
	"$ne":    true,
	"$gt":    true,
	"$gte":   true,
	"$lt":    true,
	"$lte":   true,
	"$in":    true,
	"$nin":   true,
	"$regex": true,
	"$type":  true,
	"$where": true,
}

// knownTypeNames are the type names accepted by the $type operator.
var knownTypeNames = map[string]bool{
	"int":   true,
	"float": true,
	"bool":  true,
	"str":   true,
	"list":  true,
	"null":  true,
}

// splitOperator separates a flattened filter key into its field path and the
// trailing operator segment, if any. A key may contain at most one '$', and
// it must start the final dotted segment.
func splitOperator(key string) (string, string, error) {
	if !strings.Contains(key, "$") {
		return key, "", nil
	}
	if strings.Count(key, "$") > 1 {
		return "", "", fmt.Errorf("%w: bad operator expression '%s'", ErrInvalidFilter, key)
	}
	nodes := splitPath(key)
	op := nodes[len(nodes)-1]
	if !strings.HasPrefix(op, "$") {
		return "", "", fmt.Errorf("%w: bad operator placement '%s'", ErrInvalidFilter, key)
	}
	return strings.Join(nodes[:len(nodes)-1], "."), op, nil
}

// validateFilter checks a normalized filter against the query grammar before
// execution: logical operators take non-empty lists of sub-filters, a field
// key carries at most one trailing operator, operator names are known, and
// operator arguments have the required shape.
func validateFilter(f map[string]any) error {
	for key, value := range f {
		switch key {
		case "$and", "$or":
			subs, ok := value.([]any)
			if !ok {
				return fmt.Errorf("%w: the argument of logical-operator '%s' must be a list", ErrInvalidFilter, key)
			}
			if len(subs) == 0 {
				return fmt.Errorf("%w: the argument of logical-operator '%s' cannot be empty", ErrInvalidFilter, key)
			}
			for _, sub := range subs {
				m, ok := sub.(map[string]any)
				if !ok {
					return fmt.Errorf("%w: the arguments of logical-operator '%s' must be filters", ErrInvalidFilter, key)
				}
				if err := validateFilter(m); err != nil {
					return err
				}
			}
		case "$not":
			m, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: the argument of logical-operator '$not' must be a filter", ErrInvalidFilter)
			}
			if err := validateFilter(m); err != nil {
				return err
			}
		default:
			for _, ex := range traverseFilter(map[string]any{key: value}) {
				if err := validateExpression(ex.key, ex.value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateExpression(key string, value any) error {
	_, op, err := splitOperator(key)
	if err != nil {
		return err
	}
	switch {
	case op == "":
		return nil
	case op == "$exists":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: the value of the '$exists' operator must be boolean", ErrInvalidFilter)
		}
	case op == "$type":
		name, ok := value.(string)
		if !ok || !knownTypeNames[name] {
			return fmt.Errorf("%w: unknown argument for '$type' operator: '%v'", ErrInvalidFilter, value)
		}
	case op == "$in" || op == "$nin":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("%w: the argument of '%s' must be a sequence", ErrInvalidFilter, op)
		}
	case indexOperators[op]:
		return nil
	default:
		return fmt.Errorf("%w: unknown expression-operator '%s'", ErrInvalidFilter, op)
	}
	return nil
}
