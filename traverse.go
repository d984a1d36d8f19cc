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

import "sort"

// filterExpr is a single flattened filter entry: a dotted key and the value
// it constrains.
type filterExpr struct {
	key   string
	value any
}

// traverseFilter flattens a filter mapping into (dotted key, value) pairs by
// depth-first descent. Each nesting level extends the key with a '.'. An
// empty mapping below the root is emitted as-is, denoting a match against
// exactly the empty object.
func traverseFilter(f map[string]any) []filterExpr {
	var out []filterExpr
	traverseTree(f, "", &out)
	return out
}

func traverseTree(v any, key string, out *[]filterExpr) {
	m, ok := v.(map[string]any)
	if !ok {
		*out = append(*out, filterExpr{key: key, value: v})
		return
	}
	if len(m) == 0 {
		if key != "" {
			*out = append(*out, filterExpr{key: key, value: m})
		}
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		child := k
		if key != "" {
			child = key + "." + k
		}
		traverseTree(m[k], child, out)
	}
}
