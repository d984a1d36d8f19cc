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

import "strings"

// splitPath splits a dotted key into its segments.
func splitPath(key string) []string {
	return strings.Split(key, ".")
}

// resolvePath descends nested mappings segment by segment and returns the
// value at the end of the path. It reports not-found when a segment is
// missing or when an intermediate value is not a mapping.
func resolvePath(doc Document, nodes []string) (any, bool) {
	var current any = map[string]any(doc)
	for _, node := range nodes {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[node]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
