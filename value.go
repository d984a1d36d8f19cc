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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// dictPlaceholder marks index buckets for documents whose resolved value is a
// mapping. Such documents participate in $exists but not in value equality.
type dictPlaceholder struct{}

// dictPlaceholderKey is the bucket key for mapping-valued fields. It is not a
// JSON text, so it cannot collide with any canonical value encoding.
const dictPlaceholderKey = "\x00dict\x00"

// normalizeValue passes a value through a JSON encode/decode round-trip.
// Numbers decode as json.Number so the int/float distinction survives.
func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return out, nil
}

// normalizeDocument normalizes a document, see normalizeValue.
func normalizeDocument(doc Document) (Document, error) {
	v, err := normalizeValue(map[string]any(doc))
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("normalize: document is not a mapping")
	}
	return Document(m), nil
}

// canonicalKey encodes a normalized value as a deterministic string, used as
// the hashable form for index bucket keys and equality lookups. Sequences
// encode element-wise and nested mappings encode with sorted keys.
// Integral numbers encode without a fraction, so 32 and 32.0 share a bucket.
func canonicalKey(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch value := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if value {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		b.WriteString(strconv.Quote(value))
	case json.Number:
		b.WriteString(canonicalNumber(value))
	case int:
		b.WriteString(strconv.FormatInt(int64(value), 10))
	case int64:
		b.WriteString(strconv.FormatInt(value, 10))
	case float64:
		b.WriteString(canonicalNumber(json.Number(strconv.FormatFloat(value, 'g', -1, 64))))
	case []any:
		b.WriteByte('[')
		for i, elem := range value {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, elem)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, value[k])
		}
		b.WriteByte('}')
	case Document:
		writeCanonical(b, map[string]any(value))
	case dictPlaceholder:
		b.WriteString(dictPlaceholderKey)
	default:
		// last resort for values that bypassed normalization
		b.WriteString(fmt.Sprintf("%v", value))
	}
}

// canonicalNumber reduces a number literal to its canonical form: the integer
// literal when the value is integral and exactly representable, the shortest
// float literal otherwise.
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil {
		return string(n)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// numberValue extracts a float64 from any of the numeric representations a
// value may carry.
func numberValue(v any) (float64, bool) {
	switch value := v.(type) {
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case float64:
		return value, true
	}
	return 0, false
}

// compareValues orders two values when they are comparable: numerically for
// numbers, lexicographically for strings. Mixed or unsupported kinds report
// not-ok instead of failing.
func compareValues(a, b any) (int, bool) {
	if fa, ok := numberValue(a); ok {
		fb, ok := numberValue(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

// typeName reports the $type name of a value: one of int, float, bool, str,
// list, null. Mapping placeholders report the empty string and therefore
// never match.
func typeName(v any) string {
	switch value := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "str"
	case []any:
		return "list"
	case json.Number:
		if _, err := value.Int64(); err == nil {
			return "int"
		}
		if f, err := value.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return "int"
		}
		return "float"
	case int, int64:
		return "int"
	case float64:
		if value == math.Trunc(value) {
			return "int"
		}
		return "float"
	}
	return ""
}

// exportValue converts internal representations (json.Number) into plain Go
// values for consumption outside the engine, e.g. by $where expressions.
func exportValue(v any) any {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}
		if f, err := value.Float64(); err == nil {
			return f
		}
		return string(value)
	case []any:
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = exportValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, elem := range value {
			out[k] = exportValue(elem)
		}
		return out
	case dictPlaceholder:
		return nil
	}
	return v
}
