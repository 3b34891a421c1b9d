/*
 * Copyright 2024 The GridFlow Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fieldtype

import (
	"time"

	"github.com/gridflow/gridflow/api/types"
)

// toString accepts string values only. Raw cross-shape equality (e.g. a
// number arriving where a string field is declared) is a type mismatch.
func toString(value interface{}, ft types.FieldType) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return "", types.NewConfigurationError("value %v is not a string for field type %s", value, ft)
}

// toNumber accepts the numeric shapes JSON decoding and Go callers produce.
func toNumber(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, types.NewConfigurationError("value %v is not a number", value)
	}
}

func toBool(value interface{}) (bool, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	return false, types.NewConfigurationError("value %v is not a boolean", value)
}

// toTime parses a date ("2006-01-02") or datetime (RFC3339) string. A date
// string is accepted for a datetime field with the time zeroed.
func toTime(value interface{}, ft types.FieldType) (time.Time, error) {
	s, ok := value.(string)
	if !ok {
		if t, isTime := value.(time.Time); isTime {
			return t.UTC(), nil
		}
		return time.Time{}, types.NewConfigurationError("value %v is not a %s string", value, ft)
	}
	if ft == types.FieldDate {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, types.NewConfigurationError("invalid date %q", s)
		}
		return t, nil
	}
	if t, err := time.Parse(dateTimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, types.NewConfigurationError("invalid datetime %q", s)
}

func toStringSlice(value interface{}, ft types.FieldType) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, types.NewConfigurationError("value %v is not an option id list for field type %s", value, ft)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, types.NewConfigurationError("value %v is not an option id list for field type %s", value, ft)
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

func contains(set []string, s string) bool {
	for _, item := range set {
		if item == s {
			return true
		}
	}
	return false
}
