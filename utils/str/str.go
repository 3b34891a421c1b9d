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

// Package str provides the string conversions used when projecting field
// values across types.
package str

import (
	"fmt"
	"strconv"

	"github.com/gridflow/gridflow/utils/json"
)

// ToString converts the value to its string representation. Numbers are
// formatted without an exponent or padding zeros, booleans as
// "true"/"false", everything else falls back to JSON.
func ToString(input interface{}) string {
	if input == nil {
		return ""
	}
	switch v := input.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.Itoa(int(v))
	case int64:
		return strconv.FormatInt(v, 10)
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		if data, err := json.Marshal(input); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", input)
	}
}

// ToStrings normalizes a value into a string slice: a single string becomes
// a singleton, []interface{} elements are converted via ToString.
func ToStrings(input interface{}) []string {
	switch v := input.(type) {
	case nil:
		return nil
	case []string:
		return v
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, ToString(item))
		}
		return out
	default:
		return []string{ToString(input)}
	}
}
