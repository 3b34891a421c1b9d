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

// Package fieldtype is the registry of supported field types: their value
// domains, equality/ordering semantics and the cross-type coercions allowed
// when projecting values between tables.
package fieldtype

import (
	"strconv"
	"strings"
	"time"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/utils/str"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

// typeInfo describes one field type's semantics.
type typeInfo struct {
	// ordinal types support the ordering operators.
	ordinal bool
	// textual types compare and contain as strings.
	textual bool
	// zero is the create-time default for unmapped fields.
	zero interface{}
}

var registry = map[types.FieldType]typeInfo{
	types.FieldText:         {textual: true, zero: ""},
	types.FieldNumber:       {ordinal: true, zero: float64(0)},
	types.FieldDate:         {ordinal: true, zero: nil},
	types.FieldDateTime:     {ordinal: true, zero: nil},
	types.FieldEmail:        {textual: true, zero: ""},
	types.FieldPhone:        {textual: true, zero: ""},
	types.FieldSingleSelect: {zero: nil},
	types.FieldMultiSelect:  {zero: []string{}},
	types.FieldCheckbox:     {zero: false},
	types.FieldLink:         {textual: true, zero: ""},
}

// Known reports whether the field type is a supported one.
func Known(ft types.FieldType) bool {
	_, ok := registry[ft]
	return ok
}

// IsOrdinal reports whether the type supports ordering operators.
func IsOrdinal(ft types.FieldType) bool {
	return registry[ft].ordinal
}

// Zero returns the create-time default value for the type: empty string, 0,
// false, empty set or nil, as appropriate.
func Zero(ft types.FieldType) interface{} {
	return registry[ft].zero
}

// CanCoerce reports whether a value of the source type may be projected onto
// a field of the target type. Identity coercions always succeed.
func CanCoerce(source, target types.FieldType) bool {
	if !Known(source) || !Known(target) {
		return false
	}
	if source == target {
		return true
	}
	switch source {
	case types.FieldText:
		// pass-through onto other string-domain fields, strict parse for
		// numbers so stringified numbers survive a round trip
		return target == types.FieldEmail || target == types.FieldPhone ||
			target == types.FieldLink || target == types.FieldNumber
	case types.FieldNumber:
		return target == types.FieldText
	case types.FieldDate:
		return target == types.FieldDateTime
	case types.FieldDateTime:
		return target == types.FieldDate
	case types.FieldSingleSelect:
		return target == types.FieldMultiSelect
	case types.FieldCheckbox:
		return target == types.FieldText
	default:
		return false
	}
}

// Coerce converts a value of the source type into the target type's value
// domain. Rejected pairs and malformed values are configuration errors, not
// crashes. nil passes through untouched.
func Coerce(value interface{}, source, target types.FieldType) (interface{}, error) {
	if !CanCoerce(source, target) {
		return nil, types.NewConfigurationError("cannot coerce %s to %s", source, target)
	}
	if value == nil {
		return nil, nil
	}
	if source == target {
		return normalize(value, source)
	}
	switch {
	case source == types.FieldText && target == types.FieldNumber:
		s, err := toString(value, source)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, types.NewConfigurationError("text value %q is not numeric", s)
		}
		return n, nil
	case source == types.FieldText:
		return toString(value, source)
	case source == types.FieldNumber && target == types.FieldText:
		n, err := toNumber(value)
		if err != nil {
			return nil, err
		}
		return str.ToString(n), nil
	case source == types.FieldDate && target == types.FieldDateTime:
		t, err := toTime(value, types.FieldDate)
		if err != nil {
			return nil, err
		}
		return t.Format(dateTimeLayout), nil
	case source == types.FieldDateTime && target == types.FieldDate:
		t, err := toTime(value, types.FieldDateTime)
		if err != nil {
			return nil, err
		}
		return t.Format(dateLayout), nil
	case source == types.FieldSingleSelect && target == types.FieldMultiSelect:
		s, err := toString(value, source)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	case source == types.FieldCheckbox && target == types.FieldText:
		b, err := toBool(value)
		if err != nil {
			return nil, err
		}
		return str.ToString(b), nil
	default:
		return nil, types.NewConfigurationError("cannot coerce %s to %s", source, target)
	}
}

// normalize validates a value against its own type's domain and returns the
// canonical in-memory shape.
func normalize(value interface{}, ft types.FieldType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch ft {
	case types.FieldText, types.FieldEmail, types.FieldPhone, types.FieldLink, types.FieldSingleSelect:
		return toString(value, ft)
	case types.FieldNumber:
		return toNumber(value)
	case types.FieldDate, types.FieldDateTime:
		t, err := toTime(value, ft)
		if err != nil {
			return nil, err
		}
		if ft == types.FieldDate {
			return t.Format(dateLayout), nil
		}
		return t.Format(dateTimeLayout), nil
	case types.FieldCheckbox:
		return toBool(value)
	case types.FieldMultiSelect:
		return toStringSlice(value, ft)
	default:
		return nil, types.NewConfigurationError("unknown field type %s", ft)
	}
}

// Equal compares two values under the type's equality semantics. Comparing
// values whose shape does not match the type is a type-mismatch error.
func Equal(ft types.FieldType, a, b interface{}) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	switch ft {
	case types.FieldNumber:
		x, err := toNumber(a)
		if err != nil {
			return false, err
		}
		y, err := toNumber(b)
		if err != nil {
			return false, err
		}
		return x == y, nil
	case types.FieldDate, types.FieldDateTime:
		x, err := toTime(a, ft)
		if err != nil {
			return false, err
		}
		y, err := toTime(b, ft)
		if err != nil {
			return false, err
		}
		return x.Equal(y), nil
	case types.FieldCheckbox:
		x, err := toBool(a)
		if err != nil {
			return false, err
		}
		y, err := toBool(b)
		if err != nil {
			return false, err
		}
		return x == y, nil
	case types.FieldMultiSelect:
		x, err := toStringSlice(a, ft)
		if err != nil {
			return false, err
		}
		y, err := toStringSlice(b, ft)
		if err != nil {
			return false, err
		}
		return sameSet(x, y), nil
	default:
		x, err := toString(a, ft)
		if err != nil {
			return false, err
		}
		y, err := toString(b, ft)
		if err != nil {
			return false, err
		}
		return x == y, nil
	}
}

// Contains implements the `contains` operator: substring for string-domain
// types, membership (needle string or subset) for multi_select.
func Contains(ft types.FieldType, value, needle interface{}) (bool, error) {
	if value == nil {
		return false, nil
	}
	switch ft {
	case types.FieldMultiSelect:
		set, err := toStringSlice(value, ft)
		if err != nil {
			return false, err
		}
		wanted := str.ToStrings(needle)
		for _, w := range wanted {
			if !contains(set, w) {
				return false, nil
			}
		}
		return len(wanted) > 0, nil
	case types.FieldText, types.FieldEmail, types.FieldPhone, types.FieldLink:
		v, err := toString(value, ft)
		if err != nil {
			return false, err
		}
		n, err := toString(needle, ft)
		if err != nil {
			return false, err
		}
		return n != "" && strings.Contains(v, n), nil
	default:
		return false, types.NewConfigurationError("operator contains not supported for field type %s", ft)
	}
}

// Compare orders two values of an ordinal type: -1, 0 or 1. Applying it to a
// non-ordinal type is a configuration error.
func Compare(ft types.FieldType, a, b interface{}) (int, error) {
	if !IsOrdinal(ft) {
		return 0, types.NewConfigurationError("ordering operators not supported for field type %s", ft)
	}
	switch ft {
	case types.FieldNumber:
		x, err := toNumber(a)
		if err != nil {
			return 0, err
		}
		y, err := toNumber(b)
		if err != nil {
			return 0, err
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	default: // date, datetime
		x, err := toTime(a, ft)
		if err != nil {
			return 0, err
		}
		y, err := toTime(b, ft)
		if err != nil {
			return 0, err
		}
		switch {
		case x.Before(y):
			return -1, nil
		case x.After(y):
			return 1, nil
		default:
			return 0, nil
		}
	}
}

// ValidateValue checks that a value's shape is valid for the field,
// including select option ids.
func ValidateValue(f *types.Field, value interface{}) error {
	if value == nil {
		return nil
	}
	normalized, err := normalize(value, f.Type)
	if err != nil {
		return err
	}
	switch f.Type {
	case types.FieldSingleSelect:
		optionId := normalized.(string)
		if optionId != "" && f.Options != nil {
			if _, ok := f.Options[optionId]; !ok {
				return types.NewConfigurationError("unknown option %q for field %s", optionId, f.Id)
			}
		}
	case types.FieldMultiSelect:
		for _, optionId := range normalized.([]string) {
			if f.Options != nil {
				if _, ok := f.Options[optionId]; !ok {
					return types.NewConfigurationError("unknown option %q for field %s", optionId, f.Id)
				}
			}
		}
	}
	return nil
}
