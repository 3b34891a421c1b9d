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

package types

// FieldType identifies the value domain of a field.
type FieldType string

const (
	FieldText         = FieldType("text")
	FieldNumber       = FieldType("number")
	FieldDate         = FieldType("date")
	FieldDateTime     = FieldType("datetime")
	FieldEmail        = FieldType("email")
	FieldPhone        = FieldType("phone")
	FieldSingleSelect = FieldType("single_select")
	FieldMultiSelect  = FieldType("multi_select")
	FieldCheckbox     = FieldType("checkbox")
	FieldLink         = FieldType("link")
)

// SelectOption is one choice of a single_select or multi_select field.
type SelectOption struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Field belongs to one table. Field identity (Id) is stable across renames;
// the type is immutable once records reference it.
type Field struct {
	Id      string    `json:"id"`
	TableId string    `json:"tableId"`
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	// Options maps option id to its definition, for select types only.
	Options map[string]SelectOption `json:"options,omitempty"`
}

// Table is a named collection of fields and records, owned by a base.
type Table struct {
	Id     string   `json:"id"`
	BaseId string   `json:"baseId"`
	Name   string   `json:"name"`
	Fields []*Field `json:"fields"`
}

// FieldById returns the field with the given id, or nil.
func (t *Table) FieldById(fieldId string) *Field {
	for _, f := range t.Fields {
		if f.Id == fieldId {
			return f
		}
	}
	return nil
}

// Schema returns the table fields indexed by field id.
func (t *Table) Schema() map[string]*Field {
	schema := make(map[string]*Field, len(t.Fields))
	for _, f := range t.Fields {
		schema[f.Id] = f
	}
	return schema
}
