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

package condition

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/gridflow/gridflow/api/types"
)

// programs caches compiled expressions by source. Automations are few and
// long-lived, so the cache is unbounded.
var programs sync.Map

// Compile compiles an expression condition. Exposed so the registry can
// reject bad expressions at save time instead of on the first event.
func Compile(source string) (*vm.Program, error) {
	if source == "" {
		return nil, types.NewConfigurationError("expression condition cannot be empty")
	}
	if cached, ok := programs.Load(source); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(source, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, types.NewConfigurationError("invalid expression %q: %v", source, err)
	}
	programs.Store(source, program)
	return program, nil
}

// evalExpression runs an expression condition against the mutation. The
// expression sees the variables `new`, `old`, `record` (alias of new),
// `changed` and `kind`.
func evalExpression(cond types.Condition, m types.Mutation) (bool, error) {
	source, ok := cond.Value.(string)
	if !ok {
		return false, types.NewConfigurationError("expression condition value must be a string")
	}
	program, err := Compile(source)
	if err != nil {
		return false, err
	}
	env := map[string]interface{}{
		"new":     map[string]interface{}(m.NewValues),
		"old":     map[string]interface{}(m.OldValues),
		"record":  map[string]interface{}(m.NewValues),
		"changed": m.ChangedFieldIds,
		"kind":    string(m.Kind),
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, types.NewConfigurationError("expression %q failed: %v", source, err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, types.NewConfigurationError("expression %q did not return a boolean", source)
	}
	return matched, nil
}
