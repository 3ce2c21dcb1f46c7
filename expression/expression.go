/*
 * Copyright 2025 The RuleGo Authors.
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

// Package expression compiles plan expressions into evaluators bound to records.
//
// Expressions use the expr-lang syntax (a + b, price * 1.1 > 10 and name != "x",
// upper(name)) with the functions of a functions.Registry in scope. Record fields
// are variables; the event time is available as _ts.
//
// Null semantics follow SQL: an expression that fails because one of the fields
// it reads is null evaluates to null instead of failing the stage, and a null
// predicate result filters the record out.
package expression

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/rulego/streamflow/functions"
	"github.com/rulego/streamflow/types"
)

// Evaluator computes a value from a record.
type Evaluator interface {
	Eval(rec *types.Record) (interface{}, error)
}

// EvalError is a per-record evaluation failure.
type EvalError struct {
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Expr, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// ErrNotBoolean is returned when a predicate yields a non-boolean value.
var ErrNotBoolean = errors.New("predicate result is not boolean")

// Compiler turns expression source into evaluators. It is safe for
// concurrent use once created.
type Compiler struct {
	registry *functions.Registry

	once    sync.Once
	options []expr.Option
}

// NewCompiler creates a compiler resolving function calls against reg.
func NewCompiler(reg *functions.Registry) *Compiler {
	if reg == nil {
		reg = functions.NewBuiltinRegistry()
	}
	return &Compiler{registry: reg}
}

// exprOptions exposes every registered scalar function to expr. Registered
// functions take precedence over expr built-ins of the same name.
func (c *Compiler) exprOptions() []expr.Option {
	c.once.Do(func() {
		opts := []expr.Option{expr.AllowUndefinedVariables()}
		for _, fn := range c.registry.Scalars() {
			f := fn
			opts = append(opts, expr.Function(f.Name(), func(params ...interface{}) (interface{}, error) {
				return f.Eval(params...)
			}))
		}
		c.options = opts
	})
	return c.options
}

// Compile compiles a value expression. A bare field name compiles to a direct
// field read so the value keeps its exact type.
func (c *Compiler) Compile(source string) (Evaluator, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return nil, fmt.Errorf("empty expression")
	}
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	if ident, ok := tree.Node.(*ast.IdentifierNode); ok {
		if _, isFunc := c.registry.Scalar(ident.Value); !isFunc {
			return FieldRef(ident.Value), nil
		}
	}
	program, err := expr.Compile(src, c.exprOptions()...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Program{source: src, program: program, idents: identifiers(tree.Node)}, nil
}

// CompilePredicate compiles a boolean expression.
func (c *Compiler) CompilePredicate(source string) (*Predicate, error) {
	ev, err := c.Compile(source)
	if err != nil {
		return nil, err
	}
	return &Predicate{source: strings.TrimSpace(source), eval: ev}, nil
}

// identifiers lists the distinct names an expression reads.
func identifiers(node ast.Node) []string {
	collector := &identCollector{seen: map[string]bool{}}
	ast.Walk(&node, collector)
	return collector.names
}

type identCollector struct {
	seen  map[string]bool
	names []string
}

func (v *identCollector) Visit(node *ast.Node) {
	if ident, ok := (*node).(*ast.IdentifierNode); ok && !v.seen[ident.Value] {
		v.seen[ident.Value] = true
		v.names = append(v.names, ident.Value)
	}
}

// Program is a compiled expr-lang program.
type Program struct {
	source  string
	program *vm.Program
	idents  []string
}

// Source returns the expression text.
func (p *Program) Source() string {
	return p.source
}

// Fields returns the identifiers the expression reads.
func (p *Program) Fields() []string {
	return p.idents
}

func (p *Program) Eval(rec *types.Record) (interface{}, error) {
	env := rec.Env()
	out, err := expr.Run(p.program, env)
	if err != nil {
		if p.readsNull(env) && nilOperand(err) {
			return nil, nil
		}
		return nil, &EvalError{Expr: p.source, Err: err}
	}
	return out, nil
}

func (p *Program) readsNull(env map[string]interface{}) bool {
	for _, name := range p.idents {
		if v, ok := env[name]; ok && v == nil {
			return true
		}
	}
	return false
}

// nilOperand reports whether err came from an operation on a null value.
// expr-lang names such operands "<nil>" in arithmetic and fetch errors and
// "is nil" in failed type assertions inside builtins.
func nilOperand(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "<nil>") || strings.Contains(msg, "is nil")
}

// FieldRef reads one field of the record.
type FieldRef string

func (f FieldRef) Eval(rec *types.Record) (interface{}, error) {
	if string(f) == types.TimestampField {
		return rec.Timestamp, nil
	}
	v, ok := rec.Get(string(f))
	if !ok {
		return nil, &EvalError{Expr: string(f), Err: fmt.Errorf("unknown field %s in %s", string(f), rec.Schema)}
	}
	return v, nil
}

// Predicate evaluates a filter condition with SQL three-valued logic
// collapsed to two values: null is false.
type Predicate struct {
	source string
	eval   Evaluator
}

// Source returns the predicate text.
func (p *Predicate) Source() string {
	return p.source
}

// Test reports whether rec satisfies the predicate.
func (p *Predicate) Test(rec *types.Record) (bool, error) {
	v, err := p.eval.Eval(rec)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	default:
		return false, &EvalError{Expr: p.source, Err: fmt.Errorf("%w: got %T", ErrNotBoolean, v)}
	}
}

// Eval makes a Predicate usable wherever an Evaluator is expected.
func (p *Predicate) Eval(rec *types.Record) (interface{}, error) {
	return p.eval.Eval(rec)
}

// Const is an evaluator returning a fixed value.
type Const struct {
	Value interface{}
}

func (c Const) Eval(*types.Record) (interface{}, error) {
	return c.Value, nil
}
