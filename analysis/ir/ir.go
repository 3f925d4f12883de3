// Copyright Lifeline Contributors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ir defines the control-flow-graph representation the analysis operates on:
// procedures, basic blocks, instructions, variables and access paths. A front end
// (see the frontend package) materializes these from source; the analysis itself
// never inspects source code.
package ir

import (
	"fmt"
	"strings"
)

// ProcName is an opaque symbol naming a procedure, unique within an analysis run.
type ProcName string

// UnitName identifies a compilation unit (a source file).
type UnitName string

// A Location is a program point. Locations are totally ordered so that "which
// invalidation happened later" is well-defined: first by unit name, then line,
// then column. The cross-unit ordering is lexicographic on the unit name; equal
// locations compare as equal.
type Location struct {
	Unit UnitName
	Line int
	Col  int
}

// Compare returns a negative number if l is before other, zero if they are the same
// location, and a positive number otherwise.
func (l Location) Compare(other Location) int {
	if l.Unit != other.Unit {
		return strings.Compare(string(l.Unit), string(other.Unit))
	}
	if l.Line != other.Line {
		return l.Line - other.Line
	}
	return l.Col - other.Col
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Unit, l.Line, l.Col)
}

// A Variable is a program variable or a compiler-introduced temporary. Synthetic is true
// for variables that do not appear literally in source, which affects the transfer
// functions. FuncShaped is true when the variable's static type is a closure or function
// pointer; reads of such values are modeled as borrows, not as direct reads.
type Variable struct {
	Name       string
	Synthetic  bool
	FuncShaped bool
}

func (v Variable) String() string { return v.Name }

// SelectorKind distinguishes the kinds of access-path selectors.
type SelectorKind int

const (
	// FieldSelector selects a named field of an aggregate.
	FieldSelector SelectorKind = iota
	// DerefSelector dereferences a pointer.
	DerefSelector
	// IndexSelector selects an array or slice element.
	IndexSelector
)

// A Selector is one step of an access path.
type Selector struct {
	Kind  SelectorKind
	Field string // field name, for FieldSelector
}

// An AccessPath is a base variable plus an optional chain of selectors. It identifies
// what an instruction reads or writes.
type AccessPath struct {
	Base      Variable
	Selectors []Selector
}

// PathOf returns the bare access path for a variable.
func PathOf(v Variable) AccessPath {
	return AccessPath{Base: v}
}

// IsBare is true when the path is a whole variable, with no selectors.
func (p AccessPath) IsBare() bool { return len(p.Selectors) == 0 }

// IsFieldOfBase is true when the path is a single field selection on the base, e.g. x.f.
func (p AccessPath) IsFieldOfBase() bool {
	return len(p.Selectors) == 1 && p.Selectors[0].Kind == FieldSelector
}

func (p AccessPath) String() string {
	var b strings.Builder
	b.WriteString(p.Base.Name)
	for _, sel := range p.Selectors {
		switch sel.Kind {
		case FieldSelector:
			b.WriteString("." + sel.Field)
		case DerefSelector:
			b.WriteString("*")
		case IndexSelector:
			b.WriteString("[]")
		}
	}
	return b.String()
}

// An Expr is the right-hand-side shape the transfer functions dispatch on. Reads lists
// the access paths the expression reads. At most one of AddrOf, Bare and Closure
// describes the shape; when none is set the expression is a plain computation.
type Expr struct {
	// Reads are the access paths read when evaluating the expression.
	Reads []AccessPath

	// AddrOf is true when the expression takes the address of its operand.
	AddrOf bool

	// Bare is non-nil when the expression is a bare reference to a single variable.
	Bare *Variable

	// Closure is true for closure constructions; CapturedByRef lists the variables the
	// closure captures by reference (captures by value are excluded).
	Closure       bool
	CapturedByRef []Variable

	// FuncShaped is true when the expression's static type is a closure or function pointer.
	FuncShaped bool
}

// VarExpr returns the expression that is a bare reference to v.
func VarExpr(v Variable) Expr {
	return Expr{Reads: []AccessPath{PathOf(v)}, Bare: &v, FuncShaped: v.FuncShaped}
}

// ReadBases returns the set of base variables read by the expression.
func (e Expr) ReadBases() map[Variable]bool {
	bases := map[Variable]bool{}
	for _, p := range e.Reads {
		bases[p.Base] = true
	}
	return bases
}
