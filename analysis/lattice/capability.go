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

// Package lattice implements the capability lattice of the lifetime analysis and the
// abstract states mapping variables to capabilities. The lattice is ordered
// Owned ⊑ BorrowedFrom(S) ⊑ InvalidatedAt(loc): Owned is the most permissive element
// and InvalidatedAt the most restrictive.
package lattice

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
)

// A Capability is one element of the lattice tracked per variable. The variants are
// Owned, Borrowed and Invalidated; the interface is sealed.
type Capability interface {
	capability()
	String() string
}

// Owned grants full read/write/transfer rights. It is the bottom of the lattice.
type Owned struct{}

func (Owned) capability()    {}
func (Owned) String() string { return "Owned" }

// Borrowed means the value is not owned but derived from the resources in Sources.
// It permits read and write but not transfer. The source set is never empty.
type Borrowed struct {
	Sources map[ir.Variable]bool
}

func (Borrowed) capability() {}

func (b Borrowed) String() string {
	names := make([]string, 0, len(b.Sources))
	for v := range b.Sources {
		names = append(names, v.Name)
	}
	sort.Strings(names)
	return fmt.Sprintf("BorrowedFrom{%s}", strings.Join(names, ","))
}

// NewBorrowed constructs a Borrowed capability from the given source set. It returns an
// error when the set is empty: a borrow with no source is meaningless and callers clear
// the capability instead.
func NewBorrowed(sources map[ir.Variable]bool) (Capability, error) {
	set := map[ir.Variable]bool{}
	for v, in := range sources {
		if in {
			set[v] = true
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("borrowed capability requires a non-empty source set")
	}
	return Borrowed{Sources: set}, nil
}

// Invalidated means the variable's lifetime has ended; using it is an error. At is the
// location where the invalidation occurred, used for diagnostic reporting. It is the
// top of the lattice.
type Invalidated struct {
	At ir.Location
}

func (Invalidated) capability() {}

func (i Invalidated) String() string { return fmt.Sprintf("InvalidatedAt(%s)", i.At) }

// Leq is the partial order of the lattice. Owned is minimal and Invalidated is maximal
// regardless of location; two Invalidated compare by location, the later program point
// ordered greater so the most recent invalidation dominates. Two Borrowed compare by
// subset inclusion of their source sets.
func Leq(a, b Capability) bool {
	switch x := a.(type) {
	case Owned:
		return true
	case Borrowed:
		switch y := b.(type) {
		case Borrowed:
			return funcutil.Subset(x.Sources, y.Sources)
		case Invalidated:
			return true
		default:
			return false
		}
	case Invalidated:
		y, ok := b.(Invalidated)
		return ok && x.At.Compare(y.At) <= 0
	default:
		return false
	}
}

// Join is the least upper bound. Owned is neutral; Invalidated absorbs, preferring the
// syntactically later of two invalidation locations as the more informative one; two
// Borrowed join to the union of their source sets.
func Join(a, b Capability) Capability {
	switch x := a.(type) {
	case Owned:
		return b
	case Borrowed:
		switch y := b.(type) {
		case Owned:
			return a
		case Borrowed:
			union := map[ir.Variable]bool{}
			funcutil.Union(union, x.Sources)
			funcutil.Union(union, y.Sources)
			return Borrowed{Sources: union}
		case Invalidated:
			return b
		}
	case Invalidated:
		if y, ok := b.(Invalidated); ok {
			if x.At.Compare(y.At) >= 0 {
				return a
			}
			return b
		}
		return a
	}
	return b
}

// Widen is the widening used at loop heads. The domain has finite height per procedure
// (bounded variable count, no nesting of borrow sets), so plain join is a safe widening.
func Widen(prev, next Capability) Capability {
	return Join(prev, next)
}
