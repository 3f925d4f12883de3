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

package lattice

import (
	"sort"
	"strings"

	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
)

// A State maps variables to capabilities. Absence of a key means "no tracked
// capability" and is treated permissively, never as an error. The empty state is the
// bottom element and joins as a neutral element, which is also how unreachable program
// points are modeled.
type State map[ir.Variable]Capability

// NewState returns an empty state.
func NewState() State {
	return State{}
}

// Get returns the capability tracked for v, or none. Callers must handle the absent
// case explicitly.
func (s State) Get(v ir.Variable) funcutil.Optional[Capability] {
	if c, ok := s[v]; ok {
		return funcutil.Some(c)
	}
	return funcutil.None[Capability]()
}

// Set records the capability of v.
func (s State) Set(v ir.Variable, c Capability) {
	s[v] = c
}

// Clear removes any capability tracked for v.
func (s State) Clear(v ir.Variable) {
	delete(s, v)
}

// Copy returns an independent copy of the state.
func (s State) Copy() State {
	t := make(State, len(s))
	for v, c := range s {
		t[v] = c
	}
	return t
}

// JoinStates returns the key-wise join of a and b. A variable tracked on only one side
// keeps its capability, so the empty state is neutral.
func JoinStates(a, b State) State {
	out := a.Copy()
	funcutil.Merge(out, b, Join)
	return out
}

// WidenStates is the widening on states, the key-wise widening of capabilities.
func WidenStates(prev, next State) State {
	out := prev.Copy()
	funcutil.Merge(out, next, Widen)
	return out
}

// LeqStates is the point-wise partial order: a ⊑ b when every variable tracked in a is
// tracked in b with a capability at least as high.
func LeqStates(a, b State) bool {
	for v, ca := range a {
		cb, ok := b[v]
		if !ok || !Leq(ca, cb) {
			return false
		}
	}
	return true
}

func (s State) String() string {
	lines := make([]string, 0, len(s))
	for v, c := range s {
		lines = append(lines, v.Name+" -> "+c.String())
	}
	sort.Strings(lines)
	return "{" + strings.Join(lines, "; ") + "}"
}

// A Domain bundles the lattice operations the fixpoint driver is parameterized over,
// so the same worklist routine can drive any analysis.
type Domain[T any] interface {
	Leq(a, b T) bool
	Join(a, b T) T
	Widen(prev, next T) T
}

// StateDomain is the Domain instantiation for capability states.
type StateDomain struct{}

// Leq implements Domain.
func (StateDomain) Leq(a, b State) bool { return LeqStates(a, b) }

// Join implements Domain.
func (StateDomain) Join(a, b State) State { return JoinStates(a, b) }

// Widen implements Domain.
func (StateDomain) Widen(prev, next State) State { return WidenStates(prev, next) }
