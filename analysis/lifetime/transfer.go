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

package lifetime

import (
	"fmt"

	"github.com/lifeline-tools/lifeline/analysis/config"
	"github.com/lifeline-tools/lifeline/analysis/diag"
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/analysis/lattice"
)

// checker implements the per-instruction state-update rules of the lifetime analysis.
// Diagnostics are reported through rep as a side channel and never alter the state.
type checker struct {
	rep diag.Reporter
	log *config.LogGroup
}

// transfer is the transfer function handed to the fixpoint driver. It never mutates its
// input state.
func (c *checker) transfer(instr ir.Instr, in lattice.State) lattice.State {
	s := in.Copy()
	switch i := instr.(type) {
	case *ir.Assign:
		c.assign(s, i.LHS, i.RHS, i.ToReturnSlot, i.At)
	case *ir.Call:
		s = c.call(s, i)
	case *ir.Assume:
		c.readExpr(s, i.Cond, i.At)
	}
	return s
}

// reportUse emits a use-after-lifetime diagnostic citing both the invalidation location
// and the current use location.
func (c *checker) reportUse(v ir.Variable, invalidated ir.Location, use ir.Location) {
	c.rep.Report(diag.Diagnostic{
		Kind: diag.UseAfterLifetime,
		Msg:  fmt.Sprintf("%s used after its lifetime ended", v.Name),
		Trace: []diag.Step{
			{Loc: invalidated, Note: "lifetime ended here"},
			{Loc: use, Note: "used here"},
		},
	})
}

// reportBorrowUse is the variant for a read through a borrowing variable whose borrow
// source was invalidated.
func (c *checker) reportBorrowUse(v ir.Variable, src ir.Variable, invalidated ir.Location, use ir.Location) {
	c.rep.Report(diag.Diagnostic{
		Kind: diag.UseAfterLifetime,
		Msg:  fmt.Sprintf("%s borrows from %s, used after its lifetime ended", v.Name, src.Name),
		Trace: []diag.Step{
			{Loc: invalidated, Note: fmt.Sprintf("lifetime of %s ended here", src.Name)},
			{Loc: use, Note: "used here"},
		},
	})
}

// readVar checks the capability of v at a use location. An invalidated variable is
// reported; a borrowed one has each of its sources checked for invalidation, one level
// only: deeper borrow chains are not chased.
func (c *checker) readVar(s lattice.State, v ir.Variable, use ir.Location) {
	capOpt := s.Get(v)
	if capOpt.IsNone() {
		return // no tracked capability: permissive
	}
	switch cap := capOpt.Value().(type) {
	case lattice.Invalidated:
		c.reportUse(v, cap.At, use)
	case lattice.Borrowed:
		for src := range cap.Sources {
			if srcCap, ok := s[src].(lattice.Invalidated); ok {
				c.reportBorrowUse(v, src, srcCap.At, use)
			}
		}
	}
}

// readPath records a read of an access path. Reads of closure- or function-pointer-
// typed values are exempted: closures are modeled as borrowing, not as a direct read of
// their captured variables.
func (c *checker) readPath(s lattice.State, p ir.AccessPath, use ir.Location) {
	if p.Base.FuncShaped {
		return
	}
	c.readVar(s, p.Base, use)
}

// readExpr records reads of everything the expression reads.
func (c *checker) readExpr(s lattice.State, e ir.Expr, use ir.Location) {
	for _, p := range e.Reads {
		c.readPath(s, p, use)
	}
}

// setBorrowed makes dest borrowed from the given sources, or clears it when the source
// set is empty: a borrow needs at least one source.
func (c *checker) setBorrowed(s lattice.State, dest ir.Variable, sources map[ir.Variable]bool) {
	borrowed, err := lattice.NewBorrowed(sources)
	if err != nil {
		s.Clear(dest)
		return
	}
	s.Set(dest, borrowed)
}

// assign implements the assignment rules. Writes to a field of an aggregate base are
// treated as a whole-variable assignment to the base: field writes are assumed to
// re-initialize the entire aggregate, trading precision for fewer false positives.
// Writes to any other non-bare path record reads only, since a partial write still
// requires the base to be valid.
func (c *checker) assign(s lattice.State, lhs ir.AccessPath, rhs ir.Expr, toReturnSlot bool, at ir.Location) {
	if toReturnSlot {
		c.readExpr(s, rhs, at)
		return
	}

	if !lhs.IsBare() && !lhs.IsFieldOfBase() {
		c.readExpr(s, rhs, at)
		c.readPath(s, lhs, at)
		return
	}
	dest := lhs.Base

	switch {
	case rhs.AddrOf:
		c.setBorrowed(s, dest, rhs.ReadBases())

	case rhs.Bare != nil && rhs.Bare.Synthetic:
		// Copy the temporary's capability verbatim when present, else assume nothing.
		if cap := s.Get(*rhs.Bare); cap.IsSome() {
			s.Set(dest, cap.Value())
		} else {
			s.Clear(dest)
		}

	case rhs.Closure:
		// Closures are FuncShaped too; the capture set is more precise than the read set,
		// so this case must come first.
		byRef := map[ir.Variable]bool{}
		for _, v := range rhs.CapturedByRef {
			byRef[v] = true
		}
		c.setBorrowed(s, dest, byRef)

	case dest.FuncShaped || rhs.FuncShaped:
		c.setBorrowed(s, dest, rhs.ReadBases())

	default:
		// No capability-transfer assumption between two source-named variables.
		c.readExpr(s, rhs, at)
		s.Clear(dest)
	}
}

// call implements the call rules. It returns the state after the call, which is a fresh
// empty state for early-exit constructs: subsequent instructions on that path are
// unreachable and the empty state joins as a neutral element.
func (c *checker) call(s lattice.State, call *ir.Call) lattice.State {
	switch call.Kind {
	case ir.PlacementCall:
		// Placement construction aliases the destination with the storage it constructs
		// into: the storage becomes owned and the destination borrows it.
		if call.Recv != nil {
			storage := call.Recv.Base
			s.Set(storage, lattice.Owned{})
			if call.Dest != nil {
				c.setBorrowed(s, *call.Dest, map[ir.Variable]bool{storage: true})
			}
		}
		return s

	case ir.ReleaseCall:
		if call.SyntheticInner {
			// Compiler-generated inner destructor calls would double-flag the release.
			return s
		}
		if call.Recv == nil || !call.Recv.IsBare() {
			// Releasing through a selector path does not match the release shape; the
			// call still reads its operands like any other call.
			if call.Recv != nil {
				c.readPath(s, *call.Recv, call.At)
			}
			for _, arg := range call.Args {
				c.readExpr(s, arg, call.At)
			}
			return s
		}
		v := call.Recv.Base
		c.readPath(s, *call.Recv, call.At)
		s.Set(v, lattice.Invalidated{At: call.At})
		return s

	case ir.AssignOpCall:
		if call.Recv != nil && len(call.Args) > 0 {
			c.assign(s, *call.Recv, call.Args[0], false, call.At)
		}
		return s

	case ir.InvokeValueCall:
		// Calling a closure stored in a variable checks the callable's lifetime; the
		// closure-read exemption does not apply here.
		if call.Value != nil {
			c.readVar(s, *call.Value, call.At)
		}
		return s

	default:
		for _, arg := range call.Args {
			c.readExpr(s, arg, call.At)
		}
		switch {
		case call.AcquiresOwnership && call.Dest != nil:
			s.Set(*call.Dest, lattice.Owned{})
		case call.NoReturn:
			return lattice.NewState()
		case call.Dest != nil:
			// A call result with no specific rule is conservatively unknown.
			s.Clear(*call.Dest)
		}
		return s
	}
}
