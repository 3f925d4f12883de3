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
	"io"
	"testing"

	"github.com/lifeline-tools/lifeline/analysis/config"
	"github.com/lifeline-tools/lifeline/analysis/diag"
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/analysis/lattice"
)

func testLog() *config.LogGroup {
	log := config.NewLogGroup(config.NewDefault())
	log.SetAllOutput(io.Discard)
	return log
}

func v(name string) ir.Variable {
	return ir.Variable{Name: name}
}

func at(line int) ir.Location {
	return ir.Location{Unit: "test.go", Line: line, Col: 1}
}

// oneBlock builds a straight-line procedure with a single exit block.
func oneBlock(instrs ...ir.Instr) *ir.Procedure {
	return &ir.Procedure{
		Name:   "f",
		Unit:   "test.go",
		Blocks: []*ir.Block{{Index: 0, Instrs: instrs, IsExit: true}},
	}
}

func borrowAssign(dest, src ir.Variable, l ir.Location) ir.Instr {
	return &ir.Assign{
		LHS: ir.PathOf(dest),
		RHS: ir.Expr{Reads: []ir.AccessPath{ir.PathOf(src)}, AddrOf: true},
		At:  l,
	}
}

func release(target ir.Variable, l ir.Location) ir.Instr {
	p := ir.PathOf(target)
	return &ir.Call{Kind: ir.ReleaseCall, Callee: "free", Recv: &p, At: l}
}

func use(arg ir.Variable, l ir.Location) ir.Instr {
	return &ir.Call{Kind: ir.GeneralCall, Callee: "use", Args: []ir.Expr{ir.VarExpr(arg)}, At: l}
}

func acquire(dest ir.Variable, l ir.Location) ir.Instr {
	d := dest
	return &ir.Call{Kind: ir.GeneralCall, Callee: "acquire", Dest: &d, AcquiresOwnership: true, At: l}
}

func analyze(t *testing.T, proc *ir.Procedure) (*Summary, []diag.Diagnostic) {
	t.Helper()
	collector := diag.NewCollector()
	s := Analyze(proc, collector, testLog())
	return s, collector.Diagnostics()
}

func TestUseAfterRelease(t *testing.T) {
	p, x := v("p"), v("x")
	_, diags := analyze(t, oneBlock(
		borrowAssign(p, x, at(1)),
		use(p, at(2)),
		release(p, at(3)),
		use(p, at(4)),
	))

	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want exactly 1: %v", len(diags), diags)
	}
	d := diags[0]
	if d.Kind != diag.UseAfterLifetime {
		t.Errorf("kind = %s, want %s", d.Kind, diag.UseAfterLifetime)
	}
	if len(d.Trace) != 2 {
		t.Fatalf("trace has %d steps, want 2: %v", len(d.Trace), d.Trace)
	}
	if d.Trace[0].Loc != at(3) {
		t.Errorf("invalidation cited at %s, want %s", d.Trace[0].Loc, at(3))
	}
	if d.Trace[1].Loc != at(4) {
		t.Errorf("use cited at %s, want %s", d.Trace[1].Loc, at(4))
	}
}

func TestBorrowSourceInvalidated(t *testing.T) {
	x, b := v("x"), v("b")
	_, diags := analyze(t, oneBlock(
		acquire(x, at(1)),
		borrowAssign(b, x, at(2)),
		release(x, at(3)),
		use(b, at(4)),
	))

	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want exactly 1: %v", len(diags), diags)
	}
	d := diags[0]
	if want := "b borrows from x, used after its lifetime ended"; d.Msg != want {
		t.Errorf("msg = %q, want %q", d.Msg, want)
	}
	if d.Trace[0].Loc != at(3) || d.Trace[1].Loc != at(4) {
		t.Errorf("trace = %v, want invalidation at %s and use at %s", d.Trace, at(3), at(4))
	}
}

func TestAcquireThenUseIsClean(t *testing.T) {
	r := v("r")
	sum, diags := analyze(t, oneBlock(
		acquire(r, at(1)),
		use(r, at(2)),
	))

	if len(diags) != 0 {
		t.Fatalf("got diagnostics for a clean procedure: %v", diags)
	}
	cap := sum.Post.Get(r)
	if cap.IsNone() {
		t.Fatalf("summary has no capability for r: %s", sum.Post)
	}
	if _, owned := cap.Value().(lattice.Owned); !owned {
		t.Errorf("r = %s in summary, want Owned", cap.Value())
	}
}

// A use after an early-exit call is unreachable and must not be reported.
func TestNoReturnCutsThePath(t *testing.T) {
	p, x := v("p"), v("x")
	_, diags := analyze(t, oneBlock(
		borrowAssign(p, x, at(1)),
		release(p, at(2)),
		&ir.Call{Kind: ir.GeneralCall, Callee: "os.Exit", NoReturn: true, At: at(3)},
		use(p, at(4)),
	))

	if len(diags) != 0 {
		t.Errorf("got diagnostics past a no-return call: %v", diags)
	}
}

// Writing a field of a released aggregate re-initializes the whole aggregate.
func TestFieldWriteReinitializesBase(t *testing.T) {
	x, y := v("x"), v("y")
	_, diags := analyze(t, oneBlock(
		borrowAssign(x, y, at(1)),
		release(x, at(2)),
		&ir.Assign{
			LHS: ir.AccessPath{Base: x, Selectors: []ir.Selector{{Kind: ir.FieldSelector, Field: "f"}}},
			RHS: ir.Expr{},
			At:  at(3),
		},
		use(x, at(4)),
	))

	if len(diags) != 0 {
		t.Errorf("field write should re-initialize the base: %v", diags)
	}
}

// A deeper path write is a read of the base, not a re-initialization.
func TestDeepPathWriteReadsBase(t *testing.T) {
	x, y := v("x"), v("y")
	_, diags := analyze(t, oneBlock(
		borrowAssign(x, y, at(1)),
		release(x, at(2)),
		&ir.Assign{
			LHS: ir.AccessPath{Base: x, Selectors: []ir.Selector{
				{Kind: ir.FieldSelector, Field: "f"},
				{Kind: ir.FieldSelector, Field: "g"},
			}},
			RHS: ir.Expr{},
			At:  at(3),
		},
	))

	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want exactly 1: %v", len(diags), diags)
	}
	if diags[0].Trace[1].Loc != at(3) {
		t.Errorf("use cited at %s, want %s", diags[0].Trace[1].Loc, at(3))
	}
}

// A synthetic temporary hands its capability over verbatim.
func TestCapabilityFlowsThroughTemporary(t *testing.T) {
	x, y := v("x"), v("y")
	tmp := ir.Variable{Name: "t0", Synthetic: true}
	_, diags := analyze(t, oneBlock(
		borrowAssign(tmp, x, at(1)),
		&ir.Assign{LHS: ir.PathOf(y), RHS: ir.VarExpr(tmp), At: at(2)},
		release(x, at(3)),
		use(y, at(4)),
	))

	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want exactly 1: %v", len(diags), diags)
	}
	if want := "y borrows from x, used after its lifetime ended"; diags[0].Msg != want {
		t.Errorf("msg = %q, want %q", diags[0].Msg, want)
	}
}

// Passing a closure around is not a use of its captures, but calling it through a
// variable checks the captured lifetimes.
func TestClosureCaptureAndInvoke(t *testing.T) {
	x := v("x")
	c := ir.Variable{Name: "c", FuncShaped: true}

	makeClosure := &ir.Assign{
		LHS: ir.PathOf(c),
		RHS: ir.Expr{Closure: true, CapturedByRef: []ir.Variable{x}, FuncShaped: true},
		At:  at(1),
	}

	t.Run("passing the closure is exempt", func(t *testing.T) {
		_, diags := analyze(t, oneBlock(
			makeClosure,
			release(x, at(2)),
			use(c, at(3)),
		))
		if len(diags) != 0 {
			t.Errorf("passing a dangling closure reported a use: %v", diags)
		}
	})

	t.Run("invoking the closure is a use", func(t *testing.T) {
		cv := c
		_, diags := analyze(t, oneBlock(
			makeClosure,
			release(x, at(2)),
			&ir.Call{Kind: ir.InvokeValueCall, Value: &cv, At: at(3)},
		))
		if len(diags) != 1 {
			t.Fatalf("got %d diagnostics, want exactly 1: %v", len(diags), diags)
		}
		if want := "c borrows from x, used after its lifetime ended"; diags[0].Msg != want {
			t.Errorf("msg = %q, want %q", diags[0].Msg, want)
		}
	})
}

// Releasing through a selector path does not match the release shape, but it still
// reads the base: freeing a field of an already-released aggregate is a use.
func TestReleaseThroughPathIsARead(t *testing.T) {
	p, x := v("p"), v("x")
	field := ir.AccessPath{Base: p, Selectors: []ir.Selector{{Kind: ir.FieldSelector, Field: "f"}}}
	sum, diags := analyze(t, oneBlock(
		borrowAssign(p, x, at(1)),
		release(p, at(2)),
		&ir.Call{
			Kind:   ir.ReleaseCall,
			Callee: "free",
			Recv:   &field,
			Args:   []ir.Expr{{Reads: []ir.AccessPath{field}}},
			At:     at(3),
		},
	))

	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want exactly 1: %v", len(diags), diags)
	}
	if diags[0].Trace[0].Loc != at(2) || diags[0].Trace[1].Loc != at(3) {
		t.Errorf("trace = %v, want invalidation at %s and use at %s", diags[0].Trace, at(2), at(3))
	}
	// The base keeps its original invalidation; a path release invalidates nothing new.
	cap := sum.Post.Get(p)
	if cap.IsNone() {
		t.Fatalf("no capability for p in summary: %s", sum.Post)
	}
	if inv, ok := cap.Value().(lattice.Invalidated); !ok || inv.At != at(2) {
		t.Errorf("p = %s in summary, want InvalidatedAt(%s)", cap.Value(), at(2))
	}
}

// Compiler-generated inner destructor calls do not invalidate again.
func TestSyntheticInnerReleaseIsSkipped(t *testing.T) {
	p, x := v("p"), v("x")
	recv := ir.PathOf(p)
	_, diags := analyze(t, oneBlock(
		borrowAssign(p, x, at(1)),
		&ir.Call{Kind: ir.ReleaseCall, Callee: "free", Recv: &recv, SyntheticInner: true, At: at(2)},
		use(p, at(3)),
	))

	if len(diags) != 0 {
		t.Errorf("synthetic inner release should not invalidate: %v", diags)
	}
}

// Placement construction gives the storage ownership and makes the handle borrow it.
func TestPlacementConstruction(t *testing.T) {
	buf := v("buf")
	h := v("h")
	recv := ir.PathOf(buf)

	sum, diags := analyze(t, oneBlock(
		&ir.Call{Kind: ir.PlacementCall, Callee: "new", Recv: &recv, Dest: &h, At: at(1)},
	))
	if len(diags) != 0 {
		t.Fatalf("placement construction reported: %v", diags)
	}
	if cap := sum.Post.Get(buf); cap.IsNone() {
		t.Fatalf("no capability for the storage: %s", sum.Post)
	} else if _, owned := cap.Value().(lattice.Owned); !owned {
		t.Errorf("storage = %s, want Owned", cap.Value())
	}
	if cap := sum.Post.Get(h); cap.IsNone() {
		t.Fatalf("no capability for the handle: %s", sum.Post)
	} else if b, ok := cap.Value().(lattice.Borrowed); !ok || !b.Sources[buf] {
		t.Errorf("handle = %s, want BorrowedFrom{buf}", cap.Value())
	}

	// Releasing the storage makes the handle dangle.
	_, diags = analyze(t, oneBlock(
		&ir.Call{Kind: ir.PlacementCall, Callee: "new", Recv: &recv, Dest: &h, At: at(1)},
		release(buf, at(2)),
		use(h, at(3)),
	))
	if len(diags) != 1 {
		t.Errorf("got %d diagnostics through the placement handle, want 1: %v", len(diags), diags)
	}
}

// Compound assignment operators behave like the corresponding plain assignment.
func TestAssignOpCall(t *testing.T) {
	x, y := v("x"), v("y")
	recv := ir.PathOf(y)
	_, diags := analyze(t, oneBlock(
		&ir.Call{
			Kind: ir.AssignOpCall,
			Recv: &recv,
			Args: []ir.Expr{{Reads: []ir.AccessPath{ir.PathOf(x)}, AddrOf: true}},
			At:   at(1),
		},
		release(x, at(2)),
		use(y, at(3)),
	))

	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want exactly 1: %v", len(diags), diags)
	}
	if want := "y borrows from x, used after its lifetime ended"; diags[0].Msg != want {
		t.Errorf("msg = %q, want %q", diags[0].Msg, want)
	}
}

// When both branches invalidate, the join keeps the later invalidation location and the
// diagnostic at the merge point cites it.
func TestJoinPrefersLaterInvalidation(t *testing.T) {
	p, x := v("p"), v("x")
	proc := &ir.Procedure{
		Name: "f",
		Unit: "test.go",
		Blocks: []*ir.Block{
			{Index: 0, Instrs: []ir.Instr{
				borrowAssign(p, x, at(1)),
				&ir.Assume{Cond: ir.Expr{}, At: at(1)},
			}, Succs: []int{1, 2}},
			{Index: 1, Instrs: []ir.Instr{release(p, at(2))}, Succs: []int{3}},
			{Index: 2, Instrs: []ir.Instr{release(p, at(5))}, Succs: []int{3}},
			{Index: 3, Instrs: []ir.Instr{use(p, at(7))}, IsExit: true},
		},
	}

	sum, diags := analyze(t, proc)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want exactly 1: %v", len(diags), diags)
	}
	if diags[0].Trace[0].Loc != at(5) {
		t.Errorf("invalidation cited at %s, want the later release %s", diags[0].Trace[0].Loc, at(5))
	}
	cap := sum.Post.Get(p)
	if cap.IsNone() {
		t.Fatalf("no capability for p in summary: %s", sum.Post)
	}
	if inv, ok := cap.Value().(lattice.Invalidated); !ok || inv.At != at(5) {
		t.Errorf("p = %s in summary, want InvalidatedAt(%s)", cap.Value(), at(5))
	}
}

// Plain assignment between two source-named variables transfers nothing.
func TestNoCapabilityTransferBetweenNamedVariables(t *testing.T) {
	x, y := v("x"), v("y")
	_, diags := analyze(t, oneBlock(
		acquire(x, at(1)),
		&ir.Assign{LHS: ir.PathOf(y), RHS: ir.VarExpr(x), At: at(2)},
		release(x, at(3)),
		use(y, at(4)),
	))

	if len(diags) != 0 {
		t.Errorf("named-to-named assignment should not transfer the capability: %v", diags)
	}
}
