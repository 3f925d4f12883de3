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

package fixpoint

import (
	"testing"

	"github.com/lifeline-tools/lifeline/analysis/ir"
)

// reached is a powerset domain over callee names, small enough to inspect by hand.
type reached map[string]bool

type reachedDomain struct{}

func (reachedDomain) Leq(a, b reached) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func (reachedDomain) Join(a, b reached) reached {
	out := reached{}
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func (d reachedDomain) Widen(a, b reached) reached {
	return d.Join(a, b)
}

func collectCallees(instr ir.Instr, in reached) reached {
	call, ok := instr.(*ir.Call)
	if !ok {
		return in
	}
	out := reached{}
	for k := range in {
		out[k] = true
	}
	out[string(call.Callee)] = true
	return out
}

func callInstr(name string, line int) ir.Instr {
	return &ir.Call{
		Kind:   ir.GeneralCall,
		Callee: ir.ProcName(name),
		At:     ir.Location{Unit: "test.go", Line: line, Col: 1},
	}
}

func TestRunLoopConverges(t *testing.T) {
	// b0 -> b1; b1 -> b1 (loop) and b1 -> b2 (exit).
	proc := &ir.Procedure{
		Name: "loop",
		Unit: "test.go",
		Blocks: []*ir.Block{
			{Index: 0, Instrs: []ir.Instr{callInstr("init", 1)}, Succs: []int{1}},
			{Index: 1, Instrs: []ir.Instr{callInstr("body", 2)}, Succs: []int{1, 2}},
			{Index: 2, Instrs: []ir.Instr{callInstr("done", 3)}, IsExit: true},
		},
	}

	dom := reachedDomain{}
	res := Run[reached](dom, proc, reached{}, collectCallees)

	// The back edge feeds "body" into b1's own input.
	wantIn1 := reached{"init": true, "body": true}
	if !dom.Leq(wantIn1, res.In[1]) || !dom.Leq(res.In[1], wantIn1) {
		t.Errorf("In[1] = %v, want %v", res.In[1], wantIn1)
	}
	wantSummary := reached{"init": true, "body": true, "done": true}
	if !dom.Leq(wantSummary, res.Summary) || !dom.Leq(res.Summary, wantSummary) {
		t.Errorf("Summary = %v, want %v", res.Summary, wantSummary)
	}
}

func TestRunSkipsUnreachableBlocks(t *testing.T) {
	proc := &ir.Procedure{
		Name: "dead",
		Unit: "test.go",
		Blocks: []*ir.Block{
			{Index: 0, Instrs: []ir.Instr{callInstr("live", 1)}, Succs: []int{1}},
			{Index: 1, IsExit: true},
			{Index: 2, Instrs: []ir.Instr{callInstr("never", 9)}, IsExit: true},
		},
	}

	res := Run[reached](reachedDomain{}, proc, reached{}, collectCallees)

	if _, ok := res.In[2]; ok {
		t.Errorf("unreachable block got an input state: %v", res.In[2])
	}
	if _, ok := res.Post[2]; ok {
		t.Errorf("unreachable block got a post state: %v", res.Post[2])
	}
	if res.Summary["never"] {
		t.Errorf("summary includes an unreachable call: %v", res.Summary)
	}
}

func TestRunPropagatesExceptionalEdges(t *testing.T) {
	// b0 branches to b1 normally and to the handler b2 exceptionally; both exit.
	proc := &ir.Procedure{
		Name: "handler",
		Unit: "test.go",
		Blocks: []*ir.Block{
			{Index: 0, Instrs: []ir.Instr{callInstr("risky", 1)}, Succs: []int{1}, ExSuccs: []int{2}},
			{Index: 1, Instrs: []ir.Instr{callInstr("ok", 2)}, IsExit: true},
			{Index: 2, Instrs: []ir.Instr{callInstr("recover", 3)}, IsExit: true},
		},
	}

	res := Run[reached](reachedDomain{}, proc, reached{}, collectCallees)

	if !res.In[2]["risky"] {
		t.Errorf("handler input missed the exceptional edge: %v", res.In[2])
	}
	// Summary joins both exits.
	for _, name := range []string{"risky", "ok", "recover"} {
		if !res.Summary[name] {
			t.Errorf("Summary = %v, missing %q", res.Summary, name)
		}
	}
}

func TestRunNoExitBlocksYieldsZeroSummary(t *testing.T) {
	proc := &ir.Procedure{
		Name: "spin",
		Unit: "test.go",
		Blocks: []*ir.Block{
			{Index: 0, Instrs: []ir.Instr{callInstr("spin", 1)}, Succs: []int{0}},
		},
	}

	res := Run[reached](reachedDomain{}, proc, reached{}, collectCallees)

	if res.Summary != nil {
		t.Errorf("Summary = %v, want zero value", res.Summary)
	}
}

func TestRunEmptyProcedure(t *testing.T) {
	res := Run[reached](reachedDomain{}, &ir.Procedure{Name: "empty", Unit: "test.go"}, reached{}, collectCallees)
	if len(res.In) != 0 || len(res.Post) != 0 {
		t.Errorf("empty procedure produced states: in=%v post=%v", res.In, res.Post)
	}
}
