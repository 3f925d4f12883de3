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

// Package fixpoint implements the generic worklist algorithm iterating transfer
// functions over one procedure's CFG until the abstract state stabilizes. It is
// parameterized by a lattice.Domain so any analysis can instantiate it.
package fixpoint

import (
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/analysis/lattice"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
)

// A Transfer maps one instruction and an input abstract state to an output state.
type Transfer[T any] func(instr ir.Instr, in T) T

// A Result holds the stabilized states of one procedure. In and Post are indexed by
// block index; Summary is the join of the post-states of the normal-exit blocks, or
// the zero value of T when the procedure has none.
type Result[T any] struct {
	In      map[int]T
	Post    map[int]T
	Summary T
}

// Run iterates transfer over the blocks of proc, in a work order favoring forward
// reachability from the entry block, until no block's input state changes.
//
// A block's input is the join of the output states of all its predecessors, over both
// normal and exceptional edges. When an edge targets a block already visited in the
// current traversal it closes a loop, and the incoming state is widened instead of
// joined. A block is re-enqueued only if its computed input strictly increases in the
// domain's partial order, which guarantees termination on finite-height domains.
func Run[T any](dom lattice.Domain[T], proc *ir.Procedure, entry T, transfer Transfer[T]) Result[T] {
	res := Result[T]{In: map[int]T{}, Post: map[int]T{}}
	if len(proc.Blocks) == 0 {
		return res
	}

	visited := make([]bool, len(proc.Blocks))
	res.In[0] = entry
	worklist := []int{0}

	propagate := func(out T, succ int, worklist []int) []int {
		cur, has := res.In[succ]
		var next T
		switch {
		case !has:
			next = out
		case visited[succ]:
			next = dom.Widen(cur, out)
		default:
			next = dom.Join(cur, out)
		}
		if has && dom.Leq(next, cur) {
			return worklist
		}
		res.In[succ] = next
		if !funcutil.Contains(worklist, succ) {
			worklist = append(worklist, succ)
		}
		return worklist
	}

	for len(worklist) > 0 {
		idx := worklist[0]
		worklist = worklist[1:]
		block := proc.Blocks[idx]

		out := res.In[idx]
		for _, instr := range block.Instrs {
			out = transfer(instr, out)
		}
		res.Post[idx] = out
		visited[idx] = true

		for _, succ := range block.Succs {
			worklist = propagate(out, succ, worklist)
		}
		for _, succ := range block.ExSuccs {
			worklist = propagate(out, succ, worklist)
		}
	}

	first := true
	for _, block := range proc.Blocks {
		if !block.IsExit {
			continue
		}
		post, ok := res.Post[block.Index]
		if !ok {
			continue
		}
		if first {
			res.Summary = post
			first = false
		} else {
			res.Summary = dom.Join(res.Summary, post)
		}
	}
	return res
}
