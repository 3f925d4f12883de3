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

// Package callgraph implements the mutable directed graph of procedures and static
// call edges that drives bottom-up scheduling. The graph is owned by a single
// coordinator and is never mutated concurrently; workers only ever see scheduler
// outputs.
package callgraph

import (
	"fmt"

	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
)

// An Edge is a static call edge between two procedures.
type Edge struct {
	Caller ir.ProcName
	Callee ir.ProcName
}

// A Source enumerates the procedures and call edges of compilation units. It is the
// interface to the front-end/database collaborator that materialized the program.
type Source interface {
	// ProcNames returns the names of the procedures defined in the unit.
	ProcNames(unit ir.UnitName) []ir.ProcName

	// CallEdges returns the static call edges whose caller is defined in the unit.
	CallEdges(unit ir.UnitName) ([]Edge, error)
}

// A Node is one procedure in the graph. Flagged marks nodes currently dispatched but
// not yet finished: a flagged node is not re-dispatched, but stays visible for the
// leaf computation of other nodes until it is removed.
type Node struct {
	ID      ir.ProcName
	Callees map[ir.ProcName]bool
	Flagged bool
}

// A Graph maps procedure names to nodes. It is built once per scheduling run and
// mutated only by Flag on dispatch and Remove on completion. Leaf status is always
// recomputed from current graph contents, never cached, so the invariant
// "leaf ⇔ no present callee" holds under arbitrary removals.
type Graph struct {
	nodes      map[ir.ProcName]*Node
	built      bool
	initialLen int
}

// NewGraph returns an empty, unbuilt graph.
func NewGraph() *Graph {
	return &Graph{nodes: map[ir.ProcName]*Node{}}
}

// Build populates the graph from the call edges of the given units. It is idempotent:
// calling it again is a no-op. Construction is deferred to first use by the scheduler
// so that a large graph is never embedded into forked workers.
//
// Self edges are dropped: a node that was its own callee could never become a leaf and
// would starve its callers; direct recursion is handled by the whole-unit fallback like
// any other cycle.
func (g *Graph) Build(src Source, units []ir.UnitName) error {
	if g.built {
		return nil
	}
	for _, unit := range units {
		for _, name := range src.ProcNames(unit) {
			g.ensure(name)
		}
		edges, err := src.CallEdges(unit)
		if err != nil {
			return fmt.Errorf("could not enumerate call edges of %s: %w", unit, err)
		}
		for _, e := range edges {
			if e.Caller == e.Callee {
				continue
			}
			g.ensure(e.Caller).Callees[e.Callee] = true
			g.ensure(e.Callee)
		}
	}
	g.built = true
	g.initialLen = len(g.nodes)
	return nil
}

func (g *Graph) ensure(name ir.ProcName) *Node {
	if n, ok := g.nodes[name]; ok {
		return n
	}
	n := &Node{ID: name, Callees: map[ir.ProcName]bool{}}
	g.nodes[name] = n
	return n
}

// Built reports whether Build has completed.
func (g *Graph) Built() bool { return g.built }

// Len returns the number of nodes currently in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// InitialLen returns the number of nodes the graph had right after construction.
func (g *Graph) InitialLen() int { return g.initialLen }

// Contains reports whether the procedure is still present in the graph.
func (g *Graph) Contains(id ir.ProcName) bool {
	_, ok := g.nodes[id]
	return ok
}

// IsFlagged reports whether the procedure is currently dispatched.
func (g *Graph) IsFlagged(id ir.ProcName) bool {
	n, ok := g.nodes[id]
	return ok && n.Flagged
}

// Flag marks the procedure as dispatched. No other nodes are affected.
func (g *Graph) Flag(id ir.ProcName) {
	if n, ok := g.nodes[id]; ok {
		n.Flagged = true
	}
}

// Remove deletes the procedure from the graph entirely. This is how completing a
// procedure's analysis unblocks its callers: once a callee is removed, a caller whose
// callee set no longer intersects the graph becomes a leaf on the next
// UnflaggedLeaves call.
func (g *Graph) Remove(id ir.ProcName) {
	delete(g.nodes, id)
}

// UnflaggedLeaves returns every node that is not flagged and whose callees are all
// absent from the graph. The frontier is recomputed on every call because concurrent
// completions continuously change it. The result is sorted for deterministic logs;
// callers must not rely on the order.
func (g *Graph) UnflaggedLeaves() []ir.ProcName {
	var leaves []ir.ProcName
	for _, name := range funcutil.SortedKeys(g.nodes) {
		node := g.nodes[name]
		if node.Flagged {
			continue
		}
		isLeaf := true
		for callee := range node.Callees {
			if _, present := g.nodes[callee]; present {
				isLeaf = false
				break
			}
		}
		if isLeaf {
			leaves = append(leaves, name)
		}
	}
	return leaves
}
