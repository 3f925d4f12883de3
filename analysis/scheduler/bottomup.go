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

package scheduler

import (
	"github.com/lifeline-tools/lifeline/analysis/callgraph"
	"github.com/lifeline-tools/lifeline/analysis/config"
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
)

// bottomUp dispatches procedures only once their callees are no longer pending,
// approximating optimal evaluation order without precomputing a topological sort. A
// precise topological order would be both impossible (call graphs contain cycles) and
// useless (the graph mutates continuously under concurrent completion); leaf-driven
// dispatch degrades gracefully: cyclic components never become leaves and are swept up
// by the fallback generator instead.
type bottomUp struct {
	src   callgraph.Source
	units []ir.UnitName
	log   *config.LogGroup

	graph    *callgraph.Graph
	pending  []ir.ProcName
	inFlight map[ir.ProcName]bool
}

// BottomUp returns the bottom-up call-graph generator over the given units, scheduling
// into the given graph. The graph must be owned by the same coordinator that owns the
// generator; construction is deferred until first use.
func BottomUp(g *callgraph.Graph, src callgraph.Source, units []ir.UnitName, log *config.LogGroup) TaskGenerator[Target] {
	return &bottomUp{
		src:      src,
		units:    units,
		log:      log,
		graph:    g,
		inFlight: map[ir.ProcName]bool{},
	}
}

func (b *bottomUp) ensureBuilt() {
	if b.graph.Built() {
		return
	}
	if err := b.graph.Build(b.src, b.units); err != nil {
		// Corrupted graph-construction input is internal and fatal; surfaced by the
		// coordinator through ProcedureCount, so here we log and continue with the
		// partially built graph. The chained fallback guarantees coverage.
		b.log.Errorf("call graph construction incomplete: %v", err)
	}
	b.log.Debugf("call graph built: %d procedures", b.graph.Len())
}

func (b *bottomUp) EstimatedCount() int {
	b.ensureBuilt()
	return b.graph.InitialLen()
}

// HasMoreOrMayHaveMore reports exhaustion. It is false only when the pending queue
// cannot be refilled with any leaf and no dispatched task is unfinished: the second
// condition prevents reporting premature exhaustion while sibling workers still hold
// in-flight leaves whose completion would reveal more leaves. A cyclic remainder with
// nothing in flight has no leaves at all and correctly reports exhausted.
func (b *bottomUp) HasMoreOrMayHaveMore() bool {
	b.ensureBuilt()
	if len(b.inFlight) > 0 {
		return true
	}
	if len(b.pending) == 0 {
		b.pending = b.graph.UnflaggedLeaves()
	}
	return len(b.pending) > 0
}

// ProduceNext pops the next unflagged leaf, refilling the pending queue from the
// current frontier when it is empty. A candidate that was flagged or removed while
// queued is silently discarded: such races are expected under concurrent completion.
// Returns none when no leaf is ready right now, which callers must not confuse with
// exhaustion.
func (b *bottomUp) ProduceNext() funcutil.Optional[Target] {
	b.ensureBuilt()
	if len(b.pending) == 0 {
		b.pending = b.graph.UnflaggedLeaves()
	}
	for len(b.pending) > 0 {
		id := b.pending[0]
		b.pending = b.pending[1:]
		if !b.graph.Contains(id) || b.graph.IsFlagged(id) {
			continue
		}
		b.graph.Flag(id)
		b.inFlight[id] = true
		b.log.Tracef("dispatch %s", id)
		return funcutil.Some(ProcedureTarget(id))
	}
	return funcutil.None[Target]()
}

// AcknowledgeFinished unmarks the in-flight procedure and removes its node, so its
// callers can become leaves on the next refill.
func (b *bottomUp) AcknowledgeFinished(task Target) {
	if !task.IsProc() {
		return
	}
	delete(b.inFlight, task.Proc)
	b.graph.Remove(task.Proc)
	b.log.Tracef("finished %s, %d procedures remain", task.Proc, b.graph.Len())
}
