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

package callgraph

import (
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
	"github.com/yourbasic/graph"
)

// CyclicProcedures returns the procedures that sit in a call cycle (mutual recursion).
// Those nodes can never become leaves, so bottom-up scheduling will not dispatch them;
// they are swept up by the whole-unit fallback generator instead. The coordinator logs
// this count before dispatching.
func (g *Graph) CyclicProcedures() []ir.ProcName {
	names := funcutil.SortedKeys(g.nodes)
	index := make(map[ir.ProcName]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	yg := graph.New(len(names))
	for name, node := range g.nodes {
		for callee := range node.Callees {
			if j, present := index[callee]; present {
				yg.Add(index[name], j)
			}
		}
	}

	var cyclic []ir.ProcName
	for _, component := range graph.StrongComponents(yg) {
		if len(component) >= 2 {
			for _, i := range component {
				cyclic = append(cyclic, names[i])
			}
		}
	}
	return cyclic
}
