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
	"fmt"
	"io"

	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// dotNode adapts a procedure to gonum's graph.Node with a readable DOT identifier.
type dotNode struct {
	id   int64
	name ir.ProcName
}

func (n dotNode) ID() int64     { return n.id }
func (n dotNode) DOTID() string { return fmt.Sprintf("%q", string(n.name)) }

// WriteDot renders the current graph contents in Graphviz DOT format, going through
// gonum's graph representation. Rendering a graph mid-run shows the not-yet-analyzed
// remainder.
func (g *Graph) WriteDot(w io.Writer, name string) error {
	dg := simple.NewDirectedGraph()
	ids := map[ir.ProcName]dotNode{}
	for i, procName := range funcutil.SortedKeys(g.nodes) {
		n := dotNode{id: int64(i), name: procName}
		ids[procName] = n
		dg.AddNode(n)
	}
	for procName, node := range g.nodes {
		for callee := range node.Callees {
			to, present := ids[callee]
			if !present {
				continue // callee already analyzed or external
			}
			dg.SetEdge(dg.NewEdge(ids[procName], to))
		}
	}
	b, err := dot.Marshal(dg, name, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal call graph to dot: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("could not write dot output: %w", err)
	}
	return nil
}
