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
)

// Schedule returns the top-level task generator for a run, and the call graph it
// schedules over, for rendering and cycle statistics (nil when call-graph scheduling
// is disabled). With call-graph scheduling enabled the bottom-up generator is chained
// with the whole-unit fallback, which guarantees full coverage even when the call
// graph under-approximates real dependencies or omits unreachable procedures;
// otherwise the fallback runs alone.
func Schedule(src callgraph.Source, units []ir.UnitName, cfg *config.Config, log *config.LogGroup) (TaskGenerator[Target], *callgraph.Graph) {
	fallback := Files(units, cfg.ShuffleSeed)
	if !cfg.UseCallGraph {
		return fallback, nil
	}
	g := callgraph.NewGraph()
	return Chain(BottomUp(g, src, units, log), fallback), g
}
