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

// Package lifetime implements the ownership/lifetime checker: a lattice-valued dataflow
// analysis tracking per-variable capabilities (Owned, Borrowed, Invalidated) across one
// procedure body, driven by the generic fixpoint package.
package lifetime

import (
	"github.com/lifeline-tools/lifeline/analysis/config"
	"github.com/lifeline-tools/lifeline/analysis/diag"
	"github.com/lifeline-tools/lifeline/analysis/fixpoint"
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/analysis/lattice"
)

// A Summary is the abstract post-state computed for a procedure: the join of the
// states at its normal-exit blocks. Summaries are the only analysis output that
// survives past one procedure's fixpoint computation, besides diagnostics.
type Summary struct {
	Proc ir.ProcName
	Post lattice.State
}

// Analyze runs the lifetime analysis on one procedure. The entry state is empty;
// diagnostics found along the way are reported to rep and are retained regardless of
// whether the state at the reporting point is later overwritten by widening.
func Analyze(proc *ir.Procedure, rep diag.Reporter, log *config.LogGroup) *Summary {
	c := &checker{rep: rep, log: log}
	res := fixpoint.Run[lattice.State](lattice.StateDomain{}, proc, lattice.NewState(), c.transfer)
	post := res.Summary
	if post == nil {
		post = lattice.NewState()
	}
	log.Tracef("analyzed %s: %s", proc.Name, post)
	return &Summary{Proc: proc.Name, Post: post}
}
