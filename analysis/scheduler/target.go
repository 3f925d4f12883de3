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

import "github.com/lifeline-tools/lifeline/analysis/ir"

// A Target is a unit of analysis work: either a single procedure (bottom-up
// scheduling) or a whole compilation unit (fallback scheduling). Exactly one of the
// fields is set.
type Target struct {
	Proc ir.ProcName
	Unit ir.UnitName
}

// ProcedureTarget returns the target analyzing one procedure.
func ProcedureTarget(p ir.ProcName) Target {
	return Target{Proc: p}
}

// UnitTarget returns the target analyzing every procedure of a compilation unit.
func UnitTarget(u ir.UnitName) Target {
	return Target{Unit: u}
}

// IsProc reports whether the target is a procedure target.
func (t Target) IsProc() bool { return t.Proc != "" }

func (t Target) String() string {
	if t.IsProc() {
		return "proc:" + string(t.Proc)
	}
	return "unit:" + string(t.Unit)
}
