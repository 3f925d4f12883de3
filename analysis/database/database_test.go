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

package database

import (
	"strings"
	"testing"

	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/analysis/lattice"
	"github.com/lifeline-tools/lifeline/analysis/lifetime"
)

func proc(name ir.ProcName, unit ir.UnitName) *ir.Procedure {
	return &ir.Procedure{Name: name, Unit: unit, Blocks: []*ir.Block{{Index: 0, IsExit: true}}}
}

func TestMemDBLookup(t *testing.T) {
	db := NewMemDB()
	db.AddProcedure(proc("a", "u1.go"))
	db.AddProcedure(proc("b", "u1.go"))
	db.AddProcedure(proc("c", "u2.go"))

	if n, err := db.ProcedureCount(); err != nil || n != 3 {
		t.Errorf("ProcedureCount = %d, %v, want 3, nil", n, err)
	}
	if units := db.Units(); len(units) != 2 || units[0] != "u1.go" || units[1] != "u2.go" {
		t.Errorf("Units = %v, want [u1.go u2.go] in insertion order", units)
	}
	if got := db.ProcNames("u1.go"); len(got) != 2 {
		t.Errorf("ProcNames(u1.go) = %v, want two names", got)
	}
	if db.Procedure("a").IsNone() {
		t.Errorf("Procedure(a) not found")
	}
	if db.Procedure("zzz").IsSome() {
		t.Errorf("Procedure(zzz) should be absent")
	}
}

func TestMemDBEdges(t *testing.T) {
	db := NewMemDB()
	db.AddProcedure(proc("a", "u.go"))
	db.AddProcedure(proc("b", "u.go"))
	db.AddEdge("u.go", "a", "b")

	edges, err := db.CallEdges("u.go")
	if err != nil {
		t.Fatalf("CallEdges failed: %v", err)
	}
	if len(edges) != 1 || edges[0].Caller != "a" || edges[0].Callee != "b" {
		t.Errorf("CallEdges = %v, want [a -> b]", edges)
	}
}

func TestMemDBSummaries(t *testing.T) {
	db := NewMemDB()
	db.AddProcedure(proc("a", "u.go"))

	if db.LookupSummary("a").IsSome() {
		t.Fatalf("summary present before storing")
	}
	db.StoreSummary(&lifetime.Summary{Proc: "a", Post: lattice.NewState()})
	if db.LookupSummary("a").IsNone() {
		t.Fatalf("summary absent after storing")
	}
	if got := db.Summaries(); len(got) != 1 || got["a"] == nil {
		t.Errorf("Summaries = %v, want one entry for a", got)
	}
}

func TestSaveSummaries(t *testing.T) {
	db := NewMemDB()
	db.AddProcedure(proc("b", "u.go"))
	db.AddProcedure(proc("a", "u.go"))

	post := lattice.NewState()
	post.Set(ir.Variable{Name: "r"}, lattice.Owned{})
	db.StoreSummary(&lifetime.Summary{Proc: "b", Post: post})
	db.StoreSummary(&lifetime.Summary{Proc: "a", Post: lattice.NewState()})

	var out strings.Builder
	if err := SaveSummaries(db, []ir.ProcName{"b", "a", "unsummarized"}, &out); err != nil {
		t.Fatalf("SaveSummaries failed: %v", err)
	}
	got := out.String()

	// Sorted by procedure name, procedures without summaries skipped.
	ia, ib := strings.Index(got, "proc: a"), strings.Index(got, "proc: b")
	if ia < 0 || ib < 0 || ia > ib {
		t.Errorf("records missing or out of order:\n%s", got)
	}
	if strings.Contains(got, "unsummarized") {
		t.Errorf("skipped procedure leaked into output:\n%s", got)
	}
	if !strings.Contains(got, "r: Owned") {
		t.Errorf("capability rendering missing:\n%s", got)
	}
}
