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

// Package database is the procedure database collaborator: it answers how many
// procedures exist, enumerates call edges per compilation unit to build the call
// graph, and persists computed summaries. MemDB is the in-memory implementation
// populated by the front end.
package database

import (
	"sync"

	"github.com/lifeline-tools/lifeline/analysis/callgraph"
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/analysis/lifetime"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
)

// A DB holds the analyzed program and the summaries computed so far. Summaries of
// completed procedures are the only data shared across workers, consulted by name;
// implementations must make LookupSummary and StoreSummary safe for concurrent use.
type DB interface {
	callgraph.Source

	// ProcedureCount returns the total number of procedures. An error is fatal and
	// aborts the run: it indicates a corrupted or inaccessible analysis database.
	ProcedureCount() (int, error)

	// Units returns the compilation units of the program, in a stable order.
	Units() []ir.UnitName

	// Procedures returns the procedures defined in the unit.
	Procedures(unit ir.UnitName) []*ir.Procedure

	// Procedure looks up a procedure body by name.
	Procedure(name ir.ProcName) funcutil.Optional[*ir.Procedure]

	// LookupSummary returns the previously computed summary for the procedure, if any.
	LookupSummary(name ir.ProcName) funcutil.Optional[*lifetime.Summary]

	// StoreSummary persists the summary of a completed procedure.
	StoreSummary(s *lifetime.Summary)
}

// MemDB is the in-memory database. The procedure and edge tables are read-only after
// population; the summary map is guarded by a mutex since workers store concurrently.
type MemDB struct {
	units []ir.UnitName
	procs map[ir.UnitName][]*ir.Procedure
	byID  map[ir.ProcName]*ir.Procedure
	edges map[ir.UnitName][]callgraph.Edge

	mu        sync.Mutex
	summaries map[ir.ProcName]*lifetime.Summary
}

// NewMemDB returns an empty database.
func NewMemDB() *MemDB {
	return &MemDB{
		procs:     map[ir.UnitName][]*ir.Procedure{},
		byID:      map[ir.ProcName]*ir.Procedure{},
		edges:     map[ir.UnitName][]callgraph.Edge{},
		summaries: map[ir.ProcName]*lifetime.Summary{},
	}
}

// AddProcedure records a procedure body under its unit.
func (db *MemDB) AddProcedure(p *ir.Procedure) {
	if _, known := db.procs[p.Unit]; !known {
		db.units = append(db.units, p.Unit)
	}
	db.procs[p.Unit] = append(db.procs[p.Unit], p)
	db.byID[p.Name] = p
}

// AddEdge records a static call edge under the caller's unit.
func (db *MemDB) AddEdge(unit ir.UnitName, caller, callee ir.ProcName) {
	db.edges[unit] = append(db.edges[unit], callgraph.Edge{Caller: caller, Callee: callee})
}

// ProcedureCount implements DB.
func (db *MemDB) ProcedureCount() (int, error) {
	return len(db.byID), nil
}

// Units implements DB.
func (db *MemDB) Units() []ir.UnitName {
	out := make([]ir.UnitName, len(db.units))
	copy(out, db.units)
	return out
}

// Procedures implements DB.
func (db *MemDB) Procedures(unit ir.UnitName) []*ir.Procedure {
	return db.procs[unit]
}

// Procedure implements DB.
func (db *MemDB) Procedure(name ir.ProcName) funcutil.Optional[*ir.Procedure] {
	if p, ok := db.byID[name]; ok {
		return funcutil.Some(p)
	}
	return funcutil.None[*ir.Procedure]()
}

// ProcNames implements callgraph.Source.
func (db *MemDB) ProcNames(unit ir.UnitName) []ir.ProcName {
	return funcutil.Map(db.procs[unit], func(p *ir.Procedure) ir.ProcName { return p.Name })
}

// CallEdges implements callgraph.Source.
func (db *MemDB) CallEdges(unit ir.UnitName) ([]callgraph.Edge, error) {
	return db.edges[unit], nil
}

// LookupSummary implements DB.
func (db *MemDB) LookupSummary(name ir.ProcName) funcutil.Optional[*lifetime.Summary] {
	db.mu.Lock()
	defer db.mu.Unlock()
	if s, ok := db.summaries[name]; ok {
		return funcutil.Some(s)
	}
	return funcutil.None[*lifetime.Summary]()
}

// StoreSummary implements DB.
func (db *MemDB) StoreSummary(s *lifetime.Summary) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.summaries[s.Proc] = s
}

// Summaries returns a copy of all stored summaries, keyed by procedure name.
func (db *MemDB) Summaries() map[ir.ProcName]*lifetime.Summary {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make(map[ir.ProcName]*lifetime.Summary, len(db.summaries))
	for k, v := range db.summaries {
		out[k] = v
	}
	return out
}
