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

// Package driver runs a whole-program analysis: a single coordinator goroutine owns
// the task generator and call graph exclusively, while parallel workers run the
// per-procedure fixpoint computation. Workers communicate with the coordinator only
// through the generator's pull/acknowledge protocol, so graph mutation stays
// single-threaded and per-procedure analysis needs no shared-state locking.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lifeline-tools/lifeline/analysis/config"
	"github.com/lifeline-tools/lifeline/analysis/database"
	"github.com/lifeline-tools/lifeline/analysis/diag"
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/analysis/lifetime"
	"github.com/lifeline-tools/lifeline/analysis/scheduler"
)

// pollInterval is how long the coordinator waits before re-asking a generator that had
// nothing ready while nothing was in flight.
const pollInterval = 10 * time.Millisecond

// A Coordinator drives one analysis run over a database.
type Coordinator struct {
	db        database.DB
	cfg       *config.Config
	log       *config.LogGroup
	collector *diag.Collector
}

// New returns a coordinator for the given database. Diagnostics are accumulated in
// collector.
func New(db database.DB, cfg *config.Config, log *config.LogGroup, collector *diag.Collector) *Coordinator {
	return &Coordinator{db: db, cfg: cfg, log: log, collector: collector}
}

// Run analyzes every procedure of the database. It returns an error only for internal
// fatal conditions (an inaccessible database, a corrupted call graph); analysis
// findings are reported through the collector and never fail the run.
func (c *Coordinator) Run() error {
	count, err := c.db.ProcedureCount()
	if err != nil {
		return fmt.Errorf("internal error: could not query procedure count: %w", err)
	}
	units := c.db.Units()
	gen, graph := scheduler.Schedule(c.db, units, c.cfg, c.log)

	// The call graph is constructed once here, in the coordinator, before any worker
	// is spawned; workers only ever see generator outputs.
	if graph != nil {
		if err := graph.Build(c.db, units); err != nil {
			return fmt.Errorf("internal error: %w", err)
		}
		if cyclic := graph.CyclicProcedures(); len(cyclic) > 0 {
			c.log.Infof("%d procedures in call cycles, covered by the whole-unit fallback", len(cyclic))
		}
	}

	workers := c.cfg.Workers()
	c.log.Infof("analyzing %d procedures in %d units with %d workers", count, len(units), workers)

	tasks := make(chan scheduler.Target)
	done := make(chan scheduler.Target)
	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				c.analyze(t)
				done <- t
			}
		}()
	}

	// All ProduceNext and AcknowledgeFinished calls happen in this loop, so generator
	// and graph state is never mutated concurrently.
	inFlight := 0
	var pending *scheduler.Target
	for {
		if pending == nil && gen.HasMoreOrMayHaveMore() {
			if next := gen.ProduceNext(); next.IsSome() {
				t := next.Value()
				pending = &t
			}
		}
		if pending == nil {
			if inFlight == 0 {
				if !gen.HasMoreOrMayHaveMore() {
					break
				}
				// Nothing ready right now and nothing running: poll again, this is not
				// exhaustion.
				time.Sleep(pollInterval)
				continue
			}
			t := <-done
			gen.AcknowledgeFinished(t)
			inFlight--
			continue
		}
		select {
		case tasks <- *pending:
			inFlight++
			pending = nil
		case t := <-done:
			gen.AcknowledgeFinished(t)
			inFlight--
		}
	}
	close(tasks)
	wg.Wait()

	c.log.Infof("analysis done, %d diagnostics", len(c.collector.Diagnostics()))
	if c.cfg.ReportSummaries {
		if err := c.writeSummaries(units); err != nil {
			c.log.Errorf("could not write summaries: %v", err)
		}
	}
	return nil
}

// analyze runs the lifetime analysis for one target. A unit target skips procedures
// already summarized by the bottom-up phase, so the fallback only covers the gaps.
func (c *Coordinator) analyze(t scheduler.Target) {
	if t.IsProc() {
		if p := c.db.Procedure(t.Proc); p.IsSome() {
			c.db.StoreSummary(lifetime.Analyze(p.Value(), c.collector, c.log))
		}
		return
	}
	for _, p := range c.db.Procedures(t.Unit) {
		if c.db.LookupSummary(p.Name).IsSome() {
			continue
		}
		c.db.StoreSummary(lifetime.Analyze(p, c.collector, c.log))
	}
}

func (c *Coordinator) writeSummaries(units []ir.UnitName) error {
	if c.cfg.ReportsDir == "" {
		return fmt.Errorf("report-summaries set but no reports-dir configured")
	}
	if err := os.MkdirAll(c.cfg.ReportsDir, 0750); err != nil {
		return fmt.Errorf("could not create reports dir: %w", err)
	}
	var names []ir.ProcName
	for _, unit := range units {
		names = append(names, c.db.ProcNames(unit)...)
	}
	path := filepath.Join(c.cfg.ReportsDir, "summaries.yaml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	defer f.Close()
	if err := database.SaveSummaries(c.db, names, f); err != nil {
		return err
	}
	c.log.Infof("summaries written to %s", path)
	return nil
}
