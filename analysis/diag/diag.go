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

// Package diag is the diagnostics collaborator: transfer functions report lifetime
// violations here as a side channel, and the CLI renders the collected diagnostics at
// the end of the run.
package diag

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lifeline-tools/lifeline/analysis/config"
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/internal/formatutil"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
)

// Kind is the error kind of a diagnostic.
type Kind string

// UseAfterLifetime reports a use of a variable after its lifetime ended.
const UseAfterLifetime Kind = "use-after-lifetime"

// A Step is one entry of a diagnostic's trace: a location and what happened there.
type Step struct {
	Loc  ir.Location
	Note string
}

// A Diagnostic is one reported violation: a kind, a primary message and an ordered
// trace of steps.
type Diagnostic struct {
	Kind  Kind
	Msg   string
	Trace []Step
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Kind, d.Msg)
	for _, step := range d.Trace {
		fmt.Fprintf(&b, "\n    %s: %s", step.Loc, step.Note)
	}
	return b.String()
}

// key identifies a diagnostic up to its kind, message and trace locations. The fixpoint
// may apply a transfer function to the same instruction several times before
// stabilizing; identical reports are kept once.
func (d Diagnostic) key() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	b.WriteString("|")
	b.WriteString(d.Msg)
	for _, step := range d.Trace {
		fmt.Fprintf(&b, "|%s", step.Loc)
	}
	return b.String()
}

// A Reporter receives diagnostics emitted during transfer-function application.
// Reporting never alters analysis control flow.
type Reporter interface {
	Report(d Diagnostic)
}

// A Collector is a Reporter accumulating deduplicated diagnostics. It is safe for
// concurrent use by parallel analysis workers.
type Collector struct {
	mu   sync.Mutex
	seen map[string]bool
	diag []Diagnostic
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{seen: map[string]bool{}}
}

// Report implements Reporter.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := d.key()
	if c.seen[k] {
		return
	}
	c.seen[k] = true
	c.diag = append(c.diag, d)
}

// Diagnostics returns the collected diagnostics sorted by the location of their first
// trace step.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diag))
	copy(out, c.diag)
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Trace) == 0 || len(out[j].Trace) == 0 {
			return len(out[i].Trace) < len(out[j].Trace)
		}
		return out[i].Trace[0].Loc.Compare(out[j].Trace[0].Loc) < 0
	})
	return out
}

// Render writes the diagnostics to the log group, coloring the primary message.
func Render(diags []Diagnostic, log *config.LogGroup) {
	funcutil.Iter(diags, func(d Diagnostic) {
		log.Errorf("%s %s", formatutil.Red(string(d.Kind)), d.Msg)
		for _, step := range d.Trace {
			log.Errorf("    %s: %s", formatutil.Faint(step.Loc.String()), step.Note)
		}
	})
}
