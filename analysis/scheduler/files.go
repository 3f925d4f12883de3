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
	"math/rand"

	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/internal/funcutil"
)

// files enumerates all compilation units exactly once, in a fixed-seed pseudorandom
// permutation: deterministic across runs, but decorrelated from build order to avoid
// pathological scheduling skew. Units have no dependency tracking, so acknowledgment
// is a no-op. Used standalone or as the safety net chained after the bottom-up
// generator, covering cycles and call-graph construction gaps.
type files struct {
	units []ir.UnitName
	next  int
}

// Files returns the whole-unit fallback generator over the given units, shuffled with
// the given seed.
func Files(units []ir.UnitName, seed int64) TaskGenerator[Target] {
	shuffled := make([]ir.UnitName, len(units))
	copy(shuffled, units)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return &files{units: shuffled}
}

func (f *files) EstimatedCount() int {
	return len(f.units)
}

func (f *files) HasMoreOrMayHaveMore() bool {
	return f.next < len(f.units)
}

func (f *files) ProduceNext() funcutil.Optional[Target] {
	if f.next >= len(f.units) {
		return funcutil.None[Target]()
	}
	unit := f.units[f.next]
	f.next++
	return funcutil.Some(UnitTarget(unit))
}

func (f *files) AcknowledgeFinished(Target) {}
