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

// Package scheduler decides what to analyze next. Its TaskGenerator contract is the
// entire surface the coordinator needs: a pull-based production protocol with
// completion acknowledgment, composable via chaining. All generator state is owned by
// one scheduler instance and mutated only through its methods; calls are serialized by
// the coordinator that owns the generator.
package scheduler

import "github.com/lifeline-tools/lifeline/internal/funcutil"

// A TaskGenerator produces units of work of type T on demand.
//
// ProduceNext may legitimately return none without the generator being exhausted:
// "nothing ready right now" is distinct from "permanently done", and callers must poll
// again as long as HasMoreOrMayHaveMore returns true, since concurrent completions may
// open new tasks.
type TaskGenerator[T any] interface {
	// EstimatedCount returns the expected total number of tasks, as a capacity hint for
	// progress reporting, not for correctness.
	EstimatedCount() int

	// HasMoreOrMayHaveMore returns false only once the generator is permanently
	// exhausted.
	HasMoreOrMayHaveMore() bool

	// ProduceNext returns the next task, or none when no task is available right now.
	ProduceNext() funcutil.Optional[T]

	// AcknowledgeFinished tells the generator that work on the task has completed.
	AcknowledgeFinished(task T)
}

// chain routes to generator a until it reports exhaustion, then to generator b. The
// exhaustion of a is sticky: once observed, a is considered permanently exhausted even
// if a later call would report non-empty again, because a transient "no task ready yet"
// state must not be confused with true completion for b's purposes. Note that the latch
// trips on HasMoreOrMayHaveMore reporting false, never on a transient none from
// ProduceNext.
type chain[T any] struct {
	a, b       TaskGenerator[T]
	aExhausted bool
}

// Chain composes two generators sequentially with a sticky exhaustion latch on the
// first.
func Chain[T any](a, b TaskGenerator[T]) TaskGenerator[T] {
	return &chain[T]{a: a, b: b}
}

func (c *chain[T]) EstimatedCount() int {
	return c.a.EstimatedCount() + c.b.EstimatedCount()
}

func (c *chain[T]) HasMoreOrMayHaveMore() bool {
	if !c.aExhausted {
		if c.a.HasMoreOrMayHaveMore() {
			return true
		}
		c.aExhausted = true
	}
	return c.b.HasMoreOrMayHaveMore()
}

func (c *chain[T]) ProduceNext() funcutil.Optional[T] {
	if !c.aExhausted {
		if c.a.HasMoreOrMayHaveMore() {
			return c.a.ProduceNext()
		}
		c.aExhausted = true
	}
	return c.b.ProduceNext()
}

func (c *chain[T]) AcknowledgeFinished(task T) {
	if !c.aExhausted {
		c.a.AcknowledgeFinished(task)
		return
	}
	c.b.AcknowledgeFinished(task)
}
