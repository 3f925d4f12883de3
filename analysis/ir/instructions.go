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

package ir

// An Instr is one instruction of a procedure body. The variants are Assign, Call and
// Assume; the interface is sealed.
type Instr interface {
	Loc() Location
	instr()
}

// An Assign writes the value of RHS to the access path LHS. ToReturnSlot marks writes
// to the procedure's return slot, which the analysis treats as a read of RHS only.
type Assign struct {
	LHS          AccessPath
	RHS          Expr
	ToReturnSlot bool
	At           Location
}

func (a *Assign) Loc() Location { return a.At }
func (a *Assign) instr()        {}

// CallKind classifies calls by the shape the transfer functions dispatch on.
type CallKind int

const (
	// GeneralCall is any call with no more specific shape.
	GeneralCall CallKind = iota
	// PlacementCall constructs into existing storage referenced by the last argument.
	PlacementCall
	// ReleaseCall releases the resource held by Recv (destructor, explicit deallocation).
	ReleaseCall
	// AssignOpCall is an assignment-operator call with a bare-variable left operand.
	AssignOpCall
	// InvokeValueCall invokes a callable value stored in the variable Value.
	InvokeValueCall
)

// A Call is a procedure call. Which fields are meaningful depends on Kind; see the
// field comments.
type Call struct {
	Kind CallKind

	// Callee is the statically resolved callee name, when known.
	Callee ProcName

	// Args are the actual arguments.
	Args []Expr

	// Recv is the distinguished operand of non-general calls: the released variable for
	// ReleaseCall, the destination storage for PlacementCall, the left operand for
	// AssignOpCall.
	Recv *AccessPath

	// Value is the callable variable for InvokeValueCall.
	Value *Variable

	// Dest is the variable receiving the call's result, if any.
	Dest *Variable

	// AcquiresOwnership marks calls recognized as acquiring ownership of a fresh
	// resource into Dest.
	AcquiresOwnership bool

	// NoReturn marks early-exit constructs: abnormal termination, unconditional throw,
	// process abort.
	NoReturn bool

	// SyntheticInner marks compiler-generated inner destructor calls, which are excluded
	// from the release rule to avoid double-flagging.
	SyntheticInner bool

	At Location
}

func (c *Call) Loc() Location { return c.At }
func (c *Call) instr()        {}

// An Assume records that control reached this point with Cond evaluated; it reads Cond
// and mutates no capability.
type Assume struct {
	Cond Expr
	At   Location
}

func (a *Assume) Loc() Location { return a.At }
func (a *Assume) instr()        {}

// A Block is a basic block: a sequence of instructions with control-flow successors.
// ExSuccs are the explicit exceptional successors taken on abnormal control transfer.
// IsExit marks normal-exit blocks, whose post-states are joined into the summary.
type Block struct {
	Index   int
	Instrs  []Instr
	Succs   []int
	ExSuccs []int
	IsExit  bool
}

// A Procedure is one procedure's CFG. Blocks[0] is the entry block.
type Procedure struct {
	Name   ProcName
	Unit   UnitName
	Blocks []*Block
}

// Entry returns the entry block, or nil for an empty procedure.
func (p *Procedure) Entry() *Block {
	if len(p.Blocks) == 0 {
		return nil
	}
	return p.Blocks[0]
}
