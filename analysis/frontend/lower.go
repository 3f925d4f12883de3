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

package frontend

import (
	"go/token"
	"go/types"

	"github.com/lifeline-tools/lifeline/analysis/config"
	"github.com/lifeline-tools/lifeline/analysis/database"
	"github.com/lifeline-tools/lifeline/analysis/ir"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/ssa"
)

// Lower populates a procedure database from a loaded program: one ir.Procedure per
// SSA function in a package matching the config filter, and per-unit call edges from
// the static call graph. A compilation unit is a source file.
func Lower(lp LoadedProgram, cfg *config.Config, log *config.LogGroup) *database.MemDB {
	db := database.NewMemDB()
	l := &lowerer{fset: lp.Program.Fset, cfg: cfg}

	var fns []*ssa.Function
	for _, pkg := range lp.Packages {
		if pkg == nil || !cfg.MatchPkgFilter(pkg.Pkg.Path()) {
			continue
		}
		for _, member := range pkg.Members {
			if fn, ok := member.(*ssa.Function); ok {
				fns = append(fns, fn)
				fns = append(fns, fn.AnonFuncs...)
			}
		}
	}

	for _, fn := range fns {
		if len(fn.Blocks) == 0 {
			continue
		}
		db.AddProcedure(l.lowerFunc(fn))
	}

	// Static call edges, restricted to procedures present in the database so that an
	// external callee never blocks its callers.
	cg := static.CallGraph(lp.Program)
	for fn, node := range cg.Nodes {
		if fn == nil || db.Procedure(procName(fn)).IsNone() {
			continue
		}
		unit := l.unitOf(fn)
		for _, e := range node.Out {
			if e.Callee == nil || e.Callee.Func == nil {
				continue
			}
			callee := procName(e.Callee.Func)
			if db.Procedure(callee).IsSome() {
				db.AddEdge(unit, procName(fn), callee)
			}
		}
	}

	n, _ := db.ProcedureCount()
	log.Infof("lowered %d procedures", n)
	return db
}

type lowerer struct {
	fset *token.FileSet
	cfg  *config.Config
}

func procName(fn *ssa.Function) ir.ProcName {
	return ir.ProcName(fn.String())
}

func (l *lowerer) unitOf(fn *ssa.Function) ir.UnitName {
	if pos := fn.Pos(); pos.IsValid() {
		return ir.UnitName(l.fset.Position(pos).Filename)
	}
	if fn.Pkg != nil {
		return ir.UnitName(fn.Pkg.Pkg.Path())
	}
	return "<unknown>"
}

func (l *lowerer) loc(unit ir.UnitName, pos token.Pos) ir.Location {
	if !pos.IsValid() {
		return ir.Location{Unit: unit}
	}
	p := l.fset.Position(pos)
	return ir.Location{Unit: unit, Line: p.Line, Col: p.Column}
}

func isFuncShaped(t types.Type) bool {
	_, ok := t.Underlying().(*types.Signature)
	return ok
}

// variable maps an SSA value to an ir variable. SSA registers are synthetic; only
// parameters, free variables, globals and named allocs appear literally in source.
func variable(v ssa.Value) ir.Variable {
	name := v.Name()
	synthetic := true
	switch a := v.(type) {
	case *ssa.Parameter, *ssa.FreeVar, *ssa.Global:
		synthetic = false
	case *ssa.Alloc:
		if a.Comment != "" {
			name = a.Comment
			synthetic = false
		}
	}
	return ir.Variable{Name: name, Synthetic: synthetic, FuncShaped: isFuncShaped(v.Type())}
}

// pathOfAddr maps an SSA address operand to an access path.
func pathOfAddr(addr ssa.Value) ir.AccessPath {
	switch a := addr.(type) {
	case *ssa.FieldAddr:
		base := pathOfAddr(a.X)
		field := ""
		if ptr, ok := a.X.Type().Underlying().(*types.Pointer); ok {
			if st, ok := ptr.Elem().Underlying().(*types.Struct); ok && a.Field < st.NumFields() {
				field = st.Field(a.Field).Name()
			}
		}
		base.Selectors = append(base.Selectors, ir.Selector{Kind: ir.FieldSelector, Field: field})
		return base
	case *ssa.IndexAddr:
		base := pathOfAddr(a.X)
		base.Selectors = append(base.Selectors, ir.Selector{Kind: ir.IndexSelector})
		return base
	default:
		return ir.PathOf(variable(addr))
	}
}

// exprOf maps an SSA value to the expression shape the transfer functions dispatch on.
func exprOf(v ssa.Value) ir.Expr {
	switch x := v.(type) {
	case *ssa.Const:
		return ir.Expr{}
	case *ssa.Alloc, *ssa.FieldAddr, *ssa.IndexAddr:
		return ir.Expr{Reads: []ir.AccessPath{pathOfAddr(v)}, AddrOf: true}
	case *ssa.MakeClosure:
		var byRef []ir.Variable
		for _, b := range x.Bindings {
			byRef = append(byRef, variable(b))
		}
		return ir.Expr{Closure: true, CapturedByRef: byRef, FuncShaped: true}
	case *ssa.UnOp:
		if x.Op == token.MUL {
			return ir.Expr{Reads: []ir.AccessPath{pathOfAddr(x.X)}}
		}
		return exprOf(x.X)
	default:
		return ir.VarExpr(variable(v))
	}
}

// lowerFunc lowers one SSA function into an ir procedure. The mapping is coarse:
// stores become assignments, calls are classified by the config's acquire/release
// identifiers, branches become assumes and returns mark exit blocks.
func (l *lowerer) lowerFunc(fn *ssa.Function) *ir.Procedure {
	unit := l.unitOf(fn)
	proc := &ir.Procedure{Name: procName(fn), Unit: unit}

	index := map[*ssa.BasicBlock]int{}
	for i, b := range fn.Blocks {
		index[b] = i
	}

	for i, b := range fn.Blocks {
		irb := &ir.Block{Index: i}
		for _, instr := range b.Instrs {
			at := l.loc(unit, instr.Pos())
			switch x := instr.(type) {
			case *ssa.Store:
				irb.Instrs = append(irb.Instrs, &ir.Assign{
					LHS: pathOfAddr(x.Addr),
					RHS: exprOf(x.Val),
					At:  at,
				})
			case *ssa.Call:
				irb.Instrs = append(irb.Instrs, l.lowerCall(x, at))
			case *ssa.Defer:
				irb.Instrs = append(irb.Instrs, l.lowerCommon(&x.Call, nil, at))
			case *ssa.Go:
				irb.Instrs = append(irb.Instrs, l.lowerCommon(&x.Call, nil, at))
			case *ssa.If:
				irb.Instrs = append(irb.Instrs, &ir.Assume{Cond: exprOf(x.Cond), At: at})
			case *ssa.Return:
				for _, r := range x.Results {
					irb.Instrs = append(irb.Instrs, &ir.Assign{
						LHS:          ir.PathOf(ir.Variable{Name: "return", Synthetic: true}),
						RHS:          exprOf(r),
						ToReturnSlot: true,
						At:           at,
					})
				}
				irb.IsExit = true
			case *ssa.Panic:
				irb.Instrs = append(irb.Instrs, &ir.Call{
					Kind:     ir.GeneralCall,
					Args:     []ir.Expr{exprOf(x.X)},
					NoReturn: true,
					At:       at,
				})
			}
		}
		for _, succ := range b.Succs {
			irb.Succs = append(irb.Succs, index[succ])
		}
		proc.Blocks = append(proc.Blocks, irb)
	}
	return proc
}

func (l *lowerer) lowerCall(call *ssa.Call, at ir.Location) ir.Instr {
	var dest *ir.Variable
	if refs := call.Referrers(); refs != nil && len(*refs) > 0 {
		d := variable(call)
		dest = &d
	}
	return l.lowerCommon(call.Common(), dest, at)
}

// lowerCommon classifies a call site. Calls through a closure value become invoke
// calls; statically resolved callees are matched against the config's release and
// acquire identifiers; a small set of well-known functions never return.
func (l *lowerer) lowerCommon(common *ssa.CallCommon, dest *ir.Variable, at ir.Location) ir.Instr {
	args := make([]ir.Expr, 0, len(common.Args))
	for _, a := range common.Args {
		args = append(args, exprOf(a))
	}

	callee := common.StaticCallee()
	if callee == nil {
		if !common.IsInvoke() && common.Value != nil {
			if _, isFn := common.Value.(*ssa.Function); !isFn {
				v := variable(common.Value)
				return &ir.Call{Kind: ir.InvokeValueCall, Value: &v, Args: args, Dest: dest, At: at}
			}
		}
		return &ir.Call{Kind: ir.GeneralCall, Args: args, Dest: dest, At: at}
	}

	pkg, recv, method := calleeParts(callee)
	name := procName(callee)

	if config.ExistsCid(l.cfg.ReleaseFunctions, func(cid config.CodeIdentifier) bool {
		return cid.MatchesFunc(pkg, recv, method)
	}) {
		var recvPath *ir.AccessPath
		if len(common.Args) > 0 {
			p := pathOfAddr(common.Args[0])
			recvPath = &p
		}
		return &ir.Call{Kind: ir.ReleaseCall, Callee: name, Args: args, Recv: recvPath, Dest: dest, At: at}
	}

	acquires := config.ExistsCid(l.cfg.AcquireFunctions, func(cid config.CodeIdentifier) bool {
		return cid.MatchesFunc(pkg, recv, method)
	})
	return &ir.Call{
		Kind:              ir.GeneralCall,
		Callee:            name,
		Args:              args,
		Dest:              dest,
		AcquiresOwnership: acquires,
		NoReturn:          neverReturns(pkg, method),
		At:                at,
	}
}

func calleeParts(fn *ssa.Function) (pkg string, recv string, method string) {
	method = fn.Name()
	if fn.Pkg != nil {
		pkg = fn.Pkg.Pkg.Path()
	}
	if sig := fn.Signature; sig.Recv() != nil {
		if named, ok := derefType(sig.Recv().Type()).(*types.Named); ok {
			recv = named.Obj().Name()
		}
	}
	return pkg, recv, method
}

func derefType(t types.Type) types.Type {
	if ptr, ok := t.(*types.Pointer); ok {
		return ptr.Elem()
	}
	return t
}

// neverReturns recognizes early-exit constructs: process aborts and unconditional
// terminations.
func neverReturns(pkg string, method string) bool {
	switch {
	case pkg == "os" && method == "Exit":
		return true
	case pkg == "runtime" && method == "Goexit":
		return true
	case pkg == "log" && (method == "Fatal" || method == "Fatalf" || method == "Fatalln"):
		return true
	}
	return false
}
