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

// Package frontend is the front-end collaborator for Go programs: it loads packages,
// builds SSA and lowers every function into the ir representation the engine
// analyzes, populating an in-memory procedure database. The lowering is deliberately
// coarse; the engine is agnostic to it and any front end producing ir procedures can
// replace this one.
package frontend

import (
	"fmt"
	"go/token"

	"github.com/lifeline-tools/lifeline/analysis/config"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// pkgLoadMode loads all the information the lowering needs.
const pkgLoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes

// A LoadedProgram is the SSA form of a loaded program.
type LoadedProgram struct {
	Program  *ssa.Program
	Packages []*ssa.Package
}

// LoadProgram loads, type checks and builds SSA for the packages matched by args.
// To understand how to specify args, look at the documentation of packages.Load.
func LoadProgram(log *config.LogGroup, args []string) (LoadedProgram, error) {
	conf := &packages.Config{
		Mode:  pkgLoadMode,
		Tests: false,
		Fset:  token.NewFileSet(),
	}

	initial, err := packages.Load(conf, args...)
	if err != nil {
		return LoadedProgram{}, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(initial) == 0 {
		return LoadedProgram{}, fmt.Errorf("no packages")
	}
	if packages.PrintErrors(initial) > 0 {
		return LoadedProgram{}, fmt.Errorf("errors found, exiting")
	}

	program, ssaPackages := ssautil.AllPackages(initial, ssa.BuilderMode(0))
	for i, p := range ssaPackages {
		if p == nil {
			return LoadedProgram{}, fmt.Errorf("cannot build SSA for package %s", initial[i])
		}
	}
	program.Build()
	log.Debugf("loaded %d packages", len(ssaPackages))

	return LoadedProgram{Program: program, Packages: ssaPackages}, nil
}
