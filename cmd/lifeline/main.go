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

// Lifeline analyzes the lifetimes of resources in Go programs: it tracks ownership,
// borrows and invalidations of variables across a whole program, scheduling
// procedures bottom-up over the call graph and analyzing them in parallel.
package main

import (
	"flag"
	"fmt"
	"go/build"
	"os"

	"github.com/lifeline-tools/lifeline/analysis/callgraph"
	"github.com/lifeline-tools/lifeline/analysis/config"
	"github.com/lifeline-tools/lifeline/analysis/database"
	"github.com/lifeline-tools/lifeline/analysis/diag"
	"github.com/lifeline-tools/lifeline/analysis/driver"
	"github.com/lifeline-tools/lifeline/analysis/frontend"
	"github.com/lifeline-tools/lifeline/internal/formatutil"
	"golang.org/x/tools/go/buildutil"
)

const usage = `Analyze the resource lifetimes of your Go packages.

Usage:
  lifeline [options] package...
  lifeline [options] source.go

Use the -help flag to display the options.

Examples:
% lifeline -config config.yaml ./...
`

func main() {
	var (
		configPath  = flag.String("config", "", "configuration file path")
		graphPath   = flag.String("graph", "", "output call graph in graphviz format to this file")
		numWorkers  = flag.Int("nworkers", 0, "number of parallel analysis workers (0: one per CPU)")
		seed        = flag.Int64("seed", -1, "shuffle seed for the file fallback scheduler (-1: from config)")
		noCallGraph = flag.Bool("no-call-graph", false, "disable bottom-up call-graph scheduling")
		summaries   = flag.Bool("summaries", false, "write procedure summaries to the reports directory")
		verbose     = flag.Bool("v", false, "verbose: debug-level logging")
	)
	flag.Var((*buildutil.TagsFlag)(&build.Default.BuildTags), "tags", buildutil.TagsFlagDoc)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run(*configPath, *graphPath, *numWorkers, *seed, *noCallGraph, *summaries, *verbose, flag.Args()))
}

func run(configPath, graphPath string, numWorkers int, seed int64,
	noCallGraph, summaries, verbose bool, args []string) int {

	cfg := config.NewDefault()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if numWorkers > 0 {
		cfg.NumWorkers = numWorkers
	}
	if seed >= 0 {
		cfg.ShuffleSeed = seed
	}
	if noCallGraph {
		cfg.UseCallGraph = false
	}
	if summaries {
		cfg.ReportSummaries = true
	}
	if verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	log := config.NewLogGroup(cfg)

	lp, err := frontend.LoadProgram(log, args)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	db := frontend.Lower(lp, cfg, log)

	if graphPath != "" {
		if err := writeGraph(db, graphPath); err != nil {
			log.Errorf("%v", err)
			return 1
		}
		log.Infof("call graph written to %s", graphPath)
	}

	collector := diag.NewCollector()
	if err := driver.New(db, cfg, log, collector).Run(); err != nil {
		log.Errorf("%v", err)
		return 1
	}

	diags := collector.Diagnostics()
	diag.Render(diags, log)
	if len(diags) > 0 {
		log.Infof("%s", formatutil.Red(fmt.Sprintf("%d lifetime violations found", len(diags))))
		return 2
	}
	log.Infof("%s", formatutil.Green("no lifetime violations found"))
	return 0
}

// writeGraph renders a pre-run snapshot of the call graph; the graph used for
// scheduling is consumed by the run itself.
func writeGraph(db *database.MemDB, path string) error {
	g := callgraph.NewGraph()
	if err := g.Build(db, db.Units()); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	defer f.Close()
	return g.WriteDot(f, "callgraph")
}
