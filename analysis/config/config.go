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

// Package config defines the configuration of the lifetime analysis: scheduling options,
// logging levels and the code identifiers that classify resource-acquiring and
// resource-releasing calls.
package config

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains the options driving a whole-program analysis run.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// Private fields are not populated from a yaml file, but computed after initialization.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// AcquireFunctions lists the code identifiers recognized as acquiring ownership of a fresh
	// resource into their result.
	AcquireFunctions []CodeIdentifier `yaml:"acquire-functions"`

	// ReleaseFunctions lists the code identifiers recognized as releasing the resource held by
	// their receiver or first argument.
	ReleaseFunctions []CodeIdentifier `yaml:"release-functions"`
}

// Options groups the scalar options of the analysis.
type Options struct {
	// LogLevel controls the verbosity of the analysis (see logging.go for the levels).
	LogLevel int `yaml:"log-level"`

	// NumWorkers is the number of parallel analysis workers. Zero means one worker per CPU.
	NumWorkers int `yaml:"nworkers"`

	// UseCallGraph enables bottom-up call-graph scheduling. When false, procedures are analyzed
	// file by file in a shuffled order.
	UseCallGraph bool `yaml:"use-call-graph"`

	// ShuffleSeed seeds the pseudorandom permutation of compilation units used by the file
	// fallback scheduler. The permutation is deterministic for a fixed seed.
	ShuffleSeed int64 `yaml:"shuffle-seed"`

	// ReportsDir is the directory where summary reports are stored when ReportSummaries is set.
	ReportsDir string `yaml:"reports-dir"`

	// ReportSummaries enables writing the computed procedure summaries to ReportsDir.
	ReportSummaries bool `yaml:"report-summaries"`

	// PkgFilter restricts the analysis to packages whose path has this prefix.
	PkgFilter string `yaml:"pkg-filter"`
}

// NewDefault returns a config with default values: call-graph scheduling on, one worker per
// CPU, info-level logging and a fixed shuffle seed.
func NewDefault() *Config {
	return &Config{
		Options: Options{
			LogLevel:     int(InfoLevel),
			NumWorkers:   runtime.NumCPU(),
			UseCallGraph: true,
			ShuffleSeed:  42,
		},
	}
}

// Load reads a config from the yaml file at filename.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %s: %w", filename, err)
	}
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", filename, err)
	}
	cfg.sourceFile = filename
	return cfg, nil
}

// RelPath returns filename path relative to the config source file.
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the package path matches the package filter set in the config
// file. If no package filter has been set, every package matches.
func (c Config) MatchPkgFilter(pkgpath string) bool {
	if c.PkgFilter == "" {
		return true
	}
	return strings.HasPrefix(pkgpath, c.PkgFilter)
}

// Workers returns the effective number of analysis workers.
func (c Config) Workers() int {
	if c.NumWorkers <= 0 {
		return runtime.NumCPU()
	}
	return c.NumWorkers
}
