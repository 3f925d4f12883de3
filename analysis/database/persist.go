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

package database

import (
	"fmt"
	"io"
	"sort"

	"github.com/lifeline-tools/lifeline/analysis/ir"
	"github.com/lifeline-tools/lifeline/analysis/lifetime"
	"gopkg.in/yaml.v3"
)

// summaryRecord is the on-disk form of one procedure summary. Capabilities are
// persisted as their string rendering; the record is for reporting and cross-run
// inspection, not for reloading into the lattice.
type summaryRecord struct {
	Proc string            `yaml:"proc"`
	Vars map[string]string `yaml:"vars,omitempty"`
}

// SaveSummaries writes all summaries of the database to w in yaml, sorted by
// procedure name.
func SaveSummaries(db DB, names []ir.ProcName, w io.Writer) error {
	var records []summaryRecord
	sorted := make([]ir.ProcName, len(names))
	copy(sorted, names)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, name := range sorted {
		opt := db.LookupSummary(name)
		if opt.IsNone() {
			continue
		}
		records = append(records, toRecord(opt.Value()))
	}
	b, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("could not marshal summaries: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("could not write summaries: %w", err)
	}
	return nil
}

func toRecord(s *lifetime.Summary) summaryRecord {
	r := summaryRecord{Proc: string(s.Proc)}
	if len(s.Post) > 0 {
		r.Vars = map[string]string{}
		for v, c := range s.Post {
			r.Vars[v.Name] = c.String()
		}
	}
	return r
}
