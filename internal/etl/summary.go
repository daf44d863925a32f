// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package etl

import (
	"log/slog"
	"time"

	"github.com/cardinalhq/songlake/internal/helpers"
)

// SkippedFile is an input file left out because it could not be parsed.
type SkippedFile struct {
	Key    string `json:"key" yaml:"key"`
	Reason string `json:"reason" yaml:"reason"`
}

// TableSummary describes one published table.
type TableSummary struct {
	Table       string   `json:"table" yaml:"table"`
	Location    string   `json:"location" yaml:"location"`
	Rows        int64    `json:"rows" yaml:"rows"`
	Files       int      `json:"files" yaml:"files"`
	Bytes       int64    `json:"bytes" yaml:"bytes"`
	PartitionBy []string `json:"partition_by,omitempty" yaml:"partition_by,omitempty"`
}

// RunSummary is what a run reports when it finishes.
type RunSummary struct {
	RunID        string         `json:"run_id" yaml:"run_id"`
	StartedAt    time.Time      `json:"started_at" yaml:"started_at"`
	Duration     time.Duration  `json:"duration_ns" yaml:"duration_ns"`
	Input        string         `json:"input" yaml:"input"`
	Output       string         `json:"output" yaml:"output"`
	InputFiles   int            `json:"input_files" yaml:"input_files"`
	Tables       []TableSummary `json:"tables" yaml:"tables"`
	SkippedFiles []SkippedFile  `json:"skipped_files,omitempty" yaml:"skipped_files,omitempty"`
}

// Table returns the summary for one table.
func (s *RunSummary) Table(name string) (TableSummary, bool) {
	for _, t := range s.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableSummary{}, false
}

// Log writes one line for the run and one per table.
func (s *RunSummary) Log(logger *slog.Logger) {
	logger.Info("Run complete",
		slog.String("runID", s.RunID),
		slog.String("input", s.Input),
		slog.String("output", s.Output),
		slog.Int("inputFiles", s.InputFiles),
		slog.Int("skippedFiles", len(s.SkippedFiles)),
		slog.String("duration", helpers.FormatDuration(s.Duration)))
	for _, t := range s.Tables {
		logTable(logger, t)
	}
}

func logTable(logger *slog.Logger, t TableSummary) {
	logger.Info("Table published",
		slog.String("table", t.Table),
		slog.String("location", t.Location),
		slog.Int64("rows", t.Rows),
		slog.Int("files", t.Files),
		slog.Int64("bytes", t.Bytes))
}
