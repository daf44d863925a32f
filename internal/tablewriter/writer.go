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

// Package tablewriter writes rows of one table into Hive-partitioned Parquet
// part files in a local staging directory.
//
// Rows are buffered per partition. When the total number of buffered rows
// reaches the configured limit, or on Close, every partition is flushed into
// its own part file under <tmpdir>/<col>=<value>/... . Partition columns are
// dropped from the file schema since their values live in the path.
//
// All files are created under the staging directory, which the caller owns
// and must clean up. Writers are not concurrency-safe.
package tablewriter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/songlake/internal/idgen"
)

const (
	DefaultMaxRowsPerFile  = int64(1_000_000)
	DefaultMaxBufferedRows = int64(500_000)

	// FileSizeUnavailable marks a Result whose size could not be read back.
	FileSizeUnavailable = int64(-1)
)

var ErrAlreadyClosed = errors.New("tablewriter: writer already closed")

// Schema describes one table: its columns and the columns it is partitioned by.
type Schema struct {
	Name        string
	Nodes       map[string]parquet.Node
	PartitionBy []string
}

// Result describes one Parquet part file written to the staging directory.
type Result struct {
	// Partition is the "col=value/..." directory, "" for unpartitioned tables.
	Partition string
	// RelPath is the file path relative to the table root, slash separated.
	RelPath     string
	FileName    string // absolute path in the staging directory
	RecordCount int64
	FileSize    int64
}

type Writer struct {
	schema     Schema
	tmpdir     string
	runID      string
	dataCols   []string
	fileSchema *parquet.Schema
	wc         *parquet.WriterConfig

	maxRowsPerFile  int64
	maxBufferedRows int64

	buffers  map[string][]map[string]any
	buffered int64
	fileSeq  int
	rows     int64
	results  []Result
	closed   bool
}

type WriterOption func(*Writer)

// WithMaxRowsPerFile caps the rows in one part file. Values <= 0 disable the cap.
func WithMaxRowsPerFile(n int64) WriterOption {
	return func(w *Writer) {
		w.maxRowsPerFile = n
	}
}

// WithMaxBufferedRows sets how many rows may be held in memory, across all
// partitions, before the writer flushes. Values <= 0 buffer until Close.
func WithMaxBufferedRows(n int64) WriterOption {
	return func(w *Writer) {
		w.maxBufferedRows = n
	}
}

// WithRunID tags every part file name with the run id. Without it the
// writer tags its files with a random token so that two writers sharing a
// table directory never collide.
func WithRunID(id string) WriterOption {
	return func(w *Writer) {
		w.runID = id
	}
}

// NewWriter prepares a writer that stages part files under tmpdir.
func NewWriter(tmpdir string, schema Schema, opts ...WriterOption) (*Writer, error) {
	if tmpdir == "" {
		return nil, fmt.Errorf("tablewriter: tmpdir cannot be empty")
	}
	if schema.Name == "" {
		return nil, fmt.Errorf("tablewriter: schema name cannot be empty")
	}
	for name, node := range schema.Nodes {
		if name == "" {
			return nil, fmt.Errorf("tablewriter: schema node name cannot be empty")
		}
		if node == nil {
			return nil, fmt.Errorf("tablewriter: schema node %q cannot be nil", name)
		}
	}

	partitioned := make(map[string]bool, len(schema.PartitionBy))
	for _, p := range schema.PartitionBy {
		if _, ok := schema.Nodes[p]; !ok {
			return nil, fmt.Errorf("tablewriter: partition column %q is not in the %s schema", p, schema.Name)
		}
		if partitioned[p] {
			return nil, fmt.Errorf("tablewriter: partition column %q listed twice", p)
		}
		partitioned[p] = true
	}

	fileNodes := make(map[string]parquet.Node, len(schema.Nodes))
	var dataCols []string
	for name, node := range schema.Nodes {
		if partitioned[name] {
			continue
		}
		fileNodes[name] = node
		dataCols = append(dataCols, name)
	}
	if len(dataCols) == 0 {
		return nil, fmt.Errorf("tablewriter: every column of %s is a partition column", schema.Name)
	}
	sort.Strings(dataCols)

	if err := os.MkdirAll(tmpdir, 0o755); err != nil {
		return nil, fmt.Errorf("tablewriter: create staging dir: %w", err)
	}

	fileSchema := parquet.NewSchema(schema.Name, parquet.Group(fileNodes))
	wc, err := parquet.NewWriterConfig(WriterOptions(tmpdir, fileSchema)...)
	if err != nil {
		return nil, fmt.Errorf("tablewriter: writer config: %w", err)
	}

	w := &Writer{
		schema:          schema,
		tmpdir:          tmpdir,
		dataCols:        dataCols,
		fileSchema:      fileSchema,
		wc:              wc,
		maxRowsPerFile:  DefaultMaxRowsPerFile,
		maxBufferedRows: DefaultMaxBufferedRows,
		buffers:         make(map[string][]map[string]any),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.runID == "" {
		w.runID = idgen.PartFileID()
	}
	return w, nil
}

// Write buffers one row. Every key must be a column of the schema; missing
// columns are written as null.
func (w *Writer) Write(row map[string]any) error {
	if w.closed {
		return ErrAlreadyClosed
	}

	for k := range row {
		if _, ok := w.schema.Nodes[k]; !ok {
			return fmt.Errorf("tablewriter: row has column %q not in the %s schema", k, w.schema.Name)
		}
	}

	part := PartitionPath(w.schema.PartitionBy, row)
	data := make(map[string]any, len(w.dataCols))
	for _, c := range w.dataCols {
		data[c] = row[c]
	}
	w.buffers[part] = append(w.buffers[part], data)
	w.buffered++
	w.rows++

	if w.maxBufferedRows > 0 && w.buffered >= w.maxBufferedRows {
		return w.flush()
	}
	return nil
}

// Rows returns the number of rows accepted so far.
func (w *Writer) Rows() int64 {
	return w.rows
}

func (w *Writer) flush() error {
	parts := make([]string, 0, len(w.buffers))
	for p := range w.buffers {
		parts = append(parts, p)
	}
	slices.Sort(parts)

	for _, p := range parts {
		rows := w.buffers[p]
		for len(rows) > 0 {
			n := int64(len(rows))
			if w.maxRowsPerFile > 0 && n > w.maxRowsPerFile {
				n = w.maxRowsPerFile
			}
			if err := w.writeFile(p, rows[:n]); err != nil {
				return err
			}
			rows = rows[n:]
		}
		delete(w.buffers, p)
	}
	w.buffered = 0
	return nil
}

func (w *Writer) partFileName() string {
	name := fmt.Sprintf("part-%05d-%s.zstd.parquet", w.fileSeq, w.runID)
	w.fileSeq++
	return name
}

func (w *Writer) writeFile(partition string, rows []map[string]any) error {
	dir := w.tmpdir
	if partition != "" {
		dir = filepath.Join(w.tmpdir, filepath.FromSlash(partition))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("tablewriter: create partition dir: %w", err)
	}

	name := w.partFileName()
	filename := filepath.Join(dir, name)
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("tablewriter: create part file: %w", err)
	}

	pw := parquet.NewGenericWriter[map[string]any](f, w.wc)
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		_ = f.Close()
		_ = os.Remove(filename)
		return fmt.Errorf("tablewriter: write rows to %s: %w", filename, err)
	}
	if err := pw.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(filename)
		return fmt.Errorf("tablewriter: close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("tablewriter: close part file: %w", err)
	}

	size := FileSizeUnavailable
	if info, err := os.Stat(filename); err == nil {
		size = info.Size()
	}

	rel := name
	if partition != "" {
		rel = partition + "/" + name
	}
	w.results = append(w.results, Result{
		Partition:   partition,
		RelPath:     rel,
		FileName:    filename,
		RecordCount: int64(len(rows)),
		FileSize:    size,
	})
	return nil
}

// Close flushes anything still buffered and returns every part file written.
// A writer that saw no rows returns an empty slice.
func (w *Writer) Close() ([]Result, error) {
	if w.closed {
		return nil, ErrAlreadyClosed
	}
	w.closed = true

	if err := w.flush(); err != nil {
		return nil, err
	}
	return w.results, nil
}

// Abort drops buffered rows and removes every part file written so far.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.buffers = nil

	var errs *multierror.Error
	for _, r := range w.results {
		if err := os.Remove(r.FileName); err != nil && !os.IsNotExist(err) {
			errs = multierror.Append(errs, err)
		}
	}
	w.results = nil
	return errs.ErrorOrNil()
}
