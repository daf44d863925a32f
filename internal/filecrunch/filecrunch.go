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

package filecrunch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/cardinalhq/songlake/internal/tablewriter"
)

type FileHandle struct {
	File        *os.File
	Size        int64
	Schema      *parquet.Schema
	ParquetFile *parquet.File
}

func (fh *FileHandle) Close() error {
	if err := fh.File.Close(); err != nil {
		return err
	}
	return nil
}

// LoadSchemaForFile opens a Parquet file and reads its footer. The caller
// must Close the returned handle.
func LoadSchemaForFile(filename string) (*FileHandle, error) {
	fh, err := openfile(filename)
	if err != nil {
		return nil, err
	}

	f, err := parquet.OpenFile(fh.File, fh.Size)
	if err != nil {
		_ = fh.File.Close()
		return nil, fmt.Errorf("open parquet %s: %w", filename, err)
	}
	fh.ParquetFile = f
	fh.Schema = f.Schema()

	return fh, nil
}

func openfile(file string) (*FileHandle, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FileHandle{
		File: f,
		Size: stat.Size(),
	}, nil
}

type ColumnInfo struct {
	Name        string
	Physical    string
	Logical     string
	Optional    bool
	Compression string
}

type RowGroupInfo struct {
	Rows  int64
	Bytes int64
}

// FileSummary is what parquet-schema prints for one file.
type FileSummary struct {
	Name      string
	Size      int64
	NumRows   int64
	Columns   []ColumnInfo
	RowGroups []RowGroupInfo
	// Partitions are the column values held in the file's directory names.
	Partitions []tablewriter.PartitionValue
}

func (fh *FileHandle) Summary() FileSummary {
	md := fh.ParquetFile.Metadata()
	s := FileSummary{
		Name:       fh.File.Name(),
		Size:       fh.Size,
		NumRows:    fh.ParquetFile.NumRows(),
		Partitions: tablewriter.ParsePartitionPath(filepath.ToSlash(fh.File.Name())),
	}

	for _, el := range md.Schema {
		if el.Type == nil {
			continue
		}
		col := ColumnInfo{
			Name:     el.Name,
			Physical: el.Type.String(),
			Optional: el.RepetitionType != nil && *el.RepetitionType == format.Optional,
		}
		if el.LogicalType != nil {
			col.Logical = el.LogicalType.String()
		}
		s.Columns = append(s.Columns, col)
	}

	for _, rg := range md.RowGroups {
		s.RowGroups = append(s.RowGroups, RowGroupInfo{Rows: rg.NumRows, Bytes: rg.TotalByteSize})
		for i, cc := range rg.Columns {
			if i < len(s.Columns) && s.Columns[i].Compression == "" {
				s.Columns[i].Compression = cc.MetaData.Codec.String()
			}
		}
	}

	return s
}

// Write prints the summary as aligned text.
func (s FileSummary) Write(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "file:\t%s\n", s.Name)
	_, _ = fmt.Fprintf(w, "size:\t%d\n", s.Size)
	_, _ = fmt.Fprintf(w, "rows:\t%d\n", s.NumRows)
	_, _ = fmt.Fprintf(w, "row groups:\t%d\n\n", len(s.RowGroups))

	_, _ = fmt.Fprintln(w, "COLUMN\tPHYSICAL\tLOGICAL\tOPTIONAL\tCODEC")
	for _, c := range s.Columns {
		logical := c.Logical
		if logical == "" {
			logical = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", c.Name, c.Physical, logical, c.Optional, c.Compression)
	}

	if len(s.Partitions) > 0 {
		_, _ = fmt.Fprintln(w, "\nPARTITION\tVALUE")
		for _, p := range s.Partitions {
			value := p.Value
			if p.Null {
				value = "null"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", p.Column, value)
		}
	}

	if len(s.RowGroups) > 0 {
		_, _ = fmt.Fprintln(w, "\nROW GROUP\tROWS\tBYTES")
		for i, rg := range s.RowGroups {
			_, _ = fmt.Fprintf(w, "%d\t%d\t%d\n", i, rg.Rows, rg.Bytes)
		}
	}
	return w.Flush()
}
