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

// Package filereader streams JSON documents out of files as loosely typed rows.
//
// Every reader returns rows as they appear in the file, without any
// projection or coercion. Callers pull typed values out with the Row
// accessors, which accept both JSON numbers and numeric strings since
// real-world exports are not consistent about either.
package filereader

import "io"

// Row represents a single JSON object as a map of field names to values.
// Numbers are json.Number so large integers keep their precision.
type Row map[string]any

// Reader is the core interface for reading rows from any file format.
type Reader interface {
	// Next returns the next row of data.
	// Returns io.EOF when there are no more rows.
	Next() (Row, error)

	// Close releases any resources held by the reader.
	Close() error
}

// ReadAll drains r and returns every row. It does not close r.
func ReadAll(r Reader) ([]Row, error) {
	var rows []Row
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}
