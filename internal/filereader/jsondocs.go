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

package filereader

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// JSONDocReader reads a stream of JSON objects. The objects may be one per
// line or simply concatenated with any whitespace in between, which covers
// both the one-object-per-file song catalog and the line-delimited logs.
type JSONDocReader struct {
	decoder   *json.Decoder
	closer    io.Closer
	docIndex  int
	closed    bool
	totalRows int64
}

// NewJSONDocReader creates a new JSONDocReader for the given io.ReadCloser.
// The reader takes ownership of the closer and will close it when Close is called.
func NewJSONDocReader(reader io.ReadCloser) *JSONDocReader {
	dec := json.NewDecoder(bufio.NewReaderSize(reader, 64*1024))
	dec.UseNumber()
	return &JSONDocReader{
		decoder: dec,
		closer:  reader,
	}
}

// OpenJSONFile opens a local file for reading, transparently
// decompressing it when the name ends in ".gz".
func OpenJSONFile(filename string) (*JSONDocReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(filename, ".gz") {
		return NewJSONDocReader(f), nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open gzip stream %s: %w", filename, err)
	}
	return NewJSONDocReader(&gzipFile{Reader: gz, file: f}), nil
}

func (r *JSONDocReader) Next() (Row, error) {
	if r.closed {
		return nil, io.EOF
	}

	var doc map[string]any
	if err := r.decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("JSON parse error in document %d: %w", r.docIndex+1, err)
	}
	r.docIndex++

	// A literal null decodes to a nil map; treat it as an empty object.
	if doc == nil {
		doc = map[string]any{}
	}
	r.totalRows++
	return Row(doc), nil
}

// Close closes the reader and the underlying io.ReadCloser.
func (r *JSONDocReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.closer != nil {
		err = r.closer.Close()
		r.closer = nil
	}
	r.decoder = nil
	return err
}

// TotalRowsReturned returns the total number of rows that have been successfully returned via Next().
func (r *JSONDocReader) TotalRowsReturned() int64 {
	return r.totalRows
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}
