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
	"slices"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// CheckNodes compares the file's columns with the expected table columns.
// Columns listed in skip (partition columns live in the path, not the file)
// are ignored. It returns one message per difference.
func CheckNodes(fh *FileHandle, expected map[string]parquet.Node, skip []string) []string {
	var problems []string

	names := make([]string, 0, len(expected))
	for name := range expected {
		if !slices.Contains(skip, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		want := expected[name]
		col, ok := fh.Schema.Lookup(name)
		if !ok {
			problems = append(problems, fmt.Sprintf("missing column %s", name))
			continue
		}
		got := col.Node
		if got.Type().Kind() != want.Type().Kind() {
			problems = append(problems, fmt.Sprintf("column %s: type %s, want %s", name, got.Type(), want.Type()))
		}
		if got.Optional() != want.Optional() {
			problems = append(problems, fmt.Sprintf("column %s: optional %t, want %t", name, got.Optional(), want.Optional()))
		}
	}

	for _, f := range fh.Schema.Fields() {
		if _, ok := expected[f.Name()]; !ok {
			problems = append(problems, fmt.Sprintf("unexpected column %s", f.Name()))
		}
	}

	return problems
}
