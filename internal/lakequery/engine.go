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

// Package lakequery runs SQL over a local songlake output directory with an
// embedded DuckDB. Each table directory becomes a view over its Hive
// partitioned Parquet files.
package lakequery

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/cardinalhq/songlake/internal/starschema"
)

type Engine struct {
	db     *sql.DB
	dir    string
	tables []string
}

// Open starts an in-memory DuckDB with DefaultSettings and registers a view
// for every table directory under dir that holds Parquet files.
func Open(ctx context.Context, dir string) (*Engine, error) {
	return OpenWithSettings(ctx, dir, DefaultSettings())
}

func OpenWithSettings(ctx context.Context, dir string, settings Settings) (*Engine, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	if fi, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("output directory %s is not a directory", abs)
	}

	db, err := sql.Open("duckdb", settings.dsn())
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	e := &Engine{db: db, dir: abs}
	for _, table := range starschema.TableNames {
		tableDir := filepath.Join(abs, table)
		if !hasParquet(tableDir) {
			continue
		}
		glob := filepath.ToSlash(tableDir) + "/**/*.parquet"
		stmt := fmt.Sprintf(
			`CREATE VIEW %s AS SELECT * FROM read_parquet('%s', hive_partitioning = true, union_by_name = true)`,
			quoteIdent(table), strings.ReplaceAll(glob, "'", "''"))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create view %s: %w", table, err)
		}
		e.tables = append(e.tables, table)
	}
	if len(e.tables) == 0 {
		_ = db.Close()
		return nil, fmt.Errorf("no tables found under %s", abs)
	}
	return e, nil
}

func hasParquet(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fs.SkipAll
		}
		if !d.IsDir() && strings.HasSuffix(p, ".parquet") {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Tables lists the registered views.
func (e *Engine) Tables() []string {
	return e.tables
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// Result holds a fully materialized query result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Query runs one statement and reads every row.
func (e *Engine) Query(ctx context.Context, query string) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return res, nil
}

// Write renders the result as an aligned text table.
func (r *Result) Write(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(r.Columns, "\t"))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format("2006-01-02 15:04:05.000")
	case float64:
		return fmt.Sprintf("%.5f", t)
	default:
		return fmt.Sprint(t)
	}
}
