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

package lakequery

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Settings tune the embedded DuckDB. Zero values leave DuckDB's defaults.
type Settings struct {
	Threads       int
	MemoryLimitMB int64
	TempDirectory string
}

// DefaultSettings reads DUCKDB_THREADS, DUCKDB_MEMORY_LIMIT (MB) and
// DUCKDB_TEMP_DIRECTORY. Threads default to GOMAXPROCS.
func DefaultSettings() Settings {
	s := Settings{
		Threads:       envIntClamp("DUCKDB_THREADS", runtime.GOMAXPROCS(0), 1, 256),
		TempDirectory: os.Getenv("DUCKDB_TEMP_DIRECTORY"),
	}
	if v := os.Getenv("DUCKDB_MEMORY_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			s.MemoryLimitMB = n
		}
	}
	return s
}

// dsn builds an in-memory DuckDB DSN carrying the settings.
func (s Settings) dsn() string {
	var params []string
	if s.Threads > 0 {
		params = append(params, fmt.Sprintf("threads=%d", s.Threads))
	}
	if s.MemoryLimitMB > 0 {
		params = append(params, fmt.Sprintf("memory_limit=%dMB", s.MemoryLimitMB))
	}
	if s.TempDirectory != "" {
		params = append(params, "temp_directory="+url.QueryEscape(s.TempDirectory))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + strings.Join(params, "&")
}

func envIntClamp(name string, def, minv, maxv int) int {
	if v := os.Getenv(name); v != "" {
		if iv, err := strconv.Atoi(v); err == nil {
			if iv < minv {
				return minv
			}
			if iv > maxv {
				return maxv
			}
			return iv
		}
	}
	return def
}
