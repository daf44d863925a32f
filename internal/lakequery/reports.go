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
	"context"
	"fmt"
	"slices"
	"sort"
)

// Report is a canned analytics query and the tables it reads.
type Report struct {
	Name        string
	Description string
	Tables      []string
	SQL         string
}

var reports = map[string]Report{
	"top-songs": {
		Name:        "top-songs",
		Description: "Most played songs",
		Tables:      []string{"songplays", "songs", "artists"},
		SQL: `SELECT s.title, a.name AS artist, count(*) AS plays
FROM songplays p
JOIN songs s ON s.song_id = p.song_id
JOIN artists a ON a.artist_id = p.artist_id
GROUP BY s.title, a.name
ORDER BY plays DESC, s.title
LIMIT 10`,
	},
	"top-users": {
		Name:        "top-users",
		Description: "Most active users",
		Tables:      []string{"songplays", "users"},
		SQL: `SELECT CAST(p.user_id AS VARCHAR) AS user_id, u.first_name, u.last_name, u.level, count(*) AS plays
FROM songplays p
JOIN users u ON u.user_id = CAST(p.user_id AS VARCHAR)
GROUP BY ALL
ORDER BY plays DESC, user_id
LIMIT 10`,
	},
	"plays-by-hour": {
		Name:        "plays-by-hour",
		Description: "Song plays per hour of day (UTC)",
		Tables:      []string{"songplays"},
		SQL: `SELECT hour(start_time) AS hour, count(*) AS plays
FROM songplays
GROUP BY 1
ORDER BY 1`,
	},
	"levels": {
		Name:        "levels",
		Description: "Song plays and distinct users per subscription level",
		Tables:      []string{"songplays"},
		SQL: `SELECT level, count(*) AS plays, count(DISTINCT user_id) AS users
FROM songplays
GROUP BY level
ORDER BY level`,
	},
}

// ReportNames returns the known report names, sorted.
func ReportNames() []string {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupReport finds a report by name.
func LookupReport(name string) (Report, bool) {
	r, ok := reports[name]
	return r, ok
}

// RunReport runs a canned report, checking its tables are present first.
func (e *Engine) RunReport(ctx context.Context, name string) (*Result, error) {
	r, ok := reports[name]
	if !ok {
		return nil, fmt.Errorf("unknown report %q, want one of %v", name, ReportNames())
	}
	for _, t := range r.Tables {
		if !slices.Contains(e.tables, t) {
			return nil, fmt.Errorf("report %s needs table %s, not found under %s", name, t, e.dir)
		}
	}
	return e.Query(ctx, r.SQL)
}
