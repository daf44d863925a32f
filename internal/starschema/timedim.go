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

package starschema

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/songlake/internal/helpers"
)

// NewTimeRow breaks an epoch-millisecond timestamp into the time dimension
// columns, in UTC. Week is the ISO-8601 week and weekday runs from
// 0 (Monday) to 6 (Sunday).
func NewTimeRow(ms int64) TimeRow {
	t := helpers.UnixMillisToTime(ms)
	_, week := t.ISOWeek()
	return TimeRow{
		StartTime: ms,
		Hour:      int32(t.Hour()),
		Day:       int32(t.Day()),
		Week:      int32(week),
		Month:     int32(t.Month()),
		Year:      int32(t.Year()),
		Weekday:   mondayWeekday(t.Weekday()),
	}
}

func mondayWeekday(d time.Weekday) int32 {
	return int32((d + 6) % 7)
}

// ExtractTime builds the time dimension with one row per distinct event
// timestamp, in order of first appearance.
func ExtractTime(events []LogEvent) []TimeRow {
	seen := mapset.NewThreadUnsafeSet[int64]()
	rows := make([]TimeRow, 0, len(events))
	for _, ev := range events {
		if !seen.Add(ev.TS) {
			continue
		}
		rows = append(rows, NewTimeRow(ev.TS))
	}
	return rows
}
