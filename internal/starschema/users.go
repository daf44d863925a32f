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

// ExtractUsers builds the users table from song-play events. Events without
// a user id are skipped. When a user shows up more than once the event with
// the latest timestamp wins, so level reflects the most recent subscription.
// Users are returned in order of first appearance.
func ExtractUsers(events []LogEvent) []User {
	type entry struct {
		user User
		ts   int64
	}

	index := make(map[string]int)
	var entries []entry
	for _, ev := range events {
		if ev.UserID == "" {
			continue
		}
		u := User{
			UserID:    ev.UserID,
			FirstName: ev.FirstName,
			LastName:  ev.LastName,
			Gender:    ev.Gender,
			Level:     ev.Level,
		}
		i, ok := index[ev.UserID]
		if !ok {
			index[ev.UserID] = len(entries)
			entries = append(entries, entry{user: u, ts: ev.TS})
			continue
		}
		if ev.TS >= entries[i].ts {
			entries[i] = entry{user: u, ts: ev.TS}
		}
	}

	users := make([]User, len(entries))
	for i, e := range entries {
		users[i] = e.user
	}
	return users
}
