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

// Package starschema turns raw Sparkify song and log documents into the
// songs, artists, users, time and songplays tables.
package starschema

import (
	"github.com/cardinalhq/songlake/internal/filereader"
)

// PageNextSong is the log page value recorded when a user plays a song.
const PageNextSong = "NextSong"

// SongRecord is one document from song_data.
type SongRecord struct {
	NumSongs        int64
	ArtistID        string
	ArtistLatitude  *float64
	ArtistLongitude *float64
	ArtistLocation  string
	ArtistName      string
	SongID          string
	Title           string
	Duration        float64
	Year            int64
}

// SongRecordFromRow pulls the song catalog fields out of a decoded document.
// Missing fields are left at their zero value.
func SongRecordFromRow(row filereader.Row) SongRecord {
	rec := SongRecord{
		ArtistID:        row.GetString("artist_id"),
		ArtistLatitude:  row.OptionalFloat64("artist_latitude"),
		ArtistLongitude: row.OptionalFloat64("artist_longitude"),
		ArtistLocation:  row.GetString("artist_location"),
		ArtistName:      row.GetString("artist_name"),
		SongID:          row.GetString("song_id"),
		Title:           row.GetString("title"),
	}
	rec.NumSongs, _ = row.GetInt64("num_songs")
	rec.Duration, _ = row.GetFloat64("duration")
	rec.Year, _ = row.GetInt64("year")
	return rec
}

// LogEvent is one line from log_data.
type LogEvent struct {
	Artist        string
	Auth          string
	FirstName     string
	Gender        string
	ItemInSession int64
	LastName      string
	Length        *float64
	Level         string
	Location      string
	Method        string
	Page          string
	Registration  int64
	SessionID     int64
	Song          string
	Status        int64
	TS            int64
	UserAgent     string
	UserID        string

	// HasTS is false when the line carried no usable ts.
	HasTS bool
}

// LogEventFromRow pulls the activity fields out of a decoded log line.
// userId is kept as a string because logged-out events carry "".
func LogEventFromRow(row filereader.Row) LogEvent {
	ev := LogEvent{
		Artist:    row.GetString("artist"),
		Auth:      row.GetString("auth"),
		FirstName: row.GetString("firstName"),
		Gender:    row.GetString("gender"),
		LastName:  row.GetString("lastName"),
		Length:    row.OptionalFloat64("length"),
		Level:     row.GetString("level"),
		Location:  row.GetString("location"),
		Method:    row.GetString("method"),
		Page:      row.GetString("page"),
		Song:      row.GetString("song"),
		UserAgent: row.GetString("userAgent"),
		UserID:    row.GetString("userId"),
	}
	ev.ItemInSession, _ = row.GetInt64("itemInSession")
	ev.Registration, _ = row.GetInt64("registration")
	ev.SessionID, _ = row.GetInt64("sessionId")
	ev.Status, _ = row.GetInt64("status")
	ev.TS, ev.HasTS = row.GetInt64("ts")
	return ev
}

// FilterNextSong keeps only song-play events, preserving order. Song plays
// without a ts have no start_time to key the time, users and songplays
// tables on, so they are dropped and counted in untimed.
func FilterNextSong(events []LogEvent) (plays []LogEvent, untimed int) {
	plays = make([]LogEvent, 0, len(events))
	for _, ev := range events {
		if ev.Page != PageNextSong {
			continue
		}
		if !ev.HasTS {
			untimed++
			continue
		}
		plays = append(plays, ev)
	}
	return plays, untimed
}
