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
	"fmt"
	"maps"

	"github.com/parquet-go/parquet-go"
)

const (
	TableSongs     = "songs"
	TableArtists   = "artists"
	TableUsers     = "users"
	TableTime      = "time"
	TableSongplays = "songplays"
)

// TableNames lists every table in the order a full run writes them.
var TableNames = []string{TableSongs, TableArtists, TableUsers, TableTime, TableSongplays}

// DefaultPartitions are the partition columns each table is written with
// unless configuration says otherwise.
var DefaultPartitions = map[string][]string{
	TableSongs:     {"year", "artist_id"},
	TableArtists:   nil,
	TableUsers:     nil,
	TableTime:      {"year", "month"},
	TableSongplays: {"songplay_id", "user_id"},
}

func stringNode() parquet.Node {
	return parquet.Optional(parquet.Encoded(parquet.String(), &parquet.RLEDictionary))
}

func int32Node() parquet.Node {
	return parquet.Optional(parquet.Int(32))
}

func int64Node() parquet.Node {
	return parquet.Optional(parquet.Int(64))
}

func doubleNode() parquet.Node {
	return parquet.Optional(parquet.Leaf(parquet.DoubleType))
}

func timestampNode() parquet.Node {
	return parquet.Optional(parquet.Timestamp(parquet.Millisecond))
}

var tableNodes = map[string]map[string]parquet.Node{
	TableSongs: {
		"song_id":   stringNode(),
		"title":     stringNode(),
		"artist_id": stringNode(),
		"year":      int64Node(),
		"duration":  doubleNode(),
	},
	TableArtists: {
		"artist_id": stringNode(),
		"name":      stringNode(),
		"location":  stringNode(),
		"latitude":  doubleNode(),
		"longitude": doubleNode(),
	},
	TableUsers: {
		"user_id":    stringNode(),
		"first_name": stringNode(),
		"last_name":  stringNode(),
		"gender":     stringNode(),
		"level":      stringNode(),
	},
	TableTime: {
		"start_time": timestampNode(),
		"hour":       int32Node(),
		"day":        int32Node(),
		"week":       int32Node(),
		"month":      int32Node(),
		"year":       int32Node(),
		"weekday":    int32Node(),
	},
	TableSongplays: {
		"songplay_id": int64Node(),
		"start_time":  timestampNode(),
		"user_id":     stringNode(),
		"level":       stringNode(),
		"song_id":     stringNode(),
		"artist_id":   stringNode(),
		"session_id":  int64Node(),
		"location":    stringNode(),
		"user_agent":  stringNode(),
		"year":        int32Node(),
		"month":       int32Node(),
	},
}

// Nodes returns a copy of the column definitions for table.
func Nodes(table string) (map[string]parquet.Node, error) {
	nodes, ok := tableNodes[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return maps.Clone(nodes), nil
}

// Song is a row of the songs dimension.
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int64
	Duration float64
}

func (s Song) Row() map[string]any {
	return map[string]any{
		"song_id":   s.SongID,
		"title":     s.Title,
		"artist_id": s.ArtistID,
		"year":      s.Year,
		"duration":  s.Duration,
	}
}

// Artist is a row of the artists dimension.
type Artist struct {
	ArtistID  string
	Name      string
	Location  string
	Latitude  *float64
	Longitude *float64
}

func (a Artist) Row() map[string]any {
	return map[string]any{
		"artist_id": a.ArtistID,
		"name":      a.Name,
		"location":  a.Location,
		"latitude":  optionalFloat(a.Latitude),
		"longitude": optionalFloat(a.Longitude),
	}
}

// User is a row of the users dimension.
type User struct {
	UserID    string
	FirstName string
	LastName  string
	Gender    string
	Level     string
}

func (u User) Row() map[string]any {
	return map[string]any{
		"user_id":    u.UserID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"gender":     u.Gender,
		"level":      u.Level,
	}
}

// TimeRow is a row of the time dimension. StartTime is epoch milliseconds.
type TimeRow struct {
	StartTime int64
	Hour      int32
	Day       int32
	Week      int32
	Month     int32
	Year      int32
	Weekday   int32
}

func (t TimeRow) Row() map[string]any {
	return map[string]any{
		"start_time": t.StartTime,
		"hour":       t.Hour,
		"day":        t.Day,
		"week":       t.Week,
		"month":      t.Month,
		"year":       t.Year,
		"weekday":    t.Weekday,
	}
}

// Songplay is a row of the songplays fact table.
type Songplay struct {
	SongplayID int64
	StartTime  int64
	UserID     string
	Level      string
	SongID     string
	ArtistID   string
	SessionID  int64
	Location   string
	UserAgent  string
	Year       int32
	Month      int32
}

func (p Songplay) Row() map[string]any {
	return map[string]any{
		"songplay_id": p.SongplayID,
		"start_time":  p.StartTime,
		"user_id":     p.UserID,
		"level":       p.Level,
		"song_id":     p.SongID,
		"artist_id":   p.ArtistID,
		"session_id":  p.SessionID,
		"location":    p.Location,
		"user_agent":  p.UserAgent,
		"year":        p.Year,
		"month":       p.Month,
	}
}

func optionalFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
