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
	"math"

	"github.com/cardinalhq/songlake/internal/idgen"
)

// MatchMode controls which fields a log event must share with a catalog
// song before the two are joined into a songplay.
type MatchMode string

const (
	// MatchArtist joins on artist name alone. An event joins every song by
	// that artist.
	MatchArtist MatchMode = "artist"
	// MatchArtistTitle also requires the song title to match.
	MatchArtistTitle MatchMode = "artist_title"
	// MatchArtistTitleDuration also requires the play length to be within
	// DurationTolerance seconds of the catalog duration.
	MatchArtistTitleDuration MatchMode = "artist_title_duration"
)

// DurationTolerance is the largest length/duration gap, in seconds, that
// MatchArtistTitleDuration accepts.
const DurationTolerance = 1.0

// ParseMatchMode validates a configured match mode. Empty means MatchArtist.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case "":
		return MatchArtist, nil
	case MatchArtist, MatchArtistTitle, MatchArtistTitleDuration:
		return MatchMode(s), nil
	default:
		return "", fmt.Errorf("unknown songplay match mode %q", s)
	}
}

// SongIndex is the build side of the songplays hash join, keyed by artist name.
type SongIndex struct {
	byArtist map[string][]SongRecord
	size     int
}

// NewSongIndex indexes the catalog by artist name. Records without a
// song_id or artist name can never produce a songplay and are left out.
func NewSongIndex(records []SongRecord) *SongIndex {
	idx := &SongIndex{byArtist: make(map[string][]SongRecord)}
	for _, rec := range records {
		if rec.SongID == "" || rec.ArtistName == "" {
			continue
		}
		idx.byArtist[rec.ArtistName] = append(idx.byArtist[rec.ArtistName], rec)
		idx.size++
	}
	return idx
}

// Len returns the number of indexed songs.
func (idx *SongIndex) Len() int {
	return idx.size
}

// Lookup returns the catalog songs an event joins with under mode.
func (idx *SongIndex) Lookup(ev LogEvent, mode MatchMode) []SongRecord {
	candidates := idx.byArtist[ev.Artist]
	if mode == MatchArtist || len(candidates) == 0 {
		return candidates
	}

	var out []SongRecord
	for _, rec := range candidates {
		if rec.Title != ev.Song {
			continue
		}
		if mode == MatchArtistTitleDuration {
			if ev.Length == nil || math.Abs(*ev.Length-rec.Duration) >= DurationTolerance {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// JoinSongplays inner-joins song-play events against the catalog. Every
// matching (event, song) pair becomes one songplay with a fresh surrogate
// key; events with no match are dropped. It fails if keys cannot produce a
// key.
func JoinSongplays(events []LogEvent, idx *SongIndex, mode MatchMode, keys idgen.KeyGenerator) ([]Songplay, error) {
	var plays []Songplay
	for _, ev := range events {
		matches := idx.Lookup(ev, mode)
		if len(matches) == 0 {
			continue
		}
		tr := NewTimeRow(ev.TS)
		for _, song := range matches {
			id, err := keys.NextID()
			if err != nil {
				return nil, fmt.Errorf("songplay_id: %w", err)
			}
			plays = append(plays, Songplay{
				SongplayID: id,
				StartTime:  ev.TS,
				UserID:     ev.UserID,
				Level:      ev.Level,
				SongID:     song.SongID,
				ArtistID:   song.ArtistID,
				SessionID:  ev.SessionID,
				Location:   ev.Location,
				UserAgent:  ev.UserAgent,
				Year:       tr.Year,
				Month:      tr.Month,
			})
		}
	}
	return plays, nil
}
