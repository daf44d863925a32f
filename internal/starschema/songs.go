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
	mapset "github.com/deckarep/golang-set/v2"
)

// ExtractSongs projects the songs table out of the catalog. Records without
// a song_id are dropped and the first record seen for a song_id wins.
func ExtractSongs(records []SongRecord) []Song {
	seen := mapset.NewThreadUnsafeSet[string]()
	songs := make([]Song, 0, len(records))
	for _, rec := range records {
		if rec.SongID == "" || !seen.Add(rec.SongID) {
			continue
		}
		songs = append(songs, Song{
			SongID:   rec.SongID,
			Title:    rec.Title,
			ArtistID: rec.ArtistID,
			Year:     rec.Year,
			Duration: rec.Duration,
		})
	}
	return songs
}

// ExtractArtists projects the artists table out of the catalog. An artist
// appears once per song in the raw data; the first record seen wins.
func ExtractArtists(records []SongRecord) []Artist {
	seen := mapset.NewThreadUnsafeSet[string]()
	artists := make([]Artist, 0, len(records))
	for _, rec := range records {
		if rec.ArtistID == "" || !seen.Add(rec.ArtistID) {
			continue
		}
		artists = append(artists, Artist{
			ArtistID:  rec.ArtistID,
			Name:      rec.ArtistName,
			Location:  rec.ArtistLocation,
			Latitude:  rec.ArtistLatitude,
			Longitude: rec.ArtistLongitude,
		})
	}
	return artists
}
