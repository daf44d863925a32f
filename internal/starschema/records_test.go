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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/songlake/internal/filereader"
	"github.com/cardinalhq/songlake/internal/idgen"
)

func decode(t *testing.T, s string) filereader.Row {
	t.Helper()
	var row map[string]any
	dec := json.NewDecoder(stringsReader(s))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&row))
	return row
}

func TestSongRecordFromRow(t *testing.T) {
	row := decode(t, `{"num_songs": 1, "artist_id": "ARD7TVE1187B99BFB1", "artist_latitude": null,
		"artist_longitude": null, "artist_location": "California - LA", "artist_name": "Casual",
		"song_id": "SOMZWCG12A8C13C480", "title": "I Didn't Mean To", "duration": 218.93179, "year": 0}`)

	rec := SongRecordFromRow(row)
	assert.Equal(t, int64(1), rec.NumSongs)
	assert.Equal(t, "ARD7TVE1187B99BFB1", rec.ArtistID)
	assert.Nil(t, rec.ArtistLatitude)
	assert.Nil(t, rec.ArtistLongitude)
	assert.Equal(t, "California - LA", rec.ArtistLocation)
	assert.Equal(t, "Casual", rec.ArtistName)
	assert.Equal(t, "SOMZWCG12A8C13C480", rec.SongID)
	assert.Equal(t, "I Didn't Mean To", rec.Title)
	assert.InDelta(t, 218.93179, rec.Duration, 1e-9)
	assert.Equal(t, int64(0), rec.Year)
}

func TestLogEventFromRow(t *testing.T) {
	row := decode(t, `{"artist": "Des'ree", "auth": "Logged In", "firstName": "Kaylee",
		"gender": "F", "itemInSession": 1, "lastName": "Summers", "length": 246.30812,
		"level": "free", "location": "Phoenix-Mesa-Scottsdale, AZ", "method": "PUT",
		"page": "NextSong", "registration": 1540344794796.0, "sessionId": 139,
		"song": "You Gotta Be", "status": 200, "ts": 1541106106796,
		"userAgent": "Mozilla/5.0", "userId": "8"}`)

	ev := LogEventFromRow(row)
	assert.Equal(t, "Des'ree", ev.Artist)
	assert.Equal(t, "Kaylee", ev.FirstName)
	assert.Equal(t, "Summers", ev.LastName)
	assert.Equal(t, int64(1), ev.ItemInSession)
	require.NotNil(t, ev.Length)
	assert.InDelta(t, 246.30812, *ev.Length, 1e-9)
	assert.Equal(t, int64(1540344794796), ev.Registration)
	assert.Equal(t, int64(139), ev.SessionID)
	assert.Equal(t, int64(200), ev.Status)
	assert.Equal(t, int64(1541106106796), ev.TS)
	assert.True(t, ev.HasTS)
	assert.Equal(t, "8", ev.UserID)
	assert.Equal(t, PageNextSong, ev.Page)
}

func TestLogEventFromRowNumericUserID(t *testing.T) {
	ev := LogEventFromRow(decode(t, `{"userId": 26, "page": "Home", "ts": 1}`))
	assert.Equal(t, "26", ev.UserID)

	ev = LogEventFromRow(decode(t, `{"userId": "", "page": "Home", "artist": null, "length": null}`))
	assert.Equal(t, "", ev.UserID)
	assert.Equal(t, "", ev.Artist)
	assert.Nil(t, ev.Length)
	assert.False(t, ev.HasTS)
	assert.Zero(t, ev.TS)
}

func TestFilterNextSong(t *testing.T) {
	events := []LogEvent{
		{Page: "Home", TS: 1, HasTS: true},
		{Page: PageNextSong, TS: 2, HasTS: true},
		{Page: "Logout", TS: 3, HasTS: true},
		{Page: PageNextSong, TS: 4, HasTS: true},
		{Page: "Home"},
	}

	got, untimed := FilterNextSong(events)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].TS)
	assert.Equal(t, int64(4), got[1].TS)
	assert.Zero(t, untimed)
}

func TestFilterNextSongDropsEventsWithoutTS(t *testing.T) {
	events := []LogEvent{
		LogEventFromRow(decode(t, `{"page": "NextSong", "userId": "15", "level": "free", "artist": "Casual", "ts": 1541903636796}`)),
		LogEventFromRow(decode(t, `{"page": "NextSong", "userId": "15", "level": "paid", "artist": "Casual"}`)),
		LogEventFromRow(decode(t, `{"page": "NextSong", "userId": "8", "level": "free", "artist": "Casual", "ts": null}`)),
	}

	plays, untimed := FilterNextSong(events)
	require.Len(t, plays, 1)
	assert.Equal(t, 2, untimed)
	assert.Equal(t, int64(1541903636796), plays[0].TS)

	// Nothing downstream sees an epoch-zero start_time.
	times := ExtractTime(plays)
	require.Len(t, times, 1)
	assert.Equal(t, int32(2018), times[0].Year)

	users := ExtractUsers(plays)
	require.Len(t, users, 1)
	assert.Equal(t, "free", users[0].Level)

	idx := NewSongIndex([]SongRecord{{SongID: "S1", ArtistID: "A1", ArtistName: "Casual", Title: "Intro"}})
	songplays, err := JoinSongplays(plays, idx, MatchArtist, idgen.NewSequenceGenerator())
	require.NoError(t, err)
	require.Len(t, songplays, 1)
	assert.Equal(t, int64(1541903636796), songplays[0].StartTime)
}
