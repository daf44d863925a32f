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

package etl

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/starschema"
	"github.com/cardinalhq/songlake/internal/tablewriter"
)

func TestRunLocal(t *testing.T) {
	cfg, out := localDirs(t)
	job := newTestJob(t, cfg, nil)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, job.RunID(), summary.RunID)
	assert.Equal(t, 5, summary.InputFiles)
	assert.Empty(t, summary.SkippedFiles)
	assert.True(t, strings.HasPrefix(summary.Output, "file://"))

	wantRows := map[string]int64{
		starschema.TableSongs:     3,
		starschema.TableArtists:   3,
		starschema.TableUsers:     2,
		starschema.TableTime:      5,
		starschema.TableSongplays: 4,
	}
	require.Len(t, summary.Tables, len(wantRows))
	for table, rows := range wantRows {
		ts, ok := summary.Table(table)
		require.True(t, ok, table)
		assert.Equal(t, rows, ts.Rows, table)
		assert.Positive(t, ts.Files, table)
		assert.Positive(t, ts.Bytes, table)
	}

	t.Run("songs", func(t *testing.T) {
		dir := filepath.Join(out, "songs")
		files := parquetFiles(t, dir)
		require.Len(t, files, 3)
		assert.True(t, strings.HasPrefix(files[0], "year=0/artist_id=ARJIE2Y1187B994AB7/part-"))
		assert.True(t, strings.HasPrefix(files[1], "year=1969/artist_id=ARMJAGH1187FB546F3/part-"))
		assert.True(t, strings.HasPrefix(files[2], "year=2005/artist_id=AR73AIO1187B9AD57B/part-"))
		assert.True(t, strings.HasSuffix(files[1], "-"+job.RunID()+".zstd.parquet"))

		rows, schema := readParquet(t, filepath.Join(dir, filepath.FromSlash(files[1])))
		assert.Equal(t, []string{"duration", "song_id", "title"}, columnNames(schema))
		require.Len(t, rows, 1)
		assert.Equal(t, "SOCIWDW12A8C13D406", rows[0]["song_id"])
		assert.Equal(t, "Soul Deep", rows[0]["title"])
		assert.InDelta(t, 148.03546, rows[0]["duration"], 1e-9)
	})

	t.Run("artists", func(t *testing.T) {
		dir := filepath.Join(out, "artists")
		files := parquetFiles(t, dir)
		require.Len(t, files, 1)
		assert.Equal(t, "part-00000-"+job.RunID()+".zstd.parquet", files[0])

		rows, _ := readParquet(t, filepath.Join(dir, files[0]))
		require.Len(t, rows, 3)
		assert.Equal(t, "ARJIE2Y1187B994AB7", rows[0]["artist_id"])
		assert.Nil(t, rows[0]["latitude"])
		assert.Equal(t, "Western Addiction", rows[1]["name"])
		assert.Equal(t, "San Francisco, CA", rows[1]["location"])
		assert.InDelta(t, 37.77916, rows[1]["latitude"], 1e-9)
		assert.InDelta(t, -122.42005, rows[1]["longitude"], 1e-9)
	})

	t.Run("users", func(t *testing.T) {
		rows := readTable(t, filepath.Join(out, "users"))
		require.Len(t, rows, 2)
		assert.Equal(t, "26", rows[0]["user_id"])
		assert.Equal(t, "paid", rows[0]["level"], "latest event sets the level")
		assert.Equal(t, "15", rows[1]["user_id"])
		assert.Equal(t, "Koch", rows[1]["last_name"])
	})

	t.Run("time", func(t *testing.T) {
		dir := filepath.Join(out, "time")
		files := parquetFiles(t, dir)
		require.Len(t, files, 1)
		assert.True(t, strings.HasPrefix(files[0], "year=2018/month=11/"))

		rows, schema := readParquet(t, filepath.Join(dir, filepath.FromSlash(files[0])))
		assert.Equal(t, []string{"day", "hour", "start_time", "week", "weekday"}, columnNames(schema))
		require.Len(t, rows, 5)
		// 2018-11-15T00:30:26.796Z, a Thursday in ISO week 46.
		assert.Equal(t, int32(0), rows[0]["hour"])
		assert.Equal(t, int32(15), rows[0]["day"])
		assert.Equal(t, int32(46), rows[0]["week"])
		assert.Equal(t, int32(3), rows[0]["weekday"])
	})

	t.Run("songplays", func(t *testing.T) {
		dir := filepath.Join(out, "songplays")
		files := parquetFiles(t, dir)
		require.Len(t, files, 4)
		var partitions []string
		for _, f := range files {
			partitions = append(partitions, filepath.ToSlash(filepath.Dir(filepath.FromSlash(f))))
		}
		assert.Equal(t, []string{
			"songplay_id=1/user_id=26",
			"songplay_id=2/user_id=" + tablewriter.DefaultPartitionName,
			"songplay_id=3/user_id=26",
			"songplay_id=4/user_id=15",
		}, partitions)

		rows := readTable(t, dir)
		require.Len(t, rows, 4)
		songIDs := map[any]int{}
		for _, r := range rows {
			songIDs[r["song_id"]]++
			assert.NotContains(t, r, "songplay_id")
			assert.Equal(t, int32(2018), r["year"])
			assert.Equal(t, int32(11), r["month"])
		}
		assert.Equal(t, map[any]int{
			"SOCIWDW12A8C13D406": 2,
			"SOUPIRU12A6D4FA1E1": 1,
			"SOQPWCR12A6D4FB2A3": 1,
		}, songIDs)
	})

	t.Run("manifest", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(out, "songs", SuccessMarker))
		require.NoError(t, err)
		m, err := ParseManifest(data)
		require.NoError(t, err)
		assert.Equal(t, job.RunID(), m.RunID)
		assert.Equal(t, "songs", m.Table)
		assert.Equal(t, "overwrite", m.Mode)
		assert.Equal(t, int64(3), m.Rows)
		assert.Equal(t, []string{"year", "artist_id"}, m.PartitionBy)
		require.Len(t, m.Files, 3)
		assert.Equal(t, int64(1), m.Files[0].Rows)
		assert.False(t, m.WrittenAt.IsZero())
	})
}

func gzipped(t *testing.T, s string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.String()
}

func TestRunThroughObjectStore(t *testing.T) {
	base := t.TempDir()
	writeFixtures(t, filepath.Join(base, "udacity-dend"), songFiles)
	zipped := make(map[string]string, len(logFiles))
	for key, content := range logFiles {
		zipped[key+".gz"] = gzipped(t, content)
	}
	writeFixtures(t, filepath.Join(base, "udacity-dend"), zipped)

	cfg := DefaultConfig()
	cfg.Input.Location = "s3a://udacity-dend/"
	cfg.Input.LogGlob = "log_data/*/*/*.json.gz"
	cfg.Input.Concurrency = 2
	cfg.Output.Location = "s3://lake/star"
	cfg.TmpDir = t.TempDir()

	job := newTestJob(t, cfg, cloudstorage.NewFileClientProvider(base))
	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3://udacity-dend/", summary.Input)
	assert.Equal(t, "s3://lake/star/", summary.Output)

	plays, ok := summary.Table(starschema.TableSongplays)
	require.True(t, ok)
	assert.Equal(t, int64(4), plays.Rows)
	assert.Equal(t, "s3://lake/star/songplays/", plays.Location)

	out := filepath.Join(base, "lake", "star")
	assert.Len(t, parquetFiles(t, filepath.Join(out, "songplays")), 4)
	_, err = os.Stat(filepath.Join(out, "songplays", SuccessMarker))
	assert.NoError(t, err)
}

func TestSaveModes(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrite replaces previous output", func(t *testing.T) {
		cfg, out := localDirs(t)
		_, err := newTestJob(t, cfg, nil).Run(ctx)
		require.NoError(t, err)

		second := newTestJob(t, cfg, nil)
		_, err = second.Run(ctx)
		require.NoError(t, err)

		for _, table := range starschema.TableNames {
			for _, f := range parquetFiles(t, filepath.Join(out, table)) {
				assert.Contains(t, f, second.RunID(), table)
			}
		}
		assert.Len(t, parquetFiles(t, filepath.Join(out, "songs")), 3)
	})

	t.Run("append keeps previous output", func(t *testing.T) {
		cfg, out := localDirs(t)
		_, err := newTestJob(t, cfg, nil).Run(ctx)
		require.NoError(t, err)

		cfg.Output.Mode = string(SaveModeAppend)
		second := newTestJob(t, cfg, nil)
		_, err = second.Run(ctx)
		require.NoError(t, err)

		assert.Len(t, parquetFiles(t, filepath.Join(out, "artists")), 2)
		assert.Len(t, readTable(t, filepath.Join(out, "songs")), 6)

		data, err := os.ReadFile(filepath.Join(out, "songs", SuccessMarker))
		require.NoError(t, err)
		m, err := ParseManifest(data)
		require.NoError(t, err)
		assert.Equal(t, second.RunID(), m.RunID)
		assert.Equal(t, "append", m.Mode)
		assert.Equal(t, int64(6), m.Rows, "rows cover the whole table")
		require.Len(t, m.Files, 6)
		var listed []string
		for _, f := range m.Files {
			listed = append(listed, f.Path)
		}
		assert.ElementsMatch(t, parquetFiles(t, filepath.Join(out, "songs")), listed)
	})

	t.Run("append with a corrupt manifest fails", func(t *testing.T) {
		cfg, out := localDirs(t)
		_, err := newTestJob(t, cfg, nil).Run(ctx)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(out, "songs", SuccessMarker), []byte("files: {"), 0o644))

		cfg.Output.Mode = string(SaveModeAppend)
		_, err = newTestJob(t, cfg, nil).Run(ctx)
		assert.ErrorContains(t, err, "parse manifest")
	})

	t.Run("error refuses existing output", func(t *testing.T) {
		cfg, _ := localDirs(t)
		_, err := newTestJob(t, cfg, nil).Run(ctx)
		require.NoError(t, err)

		cfg.Output.Mode = string(SaveModeError)
		_, err = newTestJob(t, cfg, nil).Run(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOutputExists))
	})

	t.Run("error mode writes into empty output", func(t *testing.T) {
		cfg, out := localDirs(t)
		cfg.Output.Mode = string(SaveModeError)
		_, err := newTestJob(t, cfg, nil).Run(ctx)
		require.NoError(t, err)
		assert.Len(t, parquetFiles(t, filepath.Join(out, "artists")), 1)
	})
}

func TestProcessSongDataOnly(t *testing.T) {
	cfg, out := localDirs(t)
	job := newTestJob(t, cfg, nil)
	input, output, err := ParseLocations(cfg)
	require.NoError(t, err)

	tables, err := job.ProcessSongData(context.Background(), input, output)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, starschema.TableSongs, tables[0].Table)
	assert.Equal(t, starschema.TableArtists, tables[1].Table)

	_, err = os.Stat(filepath.Join(out, "users"))
	assert.True(t, os.IsNotExist(err))

	summary := job.Summarize(time.Now(), input, output, tables)
	assert.Equal(t, job.RunID(), summary.RunID)
	assert.Equal(t, 3, summary.InputFiles)
	songs, ok := summary.Table(starschema.TableSongs)
	require.True(t, ok)
	assert.Equal(t, int64(3), songs.Rows)
}

func TestProcessLogDataLoadsCatalog(t *testing.T) {
	cfg, out := localDirs(t)
	job := newTestJob(t, cfg, nil)
	input, output, err := ParseLocations(cfg)
	require.NoError(t, err)

	tables, err := job.ProcessLogData(context.Background(), input, output)
	require.NoError(t, err)
	require.Len(t, tables, 3)
	assert.Equal(t, 5, job.inputFiles)
	assert.Len(t, readTable(t, filepath.Join(out, "songplays")), 4)

	_, err = os.Stat(filepath.Join(out, "songs"))
	assert.True(t, os.IsNotExist(err))
}

func TestMalformedInput(t *testing.T) {
	broken := map[string]string{
		"song_data/A/A/C/TRBROKEN.json": `{"song_id": "SOBROKEN", "title":`,
		"song_data/A/A/D/TREMPTY.json":  ``,
	}

	t.Run("fails by default", func(t *testing.T) {
		cfg, _ := localDirs(t)
		writeFixtures(t, cfg.Input.Location, broken)
		_, err := newTestJob(t, cfg, nil).Run(context.Background())
		require.Error(t, err)
		assert.ErrorContains(t, err, "malformed input song_data/A/A/C/TRBROKEN.json")
	})

	t.Run("skipped when configured", func(t *testing.T) {
		cfg, _ := localDirs(t)
		cfg.Input.SkipMalformed = true
		writeFixtures(t, cfg.Input.Location, broken)
		summary, err := newTestJob(t, cfg, nil).Run(context.Background())
		require.NoError(t, err)
		require.Len(t, summary.SkippedFiles, 1)
		assert.Equal(t, "song_data/A/A/C/TRBROKEN.json", summary.SkippedFiles[0].Key)
		assert.Equal(t, 7, summary.InputFiles)

		songs, ok := summary.Table(starschema.TableSongs)
		require.True(t, ok)
		assert.Equal(t, int64(3), songs.Rows)
	})
}

func TestNoInputFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Input.Location = t.TempDir()
	cfg.Output.Location = t.TempDir()
	cfg.TmpDir = t.TempDir()

	_, err := newTestJob(t, cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInputFiles))
}

func TestRunRequiresLocations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Location = t.TempDir()
	cfg.TmpDir = t.TempDir()

	_, err := newTestJob(t, cfg, nil).Run(context.Background())
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "input.location", cerr.Key)
}

func TestCustomPartitions(t *testing.T) {
	cfg, out := localDirs(t)
	cfg.Tables.Songplays.PartitionBy = []string{"year", "month"}
	cfg.Tables.Artists.PartitionBy = []string{"location"}

	_, err := newTestJob(t, cfg, nil).Run(context.Background())
	require.NoError(t, err)

	files := parquetFiles(t, filepath.Join(out, "songplays"))
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0], "year=2018/month=11/"))
	_, schema := readParquet(t, filepath.Join(out, "songplays", filepath.FromSlash(files[0])))
	assert.Contains(t, columnNames(schema), "songplay_id")
	assert.Contains(t, columnNames(schema), "user_id")

	var dirs []string
	for _, f := range parquetFiles(t, filepath.Join(out, "artists")) {
		dirs = append(dirs, filepath.ToSlash(filepath.Dir(filepath.FromSlash(f))))
	}
	assert.Equal(t, []string{
		"location=Memphis, TN",
		"location=San Francisco, CA",
		"location=" + tablewriter.DefaultPartitionName,
	}, dirs)
}

func TestMatchModes(t *testing.T) {
	extra := map[string]string{
		"log_data/2018/11/2018-11-22-events.json": `{"artist":"The Box Tops","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":5,"lastName":"Koch","length":201.5,"level":"paid","location":"Chicago, IL","method":"PUT","page":"NextSong","sessionId":819,"song":"The Letter","status":200,"ts":1542900000000,"userAgent":"Mozilla\/5.0","userId":"15"}`,
		// Same artist and title as the catalog's Soul Deep (148.03546s), one
		// play outside the one-second tolerance and one inside it.
		"log_data/2018/11/2018-11-23-events.json": `{"artist":"The Box Tops","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":6,"lastName":"Koch","length":149.5,"level":"paid","location":"Chicago, IL","method":"PUT","page":"NextSong","sessionId":820,"song":"Soul Deep","status":200,"ts":1542990000000,"userAgent":"Mozilla\/5.0","userId":"15"}`,
		"log_data/2018/11/2018-11-24-events.json": `{"artist":"The Box Tops","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":7,"lastName":"Koch","length":148.5,"level":"paid","location":"Chicago, IL","method":"PUT","page":"NextSong","sessionId":821,"song":"Soul Deep","status":200,"ts":1543080000000,"userAgent":"Mozilla\/5.0","userId":"15"}`,
	}
	tests := []struct {
		match string
		want  int64
	}{
		{string(starschema.MatchArtist), 7},
		{string(starschema.MatchArtistTitle), 6},
		{string(starschema.MatchArtistTitleDuration), 5},
	}
	for _, tt := range tests {
		t.Run(tt.match, func(t *testing.T) {
			cfg, _ := localDirs(t)
			writeFixtures(t, cfg.Input.Location, extra)
			cfg.Songplays.Match = tt.match

			summary, err := newTestJob(t, cfg, nil).Run(context.Background())
			require.NoError(t, err)
			plays, ok := summary.Table(starschema.TableSongplays)
			require.True(t, ok)
			assert.Equal(t, tt.want, plays.Rows)
		})
	}
}
