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
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/idgen"
	"github.com/cardinalhq/songlake/internal/storageprofile"
)

var songFiles = map[string]string{
	"song_data/A/A/A/TRAAAAW128F429D538.json": `{"num_songs": 1, "artist_id": "ARJIE2Y1187B994AB7", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Line Renaud", "song_id": "SOUPIRU12A6D4FA1E1", "title": "Der Kleine Dompfaff", "duration": 152.92036, "year": 0}`,
	"song_data/A/A/B/TRAABJL12903CDCF1A.json": `{"num_songs": 1, "artist_id": "AR73AIO1187B9AD57B", "artist_latitude": 37.77916, "artist_longitude": -122.42005, "artist_location": "San Francisco, CA", "artist_name": "Western Addiction", "song_id": "SOQPWCR12A6D4FB2A3", "title": "A Poor Recipe For Civic Cohesion", "duration": 118.07302, "year": 2005}`,
	"song_data/A/B/C/TRABCEI128F424C983.json": `{"num_songs": 1, "artist_id": "ARMJAGH1187FB546F3", "artist_latitude": 35.14968, "artist_longitude": -90.04892, "artist_location": "Memphis, TN", "artist_name": "The Box Tops", "song_id": "SOCIWDW12A8C13D406", "title": "Soul Deep", "duration": 148.03546, "year": 1969}`,
}

// Six events: five NextSong plays, one of them logged out and one with no
// catalog match, plus a Home page view.
var logFiles = map[string]string{
	"log_data/2018/11/2018-11-15-events.json": strings.Join([]string{
		`{"artist":"The Box Tops","auth":"Logged In","firstName":"Ryan","gender":"M","itemInSession":0,"lastName":"Smith","length":148.03546,"level":"free","location":"San Jose-Sunnyvale-Santa Clara, CA","method":"PUT","page":"NextSong","registration":1.541016707796E12,"sessionId":583,"song":"Soul Deep","status":200,"ts":1542241826796,"userAgent":"Mozilla\/5.0","userId":"26"}`,
		`{"artist":"Unknown Band","auth":"Logged In","firstName":"Ryan","gender":"M","itemInSession":1,"lastName":"Smith","length":200.0,"level":"free","location":"San Jose-Sunnyvale-Santa Clara, CA","method":"PUT","page":"NextSong","registration":1.541016707796E12,"sessionId":583,"song":"Nope","status":200,"ts":1542242481796,"userAgent":"Mozilla\/5.0","userId":"26"}`,
		`{"artist":null,"auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":2,"lastName":"Koch","length":null,"level":"paid","location":"Chicago, IL","method":"GET","page":"Home","registration":1.541048010796E12,"sessionId":818,"song":null,"status":200,"ts":1542242000000,"userAgent":"Mozilla\/5.0","userId":"15"}`,
		`{"artist":"Line Renaud","auth":"Logged Out","firstName":null,"gender":null,"itemInSession":0,"lastName":null,"length":152.92036,"level":"free","location":null,"method":"PUT","page":"NextSong","registration":null,"sessionId":900,"song":"Der Kleine Dompfaff","status":200,"ts":1542300000000,"userAgent":null,"userId":""}`,
		`{"artist":"The Box Tops","auth":"Logged In","firstName":"Ryan","gender":"M","itemInSession":3,"lastName":"Smith","length":148.03546,"level":"paid","location":"San Jose-Sunnyvale-Santa Clara, CA","method":"PUT","page":"NextSong","registration":1.541016707796E12,"sessionId":600,"song":"Soul Deep","status":200,"ts":1542300100000,"userAgent":"Mozilla\/5.0","userId":"26"}`,
	}, "\n"),
	"log_data/2018/11/2018-11-21-events.json": `{"artist":"Western Addiction","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":4,"lastName":"Koch","length":118.07302,"level":"paid","location":"Chicago, IL","method":"PUT","page":"NextSong","registration":1.541048010796E12,"sessionId":818,"song":"A Poor Recipe For Civic Cohesion","status":200,"ts":1542837407796,"userAgent":"Mozilla\/5.0","userId":15}`,
}

func writeFixtures(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for key, content := range files {
		path := filepath.Join(root, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// localDirs lays out the sample data set and returns a config reading it
// from, and writing to, local directories.
func localDirs(t *testing.T) (Config, string) {
	t.Helper()
	input := t.TempDir()
	output := t.TempDir()
	writeFixtures(t, input, songFiles)
	writeFixtures(t, input, logFiles)

	cfg := DefaultConfig()
	cfg.Input.Location = input
	cfg.Output.Location = "file://" + filepath.ToSlash(output)
	cfg.Songplays.IDStrategy = idgen.StrategySequence
	cfg.TmpDir = t.TempDir()
	return cfg, output
}

func newTestJob(t *testing.T, cfg Config, provider cloudstorage.ClientProvider) *Job {
	t.Helper()
	if provider == nil {
		provider = cloudstorage.NewFileClientProvider(t.TempDir())
	}
	job, err := NewJob(cfg, provider, storageprofile.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = job.Close() })
	return job
}

// parquetFiles returns the part files under dir, relative and slash separated.
func parquetFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".parquet") {
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func readParquet(t *testing.T, filename string) ([]map[string]any, *parquet.Schema) {
	t.Helper()
	f, err := os.Open(filename)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	require.NoError(t, err)
	pf, err := parquet.OpenFile(f, stat.Size())
	require.NoError(t, err)

	reader := parquet.NewGenericReader[map[string]any](f, pf.Schema())
	defer func() { _ = reader.Close() }()

	var out []map[string]any
	for {
		rows := make([]map[string]any, 64)
		for i := range rows {
			rows[i] = make(map[string]any)
		}
		n, err := reader.Read(rows)
		out = append(out, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}
	return out, pf.Schema()
}

// readTable reads every part file of a table.
func readTable(t *testing.T, tableDir string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for _, rel := range parquetFiles(t, tableDir) {
		r, _ := readParquet(t, filepath.Join(tableDir, filepath.FromSlash(rel)))
		rows = append(rows, r...)
	}
	return rows
}

func columnNames(schema *parquet.Schema) []string {
	var names []string
	for _, f := range schema.Fields() {
		names = append(names, f.Name())
	}
	sort.Strings(names)
	return names
}
