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
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/idgen"
	"github.com/cardinalhq/songlake/internal/starschema"
	"github.com/cardinalhq/songlake/internal/storageprofile"
)

// Job holds the state of one run. A Job is not safe for concurrent use; the
// step methods parallelize internally.
type Job struct {
	cfg      Config
	provider cloudstorage.ClientProvider
	profile  storageprofile.StorageProfile
	runID    string
	match    starschema.MatchMode
	keys     idgen.KeyGenerator
	tmpdir   string
	now      func() time.Time

	catalog     []starschema.SongRecord
	catalogFrom string

	inputFiles int
	skipped    []SkippedFile
}

// NewJob validates cfg and prepares a private working directory. Call Close
// when done to remove it.
func NewJob(cfg Config, provider cloudstorage.ClientProvider, profile storageprofile.StorageProfile) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	match, err := starschema.ParseMatchMode(cfg.Songplays.Match)
	if err != nil {
		return nil, err
	}
	keys, err := idgen.NewKeyGenerator(cfg.Songplays.IDStrategy)
	if err != nil {
		return nil, fmt.Errorf("songplay key generator: %w", err)
	}

	runID := idgen.NewRunID(time.Now())
	tmpdir, err := os.MkdirTemp(cfg.TmpDir, "songlake-"+runID+"-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	return &Job{
		cfg:      cfg,
		provider: provider,
		profile:  profile,
		runID:    runID,
		match:    match,
		keys:     keys,
		tmpdir:   tmpdir,
		now:      time.Now,
	}, nil
}

// RunID identifies this run in part-file names and manifests.
func (j *Job) RunID() string {
	return j.runID
}

// Close removes the working directory.
func (j *Job) Close() error {
	return os.RemoveAll(j.tmpdir)
}

func (j *Job) clientFor(ctx context.Context, loc cloudstorage.Location) (cloudstorage.Client, error) {
	client, err := cloudstorage.ClientForLocation(ctx, j.provider, j.profile, loc)
	if err != nil {
		return nil, fmt.Errorf("storage client for %s: %w", loc, err)
	}
	return client, nil
}

// ProcessSongData reads song_data under input and writes the songs and
// artists tables under output.
func (j *Job) ProcessSongData(ctx context.Context, input, output cloudstorage.Location) ([]TableSummary, error) {
	slog.Info("Processing song data",
		slog.String("input", input.String()),
		slog.String("output", output.String()))

	catalog, err := j.songCatalog(ctx, input)
	if err != nil {
		return nil, err
	}

	return j.publishAll(ctx, output, []tableRows{
		{starschema.TableSongs, rowsOf(starschema.ExtractSongs(catalog))},
		{starschema.TableArtists, rowsOf(starschema.ExtractArtists(catalog))},
	})
}

// ProcessLogData reads log_data under input, keeps the NextSong events and
// writes the users, time and songplays tables under output. The song catalog
// is reused when ProcessSongData already read it from the same input.
func (j *Job) ProcessLogData(ctx context.Context, input, output cloudstorage.Location) ([]TableSummary, error) {
	slog.Info("Processing log data",
		slog.String("input", input.String()),
		slog.String("output", output.String()))

	loaded, err := j.loadJSON(ctx, input, j.cfg.Input.LogGlob)
	if err != nil {
		return nil, fmt.Errorf("read log data: %w", err)
	}
	j.noteLoad(loaded)

	events := make([]starschema.LogEvent, len(loaded.rows))
	for i, row := range loaded.rows {
		events[i] = starschema.LogEventFromRow(row)
	}
	plays, untimed := starschema.FilterNextSong(events)
	slog.Info("Filtered song plays",
		slog.Int("events", len(events)),
		slog.Int("nextSong", len(plays)))
	if untimed > 0 {
		slog.Warn("Dropped song plays without a ts", slog.Int("count", untimed))
	}

	catalog, err := j.songCatalog(ctx, input)
	if err != nil {
		return nil, err
	}
	idx := starschema.NewSongIndex(catalog)
	songplays, err := starschema.JoinSongplays(plays, idx, j.match, j.keys)
	if err != nil {
		return nil, err
	}
	slog.Info("Joined song plays",
		slog.String("match", string(j.match)),
		slog.Int("catalogSongs", idx.Len()),
		slog.Int("songplays", len(songplays)))

	return j.publishAll(ctx, output, []tableRows{
		{starschema.TableUsers, rowsOf(starschema.ExtractUsers(plays))},
		{starschema.TableTime, rowsOf(starschema.ExtractTime(plays))},
		{starschema.TableSongplays, rowsOf(songplays)},
	})
}

// Run parses the configured locations and runs both steps in order.
func (j *Job) Run(ctx context.Context) (*RunSummary, error) {
	started := j.now()

	input, output, err := ParseLocations(j.cfg)
	if err != nil {
		return nil, err
	}

	songTables, err := j.ProcessSongData(ctx, input, output)
	if err != nil {
		return nil, err
	}
	logTables, err := j.ProcessLogData(ctx, input, output)
	if err != nil {
		return nil, err
	}

	return j.Summarize(started, input, output, append(songTables, logTables...)), nil
}

// Summarize builds a RunSummary for steps that started at started. The input
// file and skip counts cover every step this Job has run so far.
func (j *Job) Summarize(started time.Time, input, output cloudstorage.Location, tables []TableSummary) *RunSummary {
	return &RunSummary{
		RunID:        j.runID,
		StartedAt:    started.UTC(),
		Duration:     j.now().Sub(started),
		Input:        input.String(),
		Output:       output.String(),
		InputFiles:   j.inputFiles,
		Tables:       tables,
		SkippedFiles: j.skipped,
	}
}

// parseLocation reports a ConfigError naming key when raw is missing or
// invalid.
func parseLocation(key, raw string) (cloudstorage.Location, error) {
	if raw == "" {
		return cloudstorage.Location{}, &ConfigError{Key: key, Reason: "must not be empty"}
	}
	loc, err := cloudstorage.ParseLocation(raw)
	if err != nil {
		return cloudstorage.Location{}, &ConfigError{Key: key, Reason: err.Error()}
	}
	return loc, nil
}

// ParseLocations parses the input and output locations of cfg.
func ParseLocations(cfg Config) (input, output cloudstorage.Location, err error) {
	if input, err = parseLocation("input.location", cfg.Input.Location); err != nil {
		return
	}
	output, err = parseLocation("output.location", cfg.Output.Location)
	return
}

func (j *Job) songCatalog(ctx context.Context, input cloudstorage.Location) ([]starschema.SongRecord, error) {
	if j.catalog != nil && j.catalogFrom == input.String() {
		return j.catalog, nil
	}

	loaded, err := j.loadJSON(ctx, input, j.cfg.Input.SongGlob)
	if err != nil {
		return nil, fmt.Errorf("read song data: %w", err)
	}
	j.noteLoad(loaded)

	catalog := make([]starschema.SongRecord, len(loaded.rows))
	for i, row := range loaded.rows {
		catalog[i] = starschema.SongRecordFromRow(row)
	}
	j.catalog = catalog
	j.catalogFrom = input.String()
	return catalog, nil
}

func (j *Job) noteLoad(res *loadResult) {
	j.inputFiles += res.files
	j.skipped = append(j.skipped, res.skipped...)
}

type tableRows struct {
	table string
	rows  []map[string]any
}

type rowMapper interface {
	Row() map[string]any
}

func rowsOf[T rowMapper](items []T) []map[string]any {
	rows := make([]map[string]any, len(items))
	for i, item := range items {
		rows[i] = item.Row()
	}
	return rows
}

// publishAll writes the tables concurrently. On error the tables already
// published are left in place.
func (j *Job) publishAll(ctx context.Context, output cloudstorage.Location, tables []tableRows) ([]TableSummary, error) {
	summaries := make([]TableSummary, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tables {
		g.Go(func() error {
			s, err := j.publishTable(gctx, output, t.table, t.rows)
			if err != nil {
				return fmt.Errorf("publish %s: %w", t.table, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
