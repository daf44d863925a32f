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
	"fmt"
	"path"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/songlake/internal/idgen"
	"github.com/cardinalhq/songlake/internal/starschema"
	"github.com/cardinalhq/songlake/internal/tablewriter"
)

// SaveMode controls what happens to a table that already has output.
type SaveMode string

const (
	SaveModeOverwrite SaveMode = "overwrite"
	SaveModeError     SaveMode = "error"
	SaveModeAppend    SaveMode = "append"
)

const (
	DefaultSongGlob    = "song_data/*/*/*/*.json"
	DefaultLogGlob     = "log_data/*/*/*.json"
	DefaultConcurrency = 8
)

type InputConfig struct {
	Location      string `mapstructure:"location"`
	SongGlob      string `mapstructure:"song_glob"`
	LogGlob       string `mapstructure:"log_glob"`
	Concurrency   int    `mapstructure:"concurrency"`
	SkipMalformed bool   `mapstructure:"skip_malformed"`
}

type OutputConfig struct {
	Location        string `mapstructure:"location"`
	Mode            string `mapstructure:"mode"`
	MaxRowsPerFile  int64  `mapstructure:"max_rows_per_file"`
	MaxBufferedRows int64  `mapstructure:"max_buffered_rows"`
}

type TableConfig struct {
	PartitionBy []string `mapstructure:"partition_by"`
}

type TablesConfig struct {
	Songs     TableConfig `mapstructure:"songs"`
	Artists   TableConfig `mapstructure:"artists"`
	Users     TableConfig `mapstructure:"users"`
	Time      TableConfig `mapstructure:"time"`
	Songplays TableConfig `mapstructure:"songplays"`
}

// PartitionBy returns the partition columns configured for table.
func (t TablesConfig) PartitionBy(table string) []string {
	switch table {
	case starschema.TableSongs:
		return t.Songs.PartitionBy
	case starschema.TableArtists:
		return t.Artists.PartitionBy
	case starschema.TableUsers:
		return t.Users.PartitionBy
	case starschema.TableTime:
		return t.Time.PartitionBy
	case starschema.TableSongplays:
		return t.Songplays.PartitionBy
	}
	return nil
}

type SongplaysConfig struct {
	// Match is one of artist, artist_title, artist_title_duration.
	Match string `mapstructure:"match"`
	// IDStrategy is flake or sequence.
	IDStrategy string `mapstructure:"id_strategy"`
}

type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Tables    TablesConfig    `mapstructure:"tables"`
	Songplays SongplaysConfig `mapstructure:"songplays"`
	// TmpDir is where inputs are downloaded and part files staged.
	// Empty means os.TempDir().
	TmpDir string `mapstructure:"tmpdir"`
}

func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			SongGlob:    DefaultSongGlob,
			LogGlob:     DefaultLogGlob,
			Concurrency: DefaultConcurrency,
		},
		Output: OutputConfig{
			Mode:            string(SaveModeOverwrite),
			MaxRowsPerFile:  tablewriter.DefaultMaxRowsPerFile,
			MaxBufferedRows: tablewriter.DefaultMaxBufferedRows,
		},
		Tables: TablesConfig{
			Songs:     TableConfig{PartitionBy: slices.Clone(starschema.DefaultPartitions[starschema.TableSongs])},
			Artists:   TableConfig{PartitionBy: slices.Clone(starschema.DefaultPartitions[starschema.TableArtists])},
			Users:     TableConfig{PartitionBy: slices.Clone(starschema.DefaultPartitions[starschema.TableUsers])},
			Time:      TableConfig{PartitionBy: slices.Clone(starschema.DefaultPartitions[starschema.TableTime])},
			Songplays: TableConfig{PartitionBy: slices.Clone(starschema.DefaultPartitions[starschema.TableSongplays])},
		},
		Songplays: SongplaysConfig{
			Match:      string(starschema.MatchArtist),
			IDStrategy: idgen.StrategyFlake,
		},
	}
}

// Validate checks everything that can be checked without touching storage.
// Locations are checked by Run since the step operations take their own.
func (c Config) Validate() error {
	var errs *multierror.Error
	add := func(key, format string, args ...any) {
		errs = multierror.Append(errs, &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)})
	}

	for key, glob := range map[string]string{"input.song_glob": c.Input.SongGlob, "input.log_glob": c.Input.LogGlob} {
		if glob == "" {
			add(key, "must not be empty")
			continue
		}
		if _, err := path.Match(glob, ""); err != nil {
			add(key, "bad pattern %q", glob)
		}
	}
	if c.Input.Concurrency < 1 {
		add("input.concurrency", "must be at least 1, got %d", c.Input.Concurrency)
	}

	switch SaveMode(c.Output.Mode) {
	case SaveModeOverwrite, SaveModeError, SaveModeAppend:
	default:
		add("output.mode", "unknown save mode %q", c.Output.Mode)
	}

	if _, err := starschema.ParseMatchMode(c.Songplays.Match); err != nil {
		add("songplays.match", "%v", err)
	}
	switch c.Songplays.IDStrategy {
	case "", idgen.StrategyFlake, idgen.StrategySequence:
	default:
		add("songplays.id_strategy", "unknown key strategy %q", c.Songplays.IDStrategy)
	}

	for _, table := range starschema.TableNames {
		nodes, err := starschema.Nodes(table)
		if err != nil {
			add("tables."+table, "%v", err)
			continue
		}
		cols := c.Tables.PartitionBy(table)
		seen := make(map[string]bool, len(cols))
		for _, col := range cols {
			if _, ok := nodes[col]; !ok {
				add("tables."+table+".partition_by", "no column %q", col)
			}
			if seen[col] {
				add("tables."+table+".partition_by", "column %q listed twice", col)
			}
			seen[col] = true
		}
		if len(seen) >= len(nodes) {
			add("tables."+table+".partition_by", "cannot partition by every column")
		}
	}

	return errs.ErrorOrNil()
}
