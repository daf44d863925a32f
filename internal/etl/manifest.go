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
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
)

// SuccessMarker is the object written last under each table prefix.
const SuccessMarker = "_SUCCESS"

// Manifest is the content of a table's _SUCCESS marker. In append mode the
// files and rows of the previous manifest are carried forward, so Rows and
// Files always describe the whole table.
type Manifest struct {
	RunID       string         `yaml:"run_id"`
	Table       string         `yaml:"table"`
	WrittenAt   time.Time      `yaml:"written_at"`
	Mode        string         `yaml:"mode"`
	Rows        int64          `yaml:"rows"`
	PartitionBy []string       `yaml:"partition_by,omitempty"`
	Files       []ManifestFile `yaml:"files"`
}

type ManifestFile struct {
	Path  string `yaml:"path"`
	Rows  int64  `yaml:"rows"`
	Bytes int64  `yaml:"bytes"`
}

// ParseManifest decodes a _SUCCESS marker.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// readManifest fetches and decodes the _SUCCESS marker under tableLoc.
// found is false when there is none.
func (j *Job) readManifest(ctx context.Context, client cloudstorage.Client, tableLoc cloudstorage.Location) (m *Manifest, found bool, err error) {
	filename, _, notFound, err := client.DownloadObject(ctx, j.tmpdir, tableLoc.Bucket, tableLoc.Key(SuccessMarker))
	if err != nil {
		return nil, false, fmt.Errorf("download %s manifest: %w", tableLoc, err)
	}
	if notFound {
		return nil, false, nil
	}
	defer func() { _ = os.Remove(filename) }()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, false, fmt.Errorf("read %s manifest: %w", tableLoc, err)
	}
	m, err = ParseManifest(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", tableLoc, err)
	}
	return m, true, nil
}

func (j *Job) writeManifest(ctx context.Context, client cloudstorage.Client, tableLoc cloudstorage.Location, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	f, err := os.CreateTemp(j.tmpdir, "manifest-*.yaml")
	if err != nil {
		return fmt.Errorf("create manifest file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write manifest file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close manifest file: %w", err)
	}

	if err := client.UploadObject(ctx, tableLoc.Bucket, tableLoc.Key(SuccessMarker), f.Name()); err != nil {
		return fmt.Errorf("upload %s manifest: %w", m.Table, err)
	}
	return nil
}
