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

package cloudstorage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw    string
		want   Location
		str    string
		errMsg string
	}{
		{
			raw:  "s3a://udacity-dend/",
			want: Location{Scheme: "s3", Bucket: "udacity-dend"},
			str:  "s3://udacity-dend/",
		},
		{
			raw:  "s3n://bucket/some/prefix",
			want: Location{Scheme: "s3", Bucket: "bucket", Prefix: "some/prefix/"},
			str:  "s3://bucket/some/prefix/",
		},
		{
			raw:  "s3://bucket",
			want: Location{Scheme: "s3", Bucket: "bucket"},
			str:  "s3://bucket/",
		},
		{
			raw:  "azure://container//lake/",
			want: Location{Scheme: "azure", Bucket: "container", Prefix: "lake/"},
			str:  "azure://container/lake/",
		},
		{
			raw:  "file:///data/lake/",
			want: Location{Scheme: "file", Bucket: "/data/lake"},
			str:  "file:///data/lake",
		},
		{raw: "", errMsg: "empty location"},
		{raw: "s3:///prefix", errMsg: "has no bucket"},
		{raw: "hdfs://namenode/path", errMsg: "unsupported location scheme"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.errMsg != "" {
				assert.ErrorContains(t, err, tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestParseLocationBarePath(t *testing.T) {
	got, err := ParseLocation("data/out")
	require.NoError(t, err)
	abs, err := filepath.Abs("data/out")
	require.NoError(t, err)
	assert.Equal(t, Location{Scheme: "file", Bucket: abs}, got)
	assert.True(t, got.IsLocal())
}

func TestLocationKeyAndChild(t *testing.T) {
	loc := Location{Scheme: "s3", Bucket: "b", Prefix: "lake/"}
	assert.Equal(t, "lake/songs/_SUCCESS", loc.Key("songs", "_SUCCESS"))

	child := loc.Child("songs")
	assert.Equal(t, "lake/songs/", child.Prefix)
	assert.Equal(t, "b", child.Bucket)
	assert.Equal(t, "lake/songs/year=2000/part.parquet", child.Key("year=2000/part.parquet"))

	root := Location{Scheme: "s3", Bucket: "b"}
	assert.Equal(t, "songs/", root.Child("songs").Prefix)
	assert.Equal(t, "song_data/*/*/*/*.json", root.Key("song_data/*/*/*/*.json"))

	local := Location{Scheme: "file", Bucket: "/data/lake"}
	assert.Equal(t, filepath.FromSlash("/data/lake/songs"), local.Child("songs").LocalPath())
	assert.False(t, loc.IsLocal())
}
