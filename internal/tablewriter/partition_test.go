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

package tablewriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapePathName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ARD7TVE1187B99BFB1", "ARD7TVE1187B99BFB1"},
		{"AC/DC", "AC%2FDC"},
		{"a=b", "a%3Db"},
		{"100%", "100%25"},
		{"12:30", "12%3A30"},
		{"tab\there", "tab%09here"},
		{"spaces are fine", "spaces are fine"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := EscapePathName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, UnescapePathName(got))
		})
	}
}

func TestUnescapePathNameMalformed(t *testing.T) {
	assert.Equal(t, "50%", UnescapePathName("50%"))
	assert.Equal(t, "%zz", UnescapePathName("%zz"))
}

func TestFormatPartitionValue(t *testing.T) {
	assert.Equal(t, DefaultPartitionName, FormatPartitionValue(nil))
	assert.Equal(t, DefaultPartitionName, FormatPartitionValue(""))
	assert.Equal(t, "2018", FormatPartitionValue(int32(2018)))
	assert.Equal(t, "0", FormatPartitionValue(int64(0)))
	assert.Equal(t, "7", FormatPartitionValue(7))
	assert.Equal(t, "1.5", FormatPartitionValue(1.5))
	assert.Equal(t, "true", FormatPartitionValue(true))
	assert.Equal(t, "AC%2FDC", FormatPartitionValue("AC/DC"))
}

func TestPartitionPath(t *testing.T) {
	row := map[string]any{"year": int64(2004), "artist_id": "AR1", "title": "x"}

	assert.Equal(t, "", PartitionPath(nil, row))
	assert.Equal(t, "year=2004", PartitionPath([]string{"year"}, row))
	assert.Equal(t, "year=2004/artist_id=AR1", PartitionPath([]string{"year", "artist_id"}, row))
	assert.Equal(t, "missing="+DefaultPartitionName, PartitionPath([]string{"missing"}, row))
}

func TestParsePartitionPath(t *testing.T) {
	row := map[string]any{"year": int32(0), "artist_id": "AC/DC", "location": nil}
	rel := PartitionPath([]string{"year", "artist_id", "location"}, row) + "/part-00000-run1.zstd.parquet"

	assert.Equal(t, []PartitionValue{
		{Column: "year", Value: "0"},
		{Column: "artist_id", Value: "AC/DC"},
		{Column: "location", Null: true},
	}, ParsePartitionPath("/data/lake/songs/"+rel))

	assert.Empty(t, ParsePartitionPath("part-00000.zstd.parquet"))
	assert.Empty(t, ParsePartitionPath("/tmp/a=b.parquet"))
	assert.Equal(t, []PartitionValue{{Column: "level", Value: "a=b"}},
		ParsePartitionPath("users/level=a%3Db/part-00000.zstd.parquet"))
}
