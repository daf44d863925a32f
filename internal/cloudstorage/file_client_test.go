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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/songlake/internal/storageprofile"
)

func TestFileClientLifecycle(t *testing.T) {
	base := t.TempDir()
	provider := NewFileClientProvider(base)
	client, err := provider.NewClient(context.Background(), storageprofile.StorageProfile{})
	require.NoError(t, err)

	// Create source file
	src := filepath.Join(base, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	// Upload to bucket/key
	require.NoError(t, client.UploadObject(context.Background(), "bucket", "path/file.txt", src))

	// Download and verify
	tmp := t.TempDir()
	dst, size, notFound, err := client.DownloadObject(context.Background(), tmp, "bucket", "path/file.txt")
	require.NoError(t, err)
	require.False(t, notFound)
	require.Equal(t, int64(5), size)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	// Delete
	require.NoError(t, client.DeleteObject(context.Background(), "bucket", "path/file.txt"))
	_, _, notFound, err = client.DownloadObject(context.Background(), tmp, "bucket", "path/file.txt")
	require.NoError(t, err)
	require.True(t, notFound)
}

func TestFileClientPreservesExtensions(t *testing.T) {
	base := t.TempDir()
	provider := NewFileClientProvider(base)
	client, err := provider.NewClient(context.Background(), storageprofile.StorageProfile{})
	require.NoError(t, err)

	testCases := []struct {
		name    string
		key     string
		wantExt string
		content []byte
	}{
		{
			name:    "song file",
			key:     "song_data/A/A/A/TRAAAAW128F429D538.json",
			wantExt: ".json",
			content: []byte(`{"song_id":"SOMZWCG12A8C13C480"}`),
		},
		{
			name:    "gzipped log file",
			key:     "log_data/2018/11/2018-11-01-events.json.gz",
			wantExt: ".json.gz",
			content: []byte("gzipped log data"),
		},
		{
			name:    "parquet file",
			key:     "songs/year=2000/part-00000.zstd.parquet",
			wantExt: ".zstd.parquet",
			content: []byte("parquet data"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Create source file with specific content
			src := filepath.Join(base, "test-src")
			require.NoError(t, os.WriteFile(src, tc.content, 0o644))

			// Upload to bucket with the test key
			require.NoError(t, client.UploadObject(context.Background(), "test-bucket", tc.key, src))

			// Download the file
			tmp := t.TempDir()
			dst, size, notFound, err := client.DownloadObject(context.Background(), tmp, "test-bucket", tc.key)
			require.NoError(t, err)
			require.False(t, notFound)
			require.Equal(t, int64(len(tc.content)), size)

			// Verify the downloaded file has the correct extension
			require.True(t, strings.HasSuffix(filepath.Base(dst), tc.wantExt),
				"Downloaded file %q should end with extension %q", dst, tc.wantExt)

			// Verify content is correct
			data, err := os.ReadFile(dst)
			require.NoError(t, err)
			require.Equal(t, tc.content, data)

			// Clean up
			require.NoError(t, client.DeleteObject(context.Background(), "test-bucket", tc.key))
		})
	}
}

func writeObjects(t *testing.T, client Client, bucket string, keys ...string) {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0o644))
	for _, key := range keys {
		require.NoError(t, client.UploadObject(context.Background(), bucket, key, src))
	}
}

func TestFileClientListObjects(t *testing.T) {
	base := t.TempDir()
	client, err := NewFileClientProvider(base).NewClient(context.Background(), storageprofile.StorageProfile{})
	require.NoError(t, err)

	writeObjects(t, client, "bucket",
		"in/song_data/A/B/C/one.json",
		"in/song_data/A/B/D/two.json",
		"in/log_data/2018/11/events.json",
		"other/file.json",
	)

	objs, err := client.ListObjects(context.Background(), "bucket", "in/song_data/")
	require.NoError(t, err)
	keys := make([]string, len(objs))
	for i, o := range objs {
		keys[i] = o.Key
		assert.Equal(t, int64(2), o.Size)
	}
	assert.ElementsMatch(t, []string{"in/song_data/A/B/C/one.json", "in/song_data/A/B/D/two.json"}, keys)

	// A prefix that ends mid-name still filters by key prefix.
	objs, err = client.ListObjects(context.Background(), "bucket", "in/lo")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "in/log_data/2018/11/events.json", objs[0].Key)

	objs, err = client.ListObjects(context.Background(), "bucket", "missing/")
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestFileClientLocalProfileUsesAbsolutePaths(t *testing.T) {
	base := t.TempDir()
	local := t.TempDir()
	client, err := NewFileClientProvider(base).NewClient(context.Background(),
		storageprofile.StorageProfile{CloudProvider: storageprofile.ProviderLocal})
	require.NoError(t, err)

	writeObjects(t, client, local, "songs/part-00000.zstd.parquet")
	_, err = os.Stat(filepath.Join(local, "songs", "part-00000.zstd.parquet"))
	require.NoError(t, err)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileClientDeleteObjectsPrunesDirectories(t *testing.T) {
	base := t.TempDir()
	client, err := NewFileClientProvider(base).NewClient(context.Background(), storageprofile.StorageProfile{})
	require.NoError(t, err)

	writeObjects(t, client, "out", "songs/year=2000/artist_id=A1/part-00000.zstd.parquet", "songs/_SUCCESS")

	failed, err := client.DeleteObjects(context.Background(), "out", []string{
		"songs/year=2000/artist_id=A1/part-00000.zstd.parquet",
		"songs/_SUCCESS",
	})
	require.NoError(t, err)
	assert.Empty(t, failed)

	_, err = os.Stat(filepath.Join(base, "out", "songs"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(base, "out"))
	assert.NoError(t, err)
}
