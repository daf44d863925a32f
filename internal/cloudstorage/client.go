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
	"path"

	"github.com/cardinalhq/songlake/internal/storageprofile"
)

// ObjectInfo describes one object returned by a listing.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Client provides a unified interface for cloud storage operations across different providers
type Client interface {
	// ListObjects returns every object whose key starts with prefix.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// DownloadObject downloads an object from cloud storage to a local file
	// Returns the temp filename, size, whether object was not found, and error
	DownloadObject(ctx context.Context, tmpdir, bucket, key string) (filename string, size int64, notFound bool, err error)

	// UploadObject uploads a local file to cloud storage
	UploadObject(ctx context.Context, bucket, key, sourceFilename string) error

	// DeleteObject deletes an object from cloud storage
	DeleteObject(ctx context.Context, bucket, key string) error

	// DeleteObjects deletes a batch of objects and returns the keys that
	// could not be deleted.
	DeleteObjects(ctx context.Context, bucket string, keys []string) ([]string, error)
}

// ClientProvider creates storage clients for a profile.
type ClientProvider interface {
	NewClient(ctx context.Context, profile storageprofile.StorageProfile) (Client, error)
}

// ClientForLocation resolves the provider a location's scheme calls for and
// returns a client for it.
func ClientForLocation(ctx context.Context, provider ClientProvider, profile storageprofile.StorageProfile, loc Location) (Client, error) {
	p, err := profile.ForScheme(loc.Scheme)
	if err != nil {
		return nil, err
	}
	return provider.NewClient(ctx, p)
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
