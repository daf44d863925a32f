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
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Location is a parsed input or output URL. For local locations Bucket
// holds the absolute directory and Prefix is empty.
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseLocation accepts s3://, s3a://, s3n://, azure://, file:// URLs and
// bare filesystem paths. s3a and s3n are folded into s3.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return localLocation(raw)
	}

	switch strings.ToLower(scheme) {
	case "s3", "s3a", "s3n":
		scheme = "s3"
	case "azure":
		scheme = "azure"
	case "file":
		return localLocation(rest)
	default:
		return Location{}, fmt.Errorf("unsupported location scheme %q in %q", scheme, raw)
	}

	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("location %q has no bucket", raw)
	}
	return Location{Scheme: scheme, Bucket: bucket, Prefix: normalizePrefix(prefix)}, nil
}

func localLocation(p string) (Location, error) {
	if p == "" {
		return Location{}, fmt.Errorf("empty local path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return Location{}, fmt.Errorf("resolve %q: %w", p, err)
	}
	return Location{Scheme: "file", Bucket: abs}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// IsLocal reports whether the location is on the local filesystem.
func (l Location) IsLocal() bool {
	return l.Scheme == "file"
}

// Key joins elements onto the location prefix to form an object key.
func (l Location) Key(elem ...string) string {
	return path.Join(append([]string{l.Prefix}, elem...)...)
}

// Child returns the location of a sub-directory.
func (l Location) Child(name string) Location {
	out := l
	out.Prefix = normalizePrefix(l.Key(name))
	return out
}

// LocalPath returns the filesystem path of a local location.
func (l Location) LocalPath() string {
	return filepath.Join(l.Bucket, filepath.FromSlash(l.Prefix))
}

func (l Location) String() string {
	if l.IsLocal() {
		return "file://" + filepath.ToSlash(l.LocalPath())
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
}
