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
	"fmt"
	"path"
	"sort"
	"strings"
)

// GlobPrefix returns the literal part of a glob up to the last '/' before
// the first meta character. That is the listing prefix for the pattern.
func GlobPrefix(pattern string) string {
	i := strings.IndexAny(pattern, `*?[\`)
	if i < 0 {
		return pattern
	}
	return pattern[:strings.LastIndex(pattern[:i], "/")+1]
}

// Glob lists the objects in bucket whose keys match pattern, using
// path.Match semantics so '*' never crosses '/'. Results are in key order.
func Glob(ctx context.Context, client Client, bucket, pattern string) ([]ObjectInfo, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
	}

	objects, err := client.ListObjects(ctx, bucket, GlobPrefix(pattern))
	if err != nil {
		return nil, err
	}

	var matched []ObjectInfo
	for _, obj := range objects {
		ok, _ := path.Match(pattern, obj.Key)
		if ok {
			matched = append(matched, obj)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Key < matched[j].Key })
	return matched, nil
}

// DeletePrefix removes every object under prefix and returns how many were
// deleted.
func DeletePrefix(ctx context.Context, client Client, bucket, prefix string) (int, error) {
	objects, err := client.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	failed, err := client.DeleteObjects(ctx, bucket, keys)
	if err != nil {
		return 0, err
	}
	if len(failed) > 0 {
		return len(keys) - len(failed), fmt.Errorf("failed to delete %d of %d objects under %s, first %s",
			len(failed), len(keys), prefix, failed[0])
	}
	return len(keys), nil
}
