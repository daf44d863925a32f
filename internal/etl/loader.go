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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/filereader"
)

// malformedError marks a file whose content could not be decoded, as
// opposed to one that could not be fetched.
type malformedError struct {
	key string
	err error
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("malformed input %s: %v", e.key, e.err)
}

func (e *malformedError) Unwrap() error {
	return e.err
}

type loadResult struct {
	rows    []filereader.Row
	files   int
	skipped []SkippedFile
}

// loadJSON reads every file matching glob under loc. Files are read
// concurrently; rows come back in key order, then document order.
func (j *Job) loadJSON(ctx context.Context, loc cloudstorage.Location, glob string) (*loadResult, error) {
	ctx, span := tracer.Start(ctx, "etl.loadJSON", trace.WithAttributes(
		attribute.String("location", loc.String()),
		attribute.String("glob", glob),
	))
	defer span.End()

	client, err := j.clientFor(ctx, loc)
	if err != nil {
		return nil, err
	}

	objects, err := cloudstorage.Glob(ctx, client, loc.Bucket, loc.Key(glob))
	if err != nil {
		return nil, fmt.Errorf("list %s%s: %w", loc, glob, err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s%s", ErrNoInputFiles, loc, glob)
	}
	span.SetAttributes(attribute.Int("files", len(objects)))
	slog.Info("Reading input files",
		slog.String("location", loc.String()),
		slog.String("glob", glob),
		slog.Int("files", len(objects)))

	perFile := make([][]filereader.Row, len(objects))
	var (
		mu      sync.Mutex
		skipped = make(map[int]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Input.Concurrency)
	for i, obj := range objects {
		g.Go(func() error {
			rows, err := j.readObject(gctx, client, loc, obj.Key)
			if err != nil {
				var bad *malformedError
				if j.cfg.Input.SkipMalformed && errors.As(err, &bad) {
					mu.Lock()
					skipped[i] = err
					mu.Unlock()
					return nil
				}
				return err
			}
			perFile[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	res := &loadResult{files: len(objects)}
	var skipErrs *multierror.Error
	for i, rows := range perFile {
		if err, ok := skipped[i]; ok {
			res.skipped = append(res.skipped, SkippedFile{Key: objects[i].Key, Reason: err.Error()})
			skipErrs = multierror.Append(skipErrs, err)
			continue
		}
		res.rows = append(res.rows, rows...)
	}
	if skipErrs != nil {
		slog.Warn("Skipped malformed input files",
			slog.Int("count", len(res.skipped)),
			slog.Any("error", skipErrs))
	}
	return res, nil
}

// readObject fetches one input file and decodes every JSON document in it.
// Local inputs are read in place.
func (j *Job) readObject(ctx context.Context, client cloudstorage.Client, loc cloudstorage.Location, key string) ([]filereader.Row, error) {
	filename := filepath.Join(loc.Bucket, filepath.FromSlash(key))
	if !loc.IsLocal() {
		tmpfile, _, notFound, err := client.DownloadObject(ctx, j.tmpdir, loc.Bucket, key)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", key, err)
		}
		if notFound {
			return nil, fmt.Errorf("download %s: object not found", key)
		}
		defer func() { _ = os.Remove(tmpfile) }()
		filename = tmpfile
	}

	r, err := filereader.OpenJSONFile(filename)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("open %s: %w", key, err)
		}
		return nil, &malformedError{key: key, err: err}
	}
	defer func() { _ = r.Close() }()

	rows, err := filereader.ReadAll(r)
	if err != nil {
		return nil, &malformedError{key: key, err: err}
	}

	attrs := metric.WithAttributes(attribute.String("bucket", loc.Bucket))
	filesRead.Add(ctx, 1, attrs)
	rowsRead.Add(ctx, int64(len(rows)), attrs)
	return rows, nil
}
