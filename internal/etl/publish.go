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
	"path/filepath"
	"slices"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/starschema"
	"github.com/cardinalhq/songlake/internal/tablewriter"
)

// publishTable stages rows as Parquet part files and uploads them under
// <out>/<table>/, applying the configured save mode. The _SUCCESS manifest
// goes up last.
func (j *Job) publishTable(ctx context.Context, out cloudstorage.Location, table string, rows []map[string]any) (TableSummary, error) {
	ctx, span := tracer.Start(ctx, "etl.publishTable", trace.WithAttributes(
		attribute.String("table", table),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	client, err := j.clientFor(ctx, out)
	if err != nil {
		return TableSummary{}, err
	}
	tableLoc := out.Child(table)
	partitionBy := j.cfg.Tables.PartitionBy(table)
	mode := SaveMode(j.cfg.Output.Mode)

	existing, err := client.ListObjects(ctx, tableLoc.Bucket, tableLoc.Prefix)
	if err != nil {
		return TableSummary{}, fmt.Errorf("list %s: %w", tableLoc, err)
	}
	if mode == SaveModeError && len(existing) > 0 {
		return TableSummary{}, fmt.Errorf("%w: %s has %d objects", ErrOutputExists, tableLoc, len(existing))
	}

	nodes, err := starschema.Nodes(table)
	if err != nil {
		return TableSummary{}, err
	}
	stage := filepath.Join(j.tmpdir, "stage", table)
	defer func() { _ = os.RemoveAll(stage) }()

	w, err := tablewriter.NewWriter(stage,
		tablewriter.Schema{Name: table, Nodes: nodes, PartitionBy: partitionBy},
		tablewriter.WithRunID(j.runID),
		tablewriter.WithMaxRowsPerFile(j.cfg.Output.MaxRowsPerFile),
		tablewriter.WithMaxBufferedRows(j.cfg.Output.MaxBufferedRows),
	)
	if err != nil {
		return TableSummary{}, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return TableSummary{}, multierror.Append(fmt.Errorf("write %s: %w", table, err), w.Abort()).ErrorOrNil()
		}
	}
	results, err := w.Close()
	if err != nil {
		return TableSummary{}, fmt.Errorf("close %s writer: %w", table, err)
	}

	if mode == SaveModeOverwrite && len(existing) > 0 {
		n, err := cloudstorage.DeletePrefix(ctx, client, tableLoc.Bucket, tableLoc.Prefix)
		if err != nil {
			return TableSummary{}, fmt.Errorf("clear %s: %w", tableLoc, err)
		}
		slog.Info("Removed previous table output",
			slog.String("table", table),
			slog.Int("objects", n))
	}

	summary := TableSummary{
		Table:       table,
		Location:    tableLoc.String(),
		Rows:        w.Rows(),
		PartitionBy: partitionBy,
	}
	manifest := Manifest{
		RunID:       j.runID,
		Table:       table,
		Mode:        string(mode),
		Rows:        w.Rows(),
		PartitionBy: partitionBy,
		Files:       make([]ManifestFile, 0, len(results)),
	}

	attrs := metric.WithAttributes(attribute.String("table", table))
	for _, r := range results {
		if err := client.UploadObject(ctx, tableLoc.Bucket, tableLoc.Key(r.RelPath), r.FileName); err != nil {
			return TableSummary{}, fmt.Errorf("upload %s/%s: %w", table, r.RelPath, err)
		}
		_ = os.Remove(r.FileName)

		size := max(r.FileSize, 0)
		summary.Files++
		summary.Bytes += size
		manifest.Files = append(manifest.Files, ManifestFile{Path: r.RelPath, Rows: r.RecordCount, Bytes: size})
		filesWritten.Add(ctx, 1, attrs)
		bytesWritten.Add(ctx, size, attrs)
	}
	rowsWritten.Add(ctx, summary.Rows, attrs)

	if mode == SaveModeAppend && hasObject(existing, tableLoc.Key(SuccessMarker)) {
		prev, found, err := j.readManifest(ctx, client, tableLoc)
		if err != nil {
			return TableSummary{}, err
		}
		if found {
			manifest.Rows += prev.Rows
			manifest.Files = append(prev.Files, manifest.Files...)
		}
	}

	manifest.WrittenAt = j.now().UTC()
	if err := j.writeManifest(ctx, client, tableLoc, manifest); err != nil {
		return TableSummary{}, err
	}
	return summary, nil
}

func hasObject(objects []cloudstorage.ObjectInfo, key string) bool {
	return slices.ContainsFunc(objects, func(o cloudstorage.ObjectInfo) bool {
		return o.Key == key
	})
}
