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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	filesRead    metric.Int64Counter
	rowsRead     metric.Int64Counter
	rowsWritten  metric.Int64Counter
	filesWritten metric.Int64Counter
	bytesWritten metric.Int64Counter

	tracer trace.Tracer
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/songlake/internal/etl")
	tracer = otel.Tracer("github.com/cardinalhq/songlake/internal/etl")

	var err error
	filesRead, err = meter.Int64Counter(
		"songlake.etl.files.read",
		metric.WithDescription("Number of input JSON files read"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create files.read counter: %w", err))
	}

	rowsRead, err = meter.Int64Counter(
		"songlake.etl.rows.read",
		metric.WithDescription("Number of JSON documents read from input files"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.read counter: %w", err))
	}

	rowsWritten, err = meter.Int64Counter(
		"songlake.etl.rows.written",
		metric.WithDescription("Number of rows written to output tables"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.written counter: %w", err))
	}

	filesWritten, err = meter.Int64Counter(
		"songlake.etl.files.written",
		metric.WithDescription("Number of Parquet part files published"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create files.written counter: %w", err))
	}

	bytesWritten, err = meter.Int64Counter(
		"songlake.etl.bytes.written",
		metric.WithDescription("Bytes of Parquet published"),
		metric.WithUnit("By"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create bytes.written counter: %w", err))
	}
}
