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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/songlake/internal/helpers"
	"github.com/cardinalhq/songlake/internal/idgen"
)

var (
	commonAttributes attribute.Set

	meter = otel.Meter("github.com/cardinalhq/songlake")

	myInstanceID int64

	runDuration metric.Float64Histogram
	runCounter  metric.Int64Counter
)

func setupTelemetry(servicename string, addlAttrs *attribute.Set) (context.Context, func() error, error) {
	myInstanceID = instanceID()

	// Catch signals to stop the process as gracefully as possible.
	doneCtx, doneCancel := handleSignals(context.Background())

	f := func() error {
		doneCancel()
		return nil
	}

	setupGlobalMetrics()

	attrs := []attribute.KeyValue{
		attribute.Int64("instanceID", myInstanceID),
	}
	if addlAttrs != nil {
		iter := addlAttrs.Iter()
		for iter.Next() {
			attrs = append(attrs, iter.Attribute())
		}
	}
	commonAttributes = attribute.NewSet(attrs...)

	var opts *slog.HandlerOptions
	if helpers.GetBoolEnv("DEBUG", false) || helpers.GetBoolEnv("SONGLAKE_DEBUG", false) {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	if os.Getenv("OTEL_SERVICE_NAME") != "" && os.Getenv("ENABLE_OTLP_TELEMETRY") == "true" {
		slog.Info("OpenTelemetry exporting enabled")
		slog.SetDefault(slog.New(slogmulti.Fanout(
			slog.NewTextHandler(os.Stdout, opts),
			otelslog.NewHandler(servicename),
		)).With(
			slog.String("service", servicename),
			slog.Int64("instanceID", myInstanceID),
		))

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return doneCtx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
			slog.Warn("failed to start runtime metrics", "error", err.Error())
		}

		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", "error", err.Error())
		}

		f = func() error {
			defer doneCancel()
			slog.Info("Shutting down OpenTelemetry SDK")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)).With(
			slog.String("service", servicename),
			slog.Int64("instanceID", myInstanceID),
		))
	}

	return doneCtx, f, nil
}

// instanceID tags log lines and metrics from this process. A sonyflake id
// is used when one can be made.
func instanceID() int64 {
	gen, err := idgen.NewFlakeGenerator()
	if err != nil {
		return int64(os.Getpid())
	}
	id, err := gen.NextID()
	if err != nil {
		return int64(os.Getpid())
	}
	return id
}

func setupGlobalMetrics() {
	m, err := meter.Float64Histogram(
		"songlake.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds of one ETL command"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create run.duration histogram: %w", err))
	}
	runDuration = m

	c, err := meter.Int64Counter(
		"songlake.run.count",
		metric.WithDescription("Number of ETL commands run, by command and outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create run.count counter: %w", err))
	}
	runCounter = c
}

func recordRun(ctx context.Context, command string, started time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributeSet(attribute.NewSet(
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))
	runDuration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributeSet(commonAttributes), attrs)
	runCounter.Add(ctx, 1, metric.WithAttributeSet(commonAttributes), attrs)
}
