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
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/songlake/config"
	"github.com/cardinalhq/songlake/internal/awsclient"
	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/etl"
	"github.com/cardinalhq/songlake/internal/notify"
)

// stepFunc runs part of the job and summarizes what it published.
type stepFunc func(ctx context.Context, job *etl.Job, input, output cloudstorage.Location) (*etl.RunSummary, error)

func init() {
	rootCmd.AddCommand(
		newETLCommand("run", "Run the full ETL: song data, then log data", runAll),
		newETLCommand("process-songs", "Build the songs and artists tables from song_data", runSongs),
		newETLCommand("process-logs", "Build the users, time and songplays tables from log_data", runLogs),
	)
}

func newETLCommand(use, short string, step stepFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, doneFx, err := setupTelemetry(serviceName, nil)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			started := time.Now()
			err = runETL(ctx, use, cfg, step)
			recordRun(ctx, use, started, err)
			return err
		},
	}

	cmd.Flags().String("input", "", "input location: s3://bucket/prefix, azure://container/prefix or a local directory")
	cmd.Flags().String("output", "", "output location for the tables")
	cmd.Flags().String("mode", "", "save mode: overwrite, error or append")
	cmd.Flags().Bool("skip-malformed", false, "skip input files that fail to parse instead of failing the run")
	return cmd
}

// loadConfig reads configuration and applies command line overrides.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	configFile, _ := c.Flags().GetString("config")
	credFile, _ := c.Flags().GetString("credentials")
	cfg, err := config.Load(configFile, credFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v, _ := c.Flags().GetString("input"); v != "" {
		cfg.ETL.Input.Location = v
	}
	if v, _ := c.Flags().GetString("output"); v != "" {
		cfg.ETL.Output.Location = v
	}
	if v, _ := c.Flags().GetString("mode"); v != "" {
		cfg.ETL.Output.Mode = v
	}
	if c.Flags().Changed("skip-malformed") {
		cfg.ETL.Input.SkipMalformed, _ = c.Flags().GetBool("skip-malformed")
	}
	return cfg, nil
}

func awsOptions(cfg *config.Config) []awsclient.ManagerOption {
	return []awsclient.ManagerOption{
		awsclient.WithAssumeRoleSessionName(serviceName),
		awsclient.WithStaticCredentials(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey),
		awsclient.WithDefaultRegion(cfg.Storage.Region),
	}
}

func runETL(ctx context.Context, command string, cfg *config.Config, step stepFunc) error {
	input, output, err := etl.ParseLocations(cfg.ETL)
	if err != nil {
		return err
	}

	managers := cloudstorage.NewCloudManagers(awsOptions(cfg)...)
	job, err := etl.NewJob(cfg.ETL, managers, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := job.Close(); err != nil {
			slog.Warn("Failed to remove work dir", slog.Any("error", err))
		}
	}()

	slog.Info("Starting",
		slog.String("command", command),
		slog.String("runID", job.RunID()),
		slog.String("input", input.String()),
		slog.String("output", output.String()),
		slog.String("mode", cfg.ETL.Output.Mode))

	summary, err := step(ctx, job, input, output)
	if err != nil {
		slog.Error("Run failed", slog.String("runID", job.RunID()), slog.Any("error", err))
		return err
	}
	summary.Log(slog.Default())

	if cfg.Notify.Enabled() {
		if err := sendSummary(ctx, managers, cfg, command, summary); err != nil {
			// The tables are published; a lost notification does not fail the run.
			slog.Error("Failed to send run notification",
				slog.String("queue", cfg.Notify.SQSQueueURL),
				slog.Any("error", err))
		}
	}
	return nil
}

func sendSummary(ctx context.Context, managers *cloudstorage.CloudManagers, cfg *config.Config, command string, summary *etl.RunSummary) error {
	awsMgr, err := managers.AWS(ctx)
	if err != nil {
		return err
	}
	var extra []awsclient.SQSOption
	if cfg.Notify.SQSEndpoint != "" {
		extra = append(extra, awsclient.WithSQSEndpoint(cfg.Notify.SQSEndpoint))
	}
	client, err := awsMgr.GetSQSForProfile(ctx, cfg.Storage, extra...)
	if err != nil {
		return err
	}
	return notify.NewSQSNotifier(client.Client, cfg.Notify.SQSQueueURL).Notify(ctx, "songlake."+command, summary)
}

// runAll runs song data then log data. Job.Run reads the same locations
// from the job's config.
func runAll(ctx context.Context, job *etl.Job, _, _ cloudstorage.Location) (*etl.RunSummary, error) {
	return job.Run(ctx)
}

func runSongs(ctx context.Context, job *etl.Job, input, output cloudstorage.Location) (*etl.RunSummary, error) {
	return summarized(job, input, output, func() ([]etl.TableSummary, error) {
		return job.ProcessSongData(ctx, input, output)
	})
}

func runLogs(ctx context.Context, job *etl.Job, input, output cloudstorage.Location) (*etl.RunSummary, error) {
	return summarized(job, input, output, func() ([]etl.TableSummary, error) {
		return job.ProcessLogData(ctx, input, output)
	})
}

func summarized(job *etl.Job, input, output cloudstorage.Location, step func() ([]etl.TableSummary, error)) (*etl.RunSummary, error) {
	started := time.Now()
	tables, err := step()
	if err != nil {
		return nil, err
	}
	return job.Summarize(started, input, output, tables), nil
}
