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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/lakequery"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run SQL or a canned report over a local songlake output directory",
		Long: `Registers one DuckDB view per table found under --output and runs --sql or
--report against them. Reports: ` + strings.Join(lakequery.ReportNames(), ", ") + ".",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			output, _ := c.Flags().GetString("output")
			query, _ := c.Flags().GetString("sql")
			report, _ := c.Flags().GetString("report")

			ctx, cancel := handleSignals(context.Background())
			defer cancel()
			return runQuery(ctx, output, query, report)
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().String("output", "", "songlake output directory (local only)")
	cmd.Flags().String("sql", "", "SQL to run; tables are songs, artists, users, time and songplays")
	cmd.Flags().String("report", "", "canned report to run")
	if err := cmd.MarkFlagRequired("output"); err != nil {
		panic(fmt.Errorf("failed to mark output flag as required: %w", err))
	}
	cmd.MarkFlagsMutuallyExclusive("sql", "report")
	cmd.MarkFlagsOneRequired("sql", "report")
}

func runQuery(ctx context.Context, output, query, report string) error {
	loc, err := cloudstorage.ParseLocation(output)
	if err != nil {
		return err
	}
	if !loc.IsLocal() {
		return errors.New("query reads local output only; copy the tables down first")
	}

	engine, err := lakequery.Open(ctx, loc.LocalPath())
	if err != nil {
		return err
	}
	defer func() {
		_ = engine.Close()
	}()

	var res *lakequery.Result
	if report != "" {
		res, err = engine.RunReport(ctx, report)
	} else {
		res, err = engine.Query(ctx, query)
	}
	if err != nil {
		return err
	}
	return res.Write(os.Stdout)
}
