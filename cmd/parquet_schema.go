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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/songlake/internal/filecrunch"
	"github.com/cardinalhq/songlake/internal/starschema"
)

func init() {
	cmd := &cobra.Command{
		Use:   "parquet-schema",
		Short: "Print out the schema of a Parquet file",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			table, _ := c.Flags().GetString("table")
			partitionBy, _ := c.Flags().GetStringSlice("partition-by")

			return runParquetSchema(filename, table, partitionBy, c.Flags().Changed("partition-by"))
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().String("file", "", "Parquet file to read")
	cmd.Flags().String("table", "", "also check the file against this table's columns")
	cmd.Flags().StringSlice("partition-by", nil, "partition columns of the table (default: the table's default partitioning)")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}
}

func runParquetSchema(filename, table string, partitionBy []string, partitionsSet bool) error {
	fh, err := filecrunch.LoadSchemaForFile(filename)
	if err != nil {
		return fmt.Errorf("failed to load schema for file %s: %w", filename, err)
	}
	defer func() {
		_ = fh.Close()
	}()

	fmt.Println(fh.Schema.String())
	if err := fh.Summary().Write(os.Stdout); err != nil {
		return err
	}

	if table == "" {
		return nil
	}
	expected, err := starschema.Nodes(table)
	if err != nil {
		return err
	}
	if !partitionsSet {
		partitionBy = starschema.DefaultPartitions[table]
	}
	if problems := filecrunch.CheckNodes(fh, expected, partitionBy); len(problems) > 0 {
		return fmt.Errorf("%s does not match table %s:\n  %s", filename, table, strings.Join(problems, "\n  "))
	}
	fmt.Printf("\n%s matches table %s\n", filename, table)
	return nil
}
