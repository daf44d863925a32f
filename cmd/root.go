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
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "songlake"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "songlake",
	Short: "Build the Sparkify star schema data lake",
	Long: `Read Sparkify song_data and log_data JSON from object storage or local disk,
build the songs, artists, users, time and songplays tables, and write them
back as partitioned Parquet.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("credentials", "", "INI credentials file with an [AWS] section (default ./dl.cfg)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
