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

// Package etl runs the song and log processing steps: it reads JSON from an
// input location, builds the star schema tables and publishes them as
// partitioned Parquet under an output location.
package etl

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInputFiles is returned when an input glob matches nothing.
	ErrNoInputFiles = errors.New("no input files matched")

	// ErrOutputExists is returned in error save mode when a table already
	// has objects under its output prefix.
	ErrOutputExists = errors.New("output table already exists")
)

// ConfigError reports one invalid configuration key.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Key, e.Reason)
}
