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

package tablewriter

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPartitionName is the directory value Hive and Spark use for a
// null or empty partition value.
const DefaultPartitionName = "__HIVE_DEFAULT_PARTITION__"

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}

// EscapePathName escapes a partition value the way Hive does, so values
// containing '/' or '=' cannot break the directory layout.
func EscapePathName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// UnescapePathName reverses EscapePathName. Malformed escapes are kept as-is.
func UnescapePathName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// FormatPartitionValue renders a column value as a partition directory value.
func FormatPartitionValue(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return DefaultPartitionName
	case string:
		s = t
	case int64:
		s = strconv.FormatInt(t, 10)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case int:
		s = strconv.Itoa(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return DefaultPartitionName
	}
	return EscapePathName(s)
}

// PartitionPath builds the "col=value/col=value" directory for a row.
// It returns "" when cols is empty.
func PartitionPath(cols []string, row map[string]any) string {
	if len(cols) == 0 {
		return ""
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = EscapePathName(c) + "=" + FormatPartitionValue(row[c])
	}
	return strings.Join(parts, "/")
}

// PartitionValue is one col=value directory of a part file's path.
type PartitionValue struct {
	Column string
	Value  string
	// Null is set when the directory holds DefaultPartitionName.
	Null bool
}

// ParsePartitionPath reads the col=value directories of a slash separated
// path, in order and unescaped. The final element is taken to be the file
// name and other elements without '=' are skipped.
func ParsePartitionPath(p string) []PartitionValue {
	dirs := strings.Split(p, "/")
	var out []PartitionValue
	for _, dir := range dirs[:len(dirs)-1] {
		col, val, ok := strings.Cut(dir, "=")
		if !ok || col == "" {
			continue
		}
		pv := PartitionValue{Column: UnescapePathName(col)}
		if val == DefaultPartitionName {
			pv.Null = true
		} else {
			pv.Value = UnescapePathName(val)
		}
		out = append(out, pv)
	}
	return out
}
