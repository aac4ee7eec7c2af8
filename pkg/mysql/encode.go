package mysql

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/dataaccess/pkg/core"
)

var fieldEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
	"\x00", `\0`,
)

// encodeRows renders rows in the LOAD DATA default format: tab-separated
// fields, newline-terminated lines, backslash escapes and \N for NULL.
func encodeRows(data core.Table) ([]byte, error) {
	var buf bytes.Buffer
	for i, row := range data.Rows {
		if len(row) != len(data.Columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(data.Columns))
		}
		for j, v := range row {
			if j > 0 {
				buf.WriteByte('\t')
			}
			buf.WriteString(encodeField(v))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func encodeField(v any) string {
	switch val := v.(type) {
	case nil:
		return `\N`
	case bool:
		if val {
			return "1"
		}
		return "0"
	case []byte:
		return fieldEscaper.Replace(string(val))
	case string:
		return fieldEscaper.Replace(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05.999999")
	default:
		return fieldEscaper.Replace(fmt.Sprint(val))
	}
}
