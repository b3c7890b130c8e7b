package selector

import (
	"regexp"
	"strconv"
	"time"
)

// JMSTimestamp comparisons work on epoch milliseconds, which nobody wants to
// type during an incident. Quoted timestamps in the local-time forms
// 'yyyy-MM-dd HH:mm', 'yyyy-MM-dd HH:mm:ss' and 'yyyy-MM-dd HH:mm:ss.SSS'
// are rewritten to their millisecond value before the expression is parsed.
var timestampLiteral = regexp.MustCompile(
	`'(\d{4}-\d{2}-\d{2})[ T](\d{2}:\d{2}(?::\d{2}(?:\.\d{3})?)?)'`)

var timestampLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func rewriteTimestampLiterals(expr string) string {
	return timestampLiteral.ReplaceAllStringFunc(expr, func(lit string) string {
		m := timestampLiteral.FindStringSubmatch(lit)
		text := m[1] + " " + m[2]
		for _, layout := range timestampLayouts {
			t, err := time.ParseInLocation(layout, text, time.Local)
			if err == nil {
				return strconv.FormatInt(t.UnixMilli(), 10)
			}
		}
		// Looked like a timestamp but did not parse (e.g. month 13);
		// leave it for the broker to reject.
		return lit
	})
}
