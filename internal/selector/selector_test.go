package selector

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileEmptyMatchesAll(t *testing.T) {
	for _, expr := range []string{"", "   ", "\t\n"} {
		sel, err := Compile(expr)
		require.NoError(t, err)
		assert.True(t, sel.IsMatchAll())
		assert.True(t, sel.Matches(nil))
	}
}

func TestCompileValid(t *testing.T) {
	exprs := []string{
		"JMSType = 'order'",
		"JMSXDeliveryCount > 3",
		"price BETWEEN 10 AND 20",
		"region IN ('eu', 'us')",
		"name LIKE 'ord%'",
		"name LIKE 'x\\_1' ESCAPE '\\'",
		"attempts IS NULL",
		"attempts IS NOT NULL",
		"NOT (a = 1 OR b = 2)",
		"price * 2 + 1 >= 10",
		"-price < 0",
		"JMSTimestamp < '2024-01-15 00:00:00'",
		"JMS_BEA_State LIKE 'expired'",
		"JMSCorrelationID = 'abc' AND JMSPriority >= 4",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			sel, err := Compile(expr)
			require.NoError(t, err)
			assert.False(t, sel.IsMatchAll())
			assert.Equal(t, expr, sel.String())
		})
	}
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		expr string
	}{
		{"JMSType ="},
		{"= 5"},
		{"price BETWEEN 10"},
		{"region IN ()"},
		{"name LIKE 5"},
		{"'unterminated"},
		{"a = 1 extra"},
		{"((a = 1)"},
		{"a & b"},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			_, err := Compile(tc.expr)
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Greater(t, ce.Position, 0)
			assert.NotEmpty(t, ce.Reason)
		})
	}
}

func TestCompileRejectsUnknownJMSProperty(t *testing.T) {
	_, err := Compile("JMSBogus = 1")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "JMSBogus")

	// Custom (non-JMS-prefixed) properties are fine.
	_, err = Compile("orderTotal > 100")
	require.NoError(t, err)
}

func TestMatches(t *testing.T) {
	props := map[string]any{
		"JMSType":           "order",
		"JMSPriority":       int64(4),
		"JMSXDeliveryCount": int64(5),
		"region":            "eu",
		"price":             12.5,
	}

	cases := []struct {
		expr string
		want bool
	}{
		{"JMSType = 'order'", true},
		{"JMSType <> 'order'", false},
		{"JMSPriority >= 4", true},
		{"JMSPriority > 4", false},
		{"JMSXDeliveryCount > 3 AND region = 'eu'", true},
		{"region = 'us' OR price < 20", true},
		{"price BETWEEN 10 AND 20", true},
		{"price NOT BETWEEN 10 AND 20", false},
		{"region IN ('us', 'apac')", false},
		{"region NOT IN ('us', 'apac')", true},
		{"JMSType LIKE 'ord%'", true},
		{"JMSType LIKE 'o_der'", true},
		{"JMSType LIKE 'x%'", false},
		{"price * 2 > 20", true},
		{"price + 10 <= 20", false},
		// Missing property compares to NULL: unknown, not a match.
		{"missing = 1", false},
		{"missing IS NULL", true},
		{"price IS NOT NULL", true},
		// NULL propagation through NOT stays unknown.
		{"NOT missing = 1", false},
		// Three-valued OR: unknown OR true is true.
		{"missing = 1 OR region = 'eu'", true},
		{"missing = 1 AND region = 'eu'", false},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			sel, err := Compile(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sel.Matches(props))
		})
	}
}

func TestStringEqualityOnly(t *testing.T) {
	sel, err := Compile("JMSType > 'order'")
	require.NoError(t, err)
	// Ordering comparisons are undefined for strings: no match.
	assert.False(t, sel.Matches(map[string]any{"JMSType": "zebra"}))
}

func TestTimestampLiteralRewrite(t *testing.T) {
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local).UnixMilli()
	got := rewriteTimestampLiterals("JMSTimestamp < '2024-01-15 10:30:00'")
	assert.Equal(t, "JMSTimestamp < "+strconv.FormatInt(want, 10), got)

	// Date-time with millis and T separator.
	withMillis := time.Date(2024, 1, 15, 10, 30, 0, int(250*time.Millisecond), time.Local).UnixMilli()
	got = rewriteTimestampLiterals("JMSTimestamp >= '2024-01-15T10:30:00.250'")
	assert.Equal(t, "JMSTimestamp >= "+strconv.FormatInt(withMillis, 10), got)

	// Ordinary strings are untouched.
	assert.Equal(t, "JMSType = 'order'", rewriteTimestampLiterals("JMSType = 'order'"))
}

func TestTimestampComparisonEndToEnd(t *testing.T) {
	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	sel, err := Compile("JMSTimestamp < '2024-06-01 00:00:00'")
	require.NoError(t, err)

	old := map[string]any{"JMSTimestamp": cutoff.Add(-time.Hour).UnixMilli()}
	recent := map[string]any{"JMSTimestamp": cutoff.Add(time.Hour).UnixMilli()}
	assert.True(t, sel.Matches(old))
	assert.False(t, sel.Matches(recent))
}

func TestQuotedStringEscape(t *testing.T) {
	sel, err := Compile("note = 'it''s fine'")
	require.NoError(t, err)
	assert.True(t, sel.Matches(map[string]any{"note": "it's fine"}))
}
