package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/queueops/jmsqctl/internal/models"
)

const timeLayout = "2006-01-02 15:04:05.000"

// table accumulates rows and renders them with space-aligned columns.
// Numeric columns are right-aligned.
type table struct {
	headers []string
	numeric []bool
	rows    [][]string
}

func newTable(headers []string, numeric []bool) *table {
	return &table{headers: headers, numeric: numeric}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if t.numeric[i] {
				parts[i] = fmt.Sprintf("%*s", widths[i], c)
			} else {
				parts[i] = fmt.Sprintf("%-*s", widths[i], c)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(t.headers)
	rules := make([]string, len(widths))
	for i, n := range widths {
		rules[i] = strings.Repeat("-", n)
	}
	writeRow(rules)
	for _, row := range t.rows {
		writeRow(row)
	}
}

// WriteInventory renders a queue inventory with a trailing TOTAL row.
func WriteInventory(w io.Writer, queues []models.QueueDescriptor) {
	t := newTable(
		[]string{"QUEUE", "MESSAGES", "CONSUMERS", "LISTENER"},
		[]bool{false, true, true, false},
	)
	var total int64
	for _, q := range queues {
		listener := "no"
		if q.HasListener {
			listener = "yes"
		}
		t.add(q.Name,
			strconv.FormatInt(q.CurrentCount, 10),
			strconv.Itoa(q.ConsumerCount),
			listener)
		total += q.CurrentCount
	}
	t.add("TOTAL", strconv.FormatInt(total, 10), "", "")
	t.write(w)
}

// WriteQueueReport renders one queue's diagnostic report as a property table.
func WriteQueueReport(w io.Writer, rep *models.QueueReport) {
	t := newTable([]string{"PROPERTY", "VALUE"}, []bool{false, false})
	t.add("Queue", rep.Queue.Name)
	t.add("Current count", strconv.FormatInt(rep.Queue.CurrentCount, 10))
	t.add("Received count", strconv.FormatInt(rep.ReceivedCount, 10))
	t.add("Consumers", strconv.Itoa(rep.Queue.ConsumerCount))
	if rep.Queue.HasListener {
		t.add("Listener", "yes")
	} else {
		t.add("Listener", "no")
	}
	addSnapshot(t, "First message", rep.First)
	addSnapshot(t, "Last message", rep.Last)
	t.write(w)
}

func addSnapshot(t *table, label string, m *models.MessageDescriptor) {
	if m == nil {
		t.add(label, "(none)")
		return
	}
	t.add(label, m.ID)
	t.add(label+" time", m.Timestamp.In(time.Local).Format(timeLayout))
	t.add(label+" size", strconv.FormatInt(m.Size, 10))
	if m.Type != "" {
		t.add(label+" type", m.Type)
	}
}

// WriteOutcome renders a mutation outcome summary and its itemized failures.
func WriteOutcome(w io.Writer, out *models.MutationOutcome) {
	fmt.Fprintf(w, "requested: %d  succeeded: %d  failed: %d  not attempted: %d\n",
		out.Requested, out.Succeeded, out.Failed, out.NotAttempted)
	if len(out.Failures) == 0 {
		return
	}
	t := newTable([]string{"MESSAGE", "KIND", "REASON"}, []bool{false, false, false})
	for _, f := range out.Failures {
		t.add(f.MessageID, string(f.Kind), f.Reason)
	}
	t.write(w)
}
