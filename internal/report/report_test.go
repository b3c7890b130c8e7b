package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/broker/brokertest"
	"github.com/queueops/jmsqctl/internal/models"
)

func TestBuildEmptyQueue(t *testing.T) {
	f := brokertest.New()
	f.AddQueue("orders", 1)

	rep, err := Build(context.Background(), f, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", rep.Queue.Name)
	assert.EqualValues(t, 0, rep.Queue.CurrentCount)
	assert.EqualValues(t, 0, rep.ReceivedCount)
	// Absence is explicit: no placeholder snapshots for an empty queue.
	assert.Nil(t, rep.First)
	assert.Nil(t, rep.Last)
}

func TestBuildSnapshots(t *testing.T) {
	f := brokertest.New()
	f.AddQueue("orders", 2)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := f.AddMessage("orders", models.MessageDescriptor{Timestamp: base})
	f.AddMessage("orders", models.MessageDescriptor{Timestamp: base.Add(time.Minute)})
	last := f.AddMessage("orders", models.MessageDescriptor{Timestamp: base.Add(2 * time.Minute)})

	rep, err := Build(context.Background(), f, "orders")
	require.NoError(t, err)
	assert.EqualValues(t, 3, rep.Queue.CurrentCount)
	assert.EqualValues(t, 3, rep.ReceivedCount)
	require.NotNil(t, rep.First)
	require.NotNil(t, rep.Last)
	assert.Equal(t, first, rep.First.ID)
	assert.Equal(t, last, rep.Last.ID)
}

func TestBuildReceivedCountSurvivesDeletes(t *testing.T) {
	f := brokertest.New()
	f.AddQueue("orders", 0)
	id := f.AddMessage("orders", models.MessageDescriptor{})
	f.AddMessage("orders", models.MessageDescriptor{})
	require.NoError(t, f.DeleteMessage(context.Background(), "orders", id))

	rep, err := Build(context.Background(), f, "orders")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Queue.CurrentCount)
	assert.EqualValues(t, 2, rep.ReceivedCount)
}

func TestBuildUnknownQueue(t *testing.T) {
	f := brokertest.New()
	_, err := Build(context.Background(), f, "ghost")
	assert.ErrorIs(t, err, broker.ErrQueueNotFound)
}

func TestWriteInventoryTotalRow(t *testing.T) {
	var b strings.Builder
	WriteInventory(&b, []models.QueueDescriptor{
		{Name: "orders", CurrentCount: 12, ConsumerCount: 2, HasListener: true},
		{Name: "billing", CurrentCount: 3},
	})
	out := b.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5) // header, rule, two queues, total

	assert.Contains(t, lines[0], "QUEUE")
	assert.Contains(t, lines[0], "MESSAGES")
	assert.Contains(t, lines[2], "orders")
	assert.Contains(t, lines[2], "yes")
	last := lines[len(lines)-1]
	assert.Contains(t, last, "TOTAL")
	assert.Contains(t, last, "15")
}

func TestWriteQueueReportEmpty(t *testing.T) {
	var b strings.Builder
	WriteQueueReport(&b, &models.QueueReport{
		Queue: models.QueueDescriptor{Name: "orders"},
	})
	out := b.String()
	assert.Contains(t, out, "First message")
	assert.Contains(t, out, "(none)")
	assert.NotContains(t, out, "First message time")
}

func TestWriteOutcome(t *testing.T) {
	var b strings.Builder
	WriteOutcome(&b, &models.MutationOutcome{
		Requested: 5, Succeeded: 3, Failed: 1, NotAttempted: 1,
		Failures: []models.MessageFailure{
			{MessageID: "17", Kind: models.FailureLostInTransit, Reason: "destination rejected"},
		},
	})
	out := b.String()
	assert.Contains(t, out, "requested: 5")
	assert.Contains(t, out, "not attempted: 1")
	assert.Contains(t, out, "lost-in-transit")
	assert.Contains(t, out, "destination rejected")
}
