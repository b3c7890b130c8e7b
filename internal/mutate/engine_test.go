package mutate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/broker/brokertest"
	"github.com/queueops/jmsqctl/internal/models"
	"github.com/queueops/jmsqctl/internal/selector"
)

func newFake(t *testing.T, queueName string, n int) (*brokertest.Fake, []string) {
	t.Helper()
	f := brokertest.New()
	f.AddQueue(queueName, 0)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = f.AddMessage(queueName, models.MessageDescriptor{
			Type:    "order",
			Headers: map[string]string{"seq": fmt.Sprint(i)},
		})
	}
	return f, ids
}

// serial keeps attempt order deterministic for accounting assertions.
var serial = Options{MaxConcurrent: 1, RetryBackoff: time.Millisecond}

func checkClosed(t *testing.T, out *models.MutationOutcome) {
	t.Helper()
	assert.Equal(t, out.Requested, out.Succeeded+out.Failed+out.NotAttempted,
		"outcome accounting must close")
	assert.Len(t, out.Failures, out.Failed)
}

func TestDeleteMessagesAll(t *testing.T) {
	f, _ := newFake(t, "orders", 5)
	eng := New(f, serial, nil, nil)

	out, err := eng.DeleteMessages(context.Background(), "orders", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 5, out.Requested)
	assert.Equal(t, 5, out.Succeeded)
	assert.Empty(t, f.Messages("orders"))
}

func TestDeleteMessagesSelective(t *testing.T) {
	f := brokertest.New()
	f.AddQueue("orders", 0)
	f.AddMessage("orders", models.MessageDescriptor{Headers: map[string]string{"region": "eu"}})
	f.AddMessage("orders", models.MessageDescriptor{Headers: map[string]string{"region": "us"}})
	f.AddMessage("orders", models.MessageDescriptor{Headers: map[string]string{"region": "eu"}})

	sel, err := selector.Compile("region = 'eu'")
	require.NoError(t, err)

	eng := New(f, serial, nil, nil)
	out, err := eng.DeleteMessages(context.Background(), "orders", sel, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 2, out.Succeeded)

	left := f.Messages("orders")
	require.Len(t, left, 1)
	assert.Equal(t, "us", left[0].Headers["region"])
}

func TestDeleteMessagesPartialFailure(t *testing.T) {
	f, ids := newFake(t, "orders", 5)
	bad := ids[2]
	f.DeleteErr = func(_, id string) error {
		if id == bad {
			return errors.New("storage refused")
		}
		return nil
	}

	eng := New(f, serial, nil, nil)
	out, err := eng.DeleteMessages(context.Background(), "orders", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 5, out.Requested)
	assert.Equal(t, 4, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, bad, out.Failures[0].MessageID)
	assert.Equal(t, models.FailureDelete, out.Failures[0].Kind)
	assert.Equal(t, "storage refused", out.Failures[0].Reason)

	// The failed message stays in place.
	left := f.Messages("orders")
	require.Len(t, left, 1)
	assert.Equal(t, bad, left[0].ID)
}

func TestDeleteMessagesLimit(t *testing.T) {
	f, _ := newFake(t, "orders", 5)
	eng := New(f, serial, nil, nil)

	out, err := eng.DeleteMessages(context.Background(), "orders", selector.MatchAll, 3)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 3, out.Requested)
	assert.Equal(t, 3, out.Succeeded)
	assert.Len(t, f.Messages("orders"), 2)
}

func TestDeleteMessagesEmptyMatch(t *testing.T) {
	f := brokertest.New()
	f.AddQueue("orders", 0)

	eng := New(f, serial, nil, nil)
	out, err := eng.DeleteMessages(context.Background(), "orders", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 0, out.Requested)
	assert.Equal(t, 0, f.DeleteCalls, "no mutation primitives on an empty match")
	assert.Equal(t, 0, f.EnqueueCalls)
}

func TestDeleteMessagesInterleavedBatches(t *testing.T) {
	f, _ := newFake(t, "orders", 7)
	opts := serial
	opts.BatchSize = 2

	eng := New(f, opts, nil, nil)
	out, err := eng.DeleteMessages(context.Background(), "orders", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 7, out.Succeeded)
	assert.Greater(t, f.FetchCalls, 1)
}

func TestDeleteMessagesRetryOnTransient(t *testing.T) {
	f, _ := newFake(t, "orders", 1)
	var calls atomic.Int32
	f.DeleteErr = func(_, _ string) error {
		if calls.Add(1) == 1 {
			return fmt.Errorf("flaky: %w", broker.ErrUnavailable)
		}
		return nil
	}

	opts := serial
	opts.RetryOnTransient = true
	eng := New(f, opts, nil, nil)
	out, err := eng.DeleteMessages(context.Background(), "orders", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 1, out.Succeeded)
	assert.EqualValues(t, 2, calls.Load())
}

func TestDeleteMessagesNoRetryUnlessEnabled(t *testing.T) {
	f, _ := newFake(t, "orders", 1)
	var calls atomic.Int32
	f.DeleteErr = func(_, _ string) error {
		calls.Add(1)
		return fmt.Errorf("flaky: %w", broker.ErrUnavailable)
	}

	// serial leaves RetryOnTransient at its zero value, which disables retry.
	eng := New(f, serial, nil, nil)
	out, err := eng.DeleteMessages(context.Background(), "orders", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 1, out.Failed)
	assert.EqualValues(t, 1, calls.Load(), "retry must be opted into")
}

func TestDeleteMessagesBreakerStopsRun(t *testing.T) {
	f, _ := newFake(t, "orders", 10)
	f.DeleteErr = func(_, _ string) error {
		return fmt.Errorf("broker down: %w", broker.ErrUnavailable)
	}

	opts := serial
	opts.BreakerThreshold = 2
	eng := New(f, opts, nil, nil)
	out, err := eng.DeleteMessages(context.Background(), "orders", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 10, out.Requested)
	assert.Equal(t, 0, out.Succeeded)
	assert.Equal(t, 2, out.Failed)
	assert.Equal(t, 8, out.NotAttempted)
}

func TestDeleteMessagesCancellation(t *testing.T) {
	f, _ := newFake(t, "orders", 5)
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	f.DeleteErr = func(_, _ string) error {
		if calls.Add(1) == 2 {
			cancel()
		}
		return nil
	}

	eng := New(f, serial, nil, nil)
	out, err := eng.DeleteMessages(ctx, "orders", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 5, out.Requested)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 0, out.Failed)
	assert.Equal(t, 3, out.NotAttempted)
}

func TestMoveMessages(t *testing.T) {
	f, _ := newFake(t, "orders", 3)
	f.AddQueue("orders_archive", 0)

	eng := New(f, serial, nil, nil)
	out, err := eng.MoveMessages(context.Background(), "orders", "orders_archive", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 3, out.Succeeded)
	assert.Empty(t, f.Messages("orders"))
	assert.Len(t, f.Messages("orders_archive"), 3)
}

func TestMoveMessagesLostInTransit(t *testing.T) {
	f, _ := newFake(t, "orders", 3)
	f.AddQueue("orders_archive", 0)
	var calls atomic.Int32
	f.EnqueueErr = func(_ string, _ broker.PayloadRef) error {
		if calls.Add(1) == 2 {
			return errors.New("destination rejected message")
		}
		return nil
	}

	eng := New(f, serial, nil, nil)
	out, err := eng.MoveMessages(context.Background(), "orders", "orders_archive", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 3, out.Requested)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 1, out.Lost())
	require.Len(t, out.Failures, 1)
	assert.Equal(t, models.FailureLostInTransit, out.Failures[0].Kind)

	// The lost message is gone from the source and absent from the
	// destination.
	assert.Empty(t, f.Messages("orders"))
	assert.Len(t, f.Messages("orders_archive"), 2)
}

func TestMoveMessagesDeleteFailureIsNotLost(t *testing.T) {
	f, ids := newFake(t, "orders", 2)
	f.AddQueue("orders_archive", 0)
	bad := ids[0]
	f.DeleteErr = func(_, id string) error {
		if id == bad {
			return errors.New("locked")
		}
		return nil
	}

	eng := New(f, serial, nil, nil)
	out, err := eng.MoveMessages(context.Background(), "orders", "orders_archive", selector.MatchAll, 0)
	require.NoError(t, err)
	checkClosed(t, out)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 0, out.Lost())
	assert.Equal(t, models.FailureDelete, out.Failures[0].Kind)

	// The message whose source delete failed was never enqueued.
	assert.Len(t, f.Messages("orders_archive"), 1)
	assert.Len(t, f.Messages("orders"), 1)
}

func TestDeleteQueuesIndependence(t *testing.T) {
	f := brokertest.New()
	f.AddQueue("q1", 0)
	f.AddQueue("q3", 0)

	eng := New(f, serial, nil, nil)
	results := eng.DeleteQueues(context.Background(), []string{"q1", "q2", "q3"})
	require.Len(t, results, 3)
	assert.NoError(t, results["q1"])
	assert.ErrorIs(t, results["q2"], broker.ErrQueueNotFound)
	assert.NoError(t, results["q3"])
	assert.False(t, f.HasQueue("q1"))
	assert.False(t, f.HasQueue("q3"))
}

func TestDeleteQueuesConcurrent(t *testing.T) {
	f := brokertest.New()
	names := make([]string, 8)
	for i := range names {
		names[i] = fmt.Sprintf("q%d", i)
		f.AddQueue(names[i], 0)
	}

	eng := New(f, Options{MaxConcurrent: 4}, nil, nil)
	results := eng.DeleteQueues(context.Background(), names)
	for _, name := range names {
		assert.NoError(t, results[name])
		assert.False(t, f.HasQueue(name))
	}
}
