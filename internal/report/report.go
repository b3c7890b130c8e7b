// Package report builds per-queue diagnostic reports and renders them, along
// with queue inventories, as aligned text tables.
package report

import (
	"context"
	"fmt"

	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/models"
	"github.com/queueops/jmsqctl/internal/selector"
)

// Build assembles a diagnostic report for one queue. The snapshots are reads
// against a live broker, so the counts and the first/last messages may not
// agree with each other by the time the report is printed.
func Build(ctx context.Context, s broker.Session, queueName string) (*models.QueueReport, error) {
	queues, err := s.EnumerateQueues(ctx)
	if err != nil {
		return nil, &broker.QueryError{Op: "enumerate queues", Cause: err}
	}
	var desc *models.QueueDescriptor
	for i := range queues {
		if queues[i].Name == queueName {
			desc = &queues[i]
			break
		}
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: %s", broker.ErrQueueNotFound, queueName)
	}

	received, err := s.ReceivedCount(ctx, queueName)
	if err != nil {
		return nil, &broker.QueryError{Op: "read received count for " + queueName, Cause: err}
	}

	rep := &models.QueueReport{
		Queue:         *desc,
		ReceivedCount: received,
	}
	if desc.CurrentCount == 0 {
		return rep, nil
	}

	oldest, err := s.FetchMessageMetadata(ctx, queueName, selector.MatchAll, 1, broker.OldestFirst)
	if err != nil {
		return nil, &broker.QueryError{Op: "read first message of " + queueName, Cause: err}
	}
	if len(oldest) > 0 {
		rep.First = &oldest[0]
	}

	newest, err := s.FetchMessageMetadata(ctx, queueName, selector.MatchAll, 1, broker.NewestFirst)
	if err != nil {
		return nil, &broker.QueryError{Op: "read last message of " + queueName, Cause: err}
	}
	if len(newest) > 0 {
		rep.Last = &newest[0]
	}
	return rep, nil
}
