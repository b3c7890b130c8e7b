// Package broker defines the narrow administrative contract the rest of the
// tool uses to talk to a message broker. Connection lifecycle, selector
// evaluation and message transport all live behind this interface; the
// engines on top only assume the per-call semantics documented here.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/queueops/jmsqctl/internal/models"
	"github.com/queueops/jmsqctl/internal/selector"
)

// Order controls which end of the queue FetchMessageMetadata reads from.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// PayloadRef identifies a message payload for EnqueueCopy. The referenced
// message may already have been deleted from the source queue; session
// implementations keep recently deleted payloads reachable long enough for a
// move to re-enqueue them.
type PayloadRef struct {
	Queue     string
	MessageID string
}

// Session is an authenticated handle to one broker environment. It is safe
// for concurrent use by the mutation engine's workers, but no cross-call
// atomicity is assumed: all accounting invariants are engine-side.
type Session interface {
	// EnumerateQueues returns a descriptor for every queue visible in the
	// environment. It either succeeds completely or fails; partial lists are
	// never returned as success.
	EnumerateQueues(ctx context.Context) ([]models.QueueDescriptor, error)

	// FetchMessageMetadata returns metadata for up to limit messages matching
	// sel, in the given order. limit <= 0 means no limit. Payloads are not
	// retrieved.
	FetchMessageMetadata(ctx context.Context, queue string, sel selector.Selector, limit int, order Order) ([]models.MessageDescriptor, error)

	// DeleteMessage removes a single message by id.
	DeleteMessage(ctx context.Context, queue, messageID string) error

	// EnqueueCopy appends a copy of the referenced payload to dest.
	EnqueueCopy(ctx context.Context, dest string, ref PayloadRef) error

	// DeleteQueue removes the queue itself.
	DeleteQueue(ctx context.Context, name string) error

	// ReceivedCount returns the queue's monotonic messages-received counter.
	ReceivedCount(ctx context.Context, queue string) (int64, error)
}

// Sentinel errors session implementations wrap so callers can classify
// failures without knowing the broker.
var (
	ErrQueueNotFound   = errors.New("queue not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUnavailable     = errors.New("broker unavailable")
)

// IsTransient reports whether err is a connectivity-class error worth
// retrying. Semantic rejections (unknown queue, unknown message) are never
// transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// QueryError wraps a failed read-only broker query.
type QueryError struct {
	Op    string
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}
