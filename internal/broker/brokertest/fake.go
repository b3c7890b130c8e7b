// Package brokertest provides an in-memory broker session for tests. It
// evaluates selectors for real (via selector.Matches) and supports per-call
// failure injection so partial-failure accounting can be exercised.
package brokertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/models"
	"github.com/queueops/jmsqctl/internal/selector"
)

type queue struct {
	hasListener   bool
	consumerCount int
	received      int64
	messages      []models.MessageDescriptor
}

// Fake is an in-memory broker.Session. The zero value is not usable; call
// New.
type Fake struct {
	mu     sync.Mutex
	queues map[string]*queue
	// deleted message payload refs still reachable for EnqueueCopy,
	// mirroring the real session's move stash.
	tombstones map[string]models.MessageDescriptor

	// Failure injection hooks. A nil hook never fails.
	EnumerateErr error
	FetchErr     error
	DeleteErr    func(queueName, messageID string) error
	EnqueueErr   func(dest string, ref broker.PayloadRef) error
	QueueErr     func(name string) error

	// Call counters, guarded by mu.
	FetchCalls   int
	DeleteCalls  int
	EnqueueCalls int
}

var _ broker.Session = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		queues:     make(map[string]*queue),
		tombstones: make(map[string]models.MessageDescriptor),
	}
}

// AddQueue registers a queue. consumerCount > 0 implies a listener.
func (f *Fake) AddQueue(name string, consumerCount int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[name] = &queue{
		hasListener:   consumerCount > 0,
		consumerCount: consumerCount,
	}
}

// AddMessage appends a message to a queue and returns its id.
func (f *Fake) AddMessage(queueName string, m models.MessageDescriptor) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[queueName]
	if !ok {
		q = &queue{}
		f.queues[queueName] = q
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	q.messages = append(q.messages, m)
	q.received++
	return m.ID
}

// Messages returns a copy of a queue's current messages, in queue order.
func (f *Fake) Messages(queueName string) []models.MessageDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[queueName]
	if !ok {
		return nil
	}
	out := make([]models.MessageDescriptor, len(q.messages))
	copy(out, q.messages)
	return out
}

// HasQueue reports whether the queue still exists.
func (f *Fake) HasQueue(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.queues[name]
	return ok
}

func (f *Fake) EnumerateQueues(ctx context.Context) ([]models.QueueDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnumerateErr != nil {
		return nil, f.EnumerateErr
	}
	var out []models.QueueDescriptor
	for name, q := range f.queues {
		out = append(out, models.QueueDescriptor{
			Name:          name,
			HasListener:   q.hasListener,
			CurrentCount:  int64(len(q.messages)),
			ConsumerCount: q.consumerCount,
		})
	}
	return out, nil
}

func (f *Fake) FetchMessageMetadata(ctx context.Context, queueName string, sel selector.Selector, limit int, order broker.Order) ([]models.MessageDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	q, ok := f.queues[queueName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", broker.ErrQueueNotFound, queueName)
	}

	msgs := q.messages
	if order == broker.NewestFirst {
		msgs = make([]models.MessageDescriptor, len(q.messages))
		for i, m := range q.messages {
			msgs[len(q.messages)-1-i] = m
		}
	}

	var out []models.MessageDescriptor
	for _, m := range msgs {
		if !sel.Matches(broker.MessageProperties(m)) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) DeleteMessage(ctx context.Context, queueName, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		if err := f.DeleteErr(queueName, messageID); err != nil {
			return err
		}
	}
	q, ok := f.queues[queueName]
	if !ok {
		return fmt.Errorf("%w: %s", broker.ErrQueueNotFound, queueName)
	}
	for i, m := range q.messages {
		if m.ID == messageID {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			f.tombstones[queueName+"/"+messageID] = m
			return nil
		}
	}
	return fmt.Errorf("%w: %s", broker.ErrMessageNotFound, messageID)
}

func (f *Fake) EnqueueCopy(ctx context.Context, dest string, ref broker.PayloadRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EnqueueCalls++
	if f.EnqueueErr != nil {
		if err := f.EnqueueErr(dest, ref); err != nil {
			return err
		}
	}
	dq, ok := f.queues[dest]
	if !ok {
		return fmt.Errorf("%w: %s", broker.ErrQueueNotFound, dest)
	}

	src, ok := f.lookupRef(ref)
	if !ok {
		return fmt.Errorf("%w: %s", broker.ErrMessageNotFound, ref.MessageID)
	}
	cp := src
	cp.ID = uuid.NewString()
	dq.messages = append(dq.messages, cp)
	dq.received++
	return nil
}

func (f *Fake) lookupRef(ref broker.PayloadRef) (models.MessageDescriptor, bool) {
	if q, ok := f.queues[ref.Queue]; ok {
		for _, m := range q.messages {
			if m.ID == ref.MessageID {
				return m, true
			}
		}
	}
	m, ok := f.tombstones[ref.Queue+"/"+ref.MessageID]
	return m, ok
}

func (f *Fake) DeleteQueue(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.QueueErr != nil {
		if err := f.QueueErr(name); err != nil {
			return err
		}
	}
	if _, ok := f.queues[name]; !ok {
		return fmt.Errorf("%w: %s", broker.ErrQueueNotFound, name)
	}
	delete(f.queues, name)
	return nil
}

func (f *Fake) ReceivedCount(ctx context.Context, queueName string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[queueName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", broker.ErrQueueNotFound, queueName)
	}
	return q.received, nil
}
