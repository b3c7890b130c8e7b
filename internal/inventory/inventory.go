// Package inventory enumerates queues and classifies them for the operator
// commands.
package inventory

import (
	"context"
	"sort"
	"strings"

	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/models"
)

// Class selects which queues List returns.
type Class string

const (
	// All returns every queue.
	All Class = "all"
	// NoListener returns queues without an active consumer, excluding
	// dead-message queues.
	NoListener Class = "no-listener"
	// WithMessages returns queues holding at least one message.
	WithMessages Class = "with-messages"
	// DMQWithMessages returns dead-message queues holding at least one
	// message.
	DMQWithMessages Class = "dmq-with-messages"
)

// Classes lists the accepted class names, for flag help and validation.
func Classes() []string {
	return []string{string(All), string(NoListener), string(WithMessages), string(DMQWithMessages)}
}

// ParseClass validates a class name from the command line.
func ParseClass(s string) (Class, bool) {
	switch Class(strings.ToLower(strings.TrimSpace(s))) {
	case All:
		return All, true
	case NoListener:
		return NoListener, true
	case WithMessages:
		return WithMessages, true
	case DMQWithMessages:
		return DMQWithMessages, true
	}
	return "", false
}

// List enumerates queues and keeps those matching class. Dead-message queues
// are recognized by dmqSuffix (case-insensitive). Results are sorted by name.
func List(ctx context.Context, s broker.Session, class Class, dmqSuffix string) ([]models.QueueDescriptor, error) {
	queues, err := s.EnumerateQueues(ctx)
	if err != nil {
		return nil, &broker.QueryError{Op: "enumerate queues", Cause: err}
	}

	out := queues[:0]
	for _, q := range queues {
		if keep(q, class, dmqSuffix) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func keep(q models.QueueDescriptor, class Class, dmqSuffix string) bool {
	isDMQ := dmqSuffix != "" && strings.HasSuffix(strings.ToLower(q.Name), strings.ToLower(dmqSuffix))
	switch class {
	case NoListener:
		return !q.HasListener && !isDMQ
	case WithMessages:
		return q.CurrentCount > 0
	case DMQWithMessages:
		return isDMQ && q.CurrentCount > 0
	default:
		return true
	}
}
