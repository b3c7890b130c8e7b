package natsjs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/models"
	"github.com/queueops/jmsqctl/internal/selector"
)

var _ broker.Session = (*Session)(nil)

// EnumerateQueues lists every stream as a queue descriptor. The StreamsInfo
// channel closes without surfacing mid-iteration errors, so the connection is
// checked afterwards: a drop during enumeration fails the whole call rather
// than returning a shortened list.
func (s *Session) EnumerateQueues(ctx context.Context) ([]models.QueueDescriptor, error) {
	var queues []models.QueueDescriptor
	for info := range s.js.StreamsInfo(nats.Context(ctx)) {
		queues = append(queues, models.QueueDescriptor{
			Name:          info.Config.Name,
			HasListener:   info.State.Consumers > 0,
			CurrentCount:  int64(info.State.Msgs),
			ConsumerCount: info.State.Consumers,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.connErr(); err != nil {
		return nil, fmt.Errorf("%w: enumeration interrupted: %v", broker.ErrUnavailable, err)
	}
	return queues, nil
}

// FetchMessageMetadata walks the stream's sequence range and returns
// metadata for messages matching sel. Payloads are fetched from the server
// (JetStream has no metadata-only read) but never leave this package.
func (s *Session) FetchMessageMetadata(ctx context.Context, queue string, sel selector.Selector, limit int, order broker.Order) ([]models.MessageDescriptor, error) {
	info, err := s.js.StreamInfo(queue, nats.Context(ctx))
	if err != nil {
		return nil, wrapErr(err)
	}
	if info.State.Msgs == 0 {
		return nil, nil
	}

	first := info.State.FirstSeq
	last := info.State.LastSeq
	live := info.State.Msgs

	var out []models.MessageDescriptor
	var visited uint64

	// Deleted sequences leave gaps in first..last; they are skipped, never
	// counted as an end of stream. The walk stops once every live message
	// has been visited, so gaps of any width cannot truncate the result.
	visit := func(seq uint64) (stop bool, err error) {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		msg, err := s.js.GetMsg(queue, seq)
		if errors.Is(err, nats.ErrMsgNotFound) {
			return false, nil
		}
		if err != nil {
			return true, wrapErr(err)
		}
		visited++

		desc := descriptorFromMsg(msg)
		if !sel.IsMatchAll() && !sel.Matches(broker.MessageProperties(desc)) {
			return visited >= live, nil
		}
		out = append(out, desc)
		if limit > 0 && len(out) >= limit {
			return true, nil
		}
		return visited >= live, nil
	}

	if order == broker.NewestFirst {
		for seq := last; seq >= first; seq-- {
			stop, err := visit(seq)
			if err != nil {
				return nil, err
			}
			if stop || seq == first {
				break
			}
		}
	} else {
		for seq := first; seq <= last; seq++ {
			stop, err := visit(seq)
			if err != nil {
				return nil, err
			}
			if stop {
				break
			}
		}
	}
	return out, nil
}

// DeleteMessage removes one message by sequence. The payload is stashed
// first so a move can still enqueue a copy after the delete.
func (s *Session) DeleteMessage(ctx context.Context, queue, messageID string) error {
	seq, err := parseID(messageID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if msg, err := s.js.GetMsg(queue, seq); err == nil {
		s.stashPut(queue+"/"+messageID, &nats.Msg{
			Subject: msg.Subject,
			Header:  msg.Header,
			Data:    msg.Data,
		})
	}
	if err := s.js.DeleteMsg(queue, seq); err != nil {
		return wrapErr(err)
	}
	return nil
}

// EnqueueCopy publishes a copy of the referenced payload to the destination
// queue's first bound subject.
func (s *Session) EnqueueCopy(ctx context.Context, dest string, ref broker.PayloadRef) error {
	var src *nats.Msg
	if stashed, ok := s.stashGet(ref.Queue + "/" + ref.MessageID); ok {
		src = stashed
	} else {
		seq, err := parseID(ref.MessageID)
		if err != nil {
			return err
		}
		raw, err := s.js.GetMsg(ref.Queue, seq)
		if err != nil {
			return wrapErr(err)
		}
		src = &nats.Msg{Subject: raw.Subject, Header: raw.Header, Data: raw.Data}
	}

	info, err := s.js.StreamInfo(dest, nats.Context(ctx))
	if err != nil {
		return wrapErr(err)
	}
	if len(info.Config.Subjects) == 0 {
		return fmt.Errorf("queue %q has no bound subject", dest)
	}

	out := &nats.Msg{
		Subject: info.Config.Subjects[0],
		Header:  src.Header,
		Data:    src.Data,
	}
	if _, err := s.js.PublishMsg(out, nats.Context(ctx)); err != nil {
		return wrapErr(err)
	}
	return nil
}

// DeleteQueue removes the stream itself.
func (s *Session) DeleteQueue(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.js.DeleteStream(name); err != nil {
		return wrapErr(err)
	}
	return nil
}

// ReceivedCount returns how many messages the queue has ever received. For
// a stream that is its last sequence number.
func (s *Session) ReceivedCount(ctx context.Context, queue string) (int64, error) {
	info, err := s.js.StreamInfo(queue, nats.Context(ctx))
	if err != nil {
		return 0, wrapErr(err)
	}
	return int64(info.State.LastSeq), nil
}

func descriptorFromMsg(msg *nats.RawStreamMsg) models.MessageDescriptor {
	headers := make(map[string]string, len(msg.Header))
	for k, vs := range msg.Header {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}
	deliveryCount := 1
	if v, ok := headers["JMSXDeliveryCount"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			deliveryCount = n
		}
	}
	return models.MessageDescriptor{
		ID:            strconv.FormatUint(msg.Sequence, 10),
		Size:          int64(len(msg.Data)),
		Timestamp:     msg.Time,
		DeliveryCount: deliveryCount,
		Type:          headers["JMSType"],
		Headers:       headers,
	}
}

func parseID(id string) (uint64, error) {
	seq, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad message id %q", broker.ErrMessageNotFound, id)
	}
	return seq, nil
}

// wrapErr maps nats errors onto the broker sentinels so callers can
// classify without importing nats.
func wrapErr(err error) error {
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		return fmt.Errorf("%w: %v", broker.ErrQueueNotFound, err)
	case errors.Is(err, nats.ErrMsgNotFound):
		return fmt.Errorf("%w: %v", broker.ErrMessageNotFound, err)
	case errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected):
		return fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
	default:
		if err != nil && strings.Contains(err.Error(), "connection") {
			return fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
		}
		return err
	}
}
