package natsjs

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/selector"
)

// stubJS fakes the few JetStream calls the session makes. The embedded
// interface panics on anything else, which is what we want in a test.
type stubJS struct {
	nats.JetStreamContext

	state   nats.StreamState
	deleted map[uint64]bool
	getErr  error
	streams []*nats.StreamInfo
}

func (s *stubJS) StreamInfo(name string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	return &nats.StreamInfo{
		Config: nats.StreamConfig{Name: name},
		State:  s.state,
	}, nil
}

func (s *stubJS) GetMsg(name string, seq uint64, _ ...nats.JSOpt) (*nats.RawStreamMsg, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.deleted[seq] {
		return nil, nats.ErrMsgNotFound
	}
	return &nats.RawStreamMsg{
		Subject:  "q." + name,
		Sequence: seq,
		Data:     []byte("payload"),
		Time:     time.Now(),
	}, nil
}

func (s *stubJS) StreamsInfo(_ ...nats.JSOpt) <-chan *nats.StreamInfo {
	ch := make(chan *nats.StreamInfo, len(s.streams))
	for _, info := range s.streams {
		ch <- info
	}
	close(ch)
	return ch
}

// gappedStub builds a stream 1..30 where sequences 11..20 were deleted,
// the shape a selective delete leaves behind.
func gappedStub() *stubJS {
	deleted := make(map[uint64]bool)
	for seq := uint64(11); seq <= 20; seq++ {
		deleted[seq] = true
	}
	return &stubJS{
		state:   nats.StreamState{FirstSeq: 1, LastSeq: 30, Msgs: 20},
		deleted: deleted,
	}
}

func TestFetchSkipsDeletedRange(t *testing.T) {
	s := &Session{js: gappedStub()}

	got, err := s.FetchMessageMetadata(context.Background(), "orders", selector.MatchAll, 0, broker.OldestFirst)
	require.NoError(t, err)
	require.Len(t, got, 20, "messages beyond the gap must still be returned")
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "10", got[9].ID)
	assert.Equal(t, "21", got[10].ID)
	assert.Equal(t, "30", got[19].ID)
}

func TestFetchSkipsDeletedRangeNewestFirst(t *testing.T) {
	s := &Session{js: gappedStub()}

	got, err := s.FetchMessageMetadata(context.Background(), "orders", selector.MatchAll, 0, broker.NewestFirst)
	require.NoError(t, err)
	require.Len(t, got, 20)
	assert.Equal(t, "30", got[0].ID)
	assert.Equal(t, "1", got[19].ID)
}

func TestFetchLimitSpansGap(t *testing.T) {
	s := &Session{js: gappedStub()}

	got, err := s.FetchMessageMetadata(context.Background(), "orders", selector.MatchAll, 15, broker.OldestFirst)
	require.NoError(t, err)
	require.Len(t, got, 15)
	assert.Equal(t, "25", got[14].ID)
}

func TestFetchFailsOnReadError(t *testing.T) {
	js := gappedStub()
	js.getErr = nats.ErrConnectionClosed
	s := &Session{js: js}

	_, err := s.FetchMessageMetadata(context.Background(), "orders", selector.MatchAll, 0, broker.OldestFirst)
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrUnavailable, "a read failure is not a deleted sequence")
}

func TestEnumerateFailsOnDroppedConnection(t *testing.T) {
	js := &stubJS{streams: []*nats.StreamInfo{
		{Config: nats.StreamConfig{Name: "orders"}},
		{Config: nats.StreamConfig{Name: "billing"}},
	}}

	s := &Session{js: js, health: func() error { return nats.ErrConnectionClosed }}
	_, err := s.EnumerateQueues(context.Background())
	require.Error(t, err, "a shortened enumeration must not be returned as success")
	assert.ErrorIs(t, err, broker.ErrUnavailable)

	s = &Session{js: js, health: func() error { return nil }}
	queues, err := s.EnumerateQueues(context.Background())
	require.NoError(t, err)
	assert.Len(t, queues, 2)
}
