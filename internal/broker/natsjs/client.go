// Package natsjs implements the broker session contract on top of NATS
// JetStream. A queue maps to a stream; the message id is the stream
// sequence; the queue's listener flag is derived from its consumer count.
package natsjs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/queueops/jmsqctl/internal/config"
)

// Session wraps a NATS connection and JetStream context for one environment.
type Session struct {
	conn *nats.Conn
	js   nats.JetStreamContext

	// health overrides the connection check when set (tests stub it; Dial
	// leaves it nil so connErr consults the real connection).
	health func() error

	// Recently deleted payloads, kept so a move can re-enqueue a message
	// after it was deleted from the source queue.
	mu    sync.Mutex
	stash map[string]*nats.Msg
	order []string
}

const stashLimit = 4096

// Dial connects to the environment and enables JetStream.
func Dial(env *config.Environment) (*Session, error) {
	opts := []nats.Option{
		nats.Timeout(10 * time.Second),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2 * time.Second),
	}
	if env.Username != "" {
		opts = append(opts, nats.UserInfo(env.Username, env.Password))
	}
	if env.Token != "" {
		opts = append(opts, nats.Token(env.Token))
	}
	if env.Creds != "" {
		opts = append(opts, nats.UserCredentials(env.Creds))
	}

	nc, err := nats.Connect(env.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", env.URL, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("enable JetStream: %w", err)
	}

	return &Session{
		conn:  nc,
		js:    js,
		stash: make(map[string]*nats.Msg),
	}, nil
}

// Close closes the underlying connection.
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// Ping flushes the connection to verify it is alive.
func (s *Session) Ping(ctx context.Context) error {
	if s.conn == nil || !s.conn.IsConnected() {
		return fmt.Errorf("not connected")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.conn.FlushTimeout(2 * time.Second)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Server returns the address of the connected server.
func (s *Session) Server() string {
	if s.conn != nil {
		return s.conn.ConnectedUrl()
	}
	return ""
}

// connErr reports a broken connection; nil while healthy.
func (s *Session) connErr() error {
	if s.health != nil {
		return s.health()
	}
	if s.conn == nil {
		return nil
	}
	if !s.conn.IsConnected() {
		if err := s.conn.LastError(); err != nil {
			return err
		}
		return nats.ErrConnectionClosed
	}
	return nil
}

func (s *Session) stashPut(key string, msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stash[key]; !ok {
		s.order = append(s.order, key)
	}
	s.stash[key] = msg
	for len(s.order) > stashLimit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.stash, oldest)
	}
}

func (s *Session) stashGet(key string) (*nats.Msg, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.stash[key]
	return msg, ok
}
