package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// fakeConn is a scripted transport for registry/router/session tests.
type fakeConn struct {
	name string

	mu      sync.Mutex
	pushed  []Frame
	pushErr error

	closed    bool
	closeCode int

	recvCh    chan []byte
	closeOnce sync.Once
	closedCh  chan struct{}
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{
		name:     name,
		recvCh:   make(chan []byte, 16),
		closedCh: make(chan struct{}),
	}
}

func (c *fakeConn) Receive() ([]byte, error) {
	select {
	case data, ok := <-c.recvCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-c.closedCh:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Push(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pushErr != nil {
		return c.pushErr
	}
	c.pushed = append(c.pushed, f)
	return nil
}

func (c *fakeConn) Close(code int) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.closeCode = code
		c.mu.Unlock()
		close(c.closedCh)
	})
	return nil
}

func (c *fakeConn) failPushes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushErr = errors.New("broken pipe")
}

func (c *fakeConn) frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.pushed))
	copy(out, c.pushed)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) lastCloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// script enqueues one inbound payload.
func (c *fakeConn) script(payload string) {
	c.recvCh <- []byte(payload)
}

func (c *fakeConn) endInput() {
	close(c.recvCh)
}

// fakeVerifier maps tokens to identities.
type fakeVerifier struct {
	tokens map[string]string
}

func (v *fakeVerifier) VerifyCredential(token string) (string, error) {
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid credential")
}

// fakeStore records appended messages in arrival order.
type fakeStore struct {
	mu   sync.Mutex
	recs []*MessageRecord
}

func (s *fakeStore) Append(_ context.Context, rec *MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

// fakeGroups returns a fixed member list per group id.
type fakeGroups struct {
	members map[string][]string
}

func (g *fakeGroups) Members(_ context.Context, groupID string) ([]string, error) {
	m, ok := g.members[groupID]
	if !ok {
		return nil, errors.New("group not found")
	}
	return m, nil
}

func newTestServer(opts Options) *Server {
	if opts.Auth == nil {
		opts.Auth = &fakeVerifier{tokens: map[string]string{}}
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = time.Second
	}
	return NewServer(opts)
}

func waitFor(cond func() bool, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
