package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mehdi856/Chat-Project/logger"
	"github.com/Mehdi856/Chat-Project/service/metrics"
	"github.com/Mehdi856/Chat-Project/tools/safe"
)

// Session states. The machine only moves forward:
// AwaitingAuth -> Authenticated -> Closed. A new connection always restarts
// at AwaitingAuth; there is no reconnect-within-session.
type State int32

const (
	StateAwaitingAuth State = iota
	StateAuthenticated
	StateClosed
)

const presenceTimeout = 2 * time.Second

// Session drives the per-connection protocol: one handshake frame carrying a
// bearer credential, then a strictly ordered receive loop, then teardown.
// Each session runs on its own goroutine; the registry is the only state it
// shares with other sessions.
type Session struct {
	srv  *Server
	conn Conn

	identity  string
	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(srv *Server, conn Conn) *Session {
	s := &Session{
		srv:  srv,
		conn: conn,
		done: make(chan struct{}),
	}
	s.state.Store(int32(StateAwaitingAuth))
	return s
}

func (s *Session) Identity() string { return s.identity }
func (s *Session) State() State     { return State(s.state.Load()) }

// Run blocks until the session reaches Closed. Cancelling ctx closes the
// transport, which unblocks the pending Receive and drives teardown.
func (s *Session) Run(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.shutdown(CloseGoingAway)
		case <-s.done:
		}
	}()

	if !s.handshake() {
		return
	}
	s.loop()
	s.shutdown(CloseNormal)
}

// handshake consumes exactly one frame, which must be an auth hello with a
// verifiable credential. Anything else closes the connection before it ever
// reaches the registry: 4400 for a protocol error, 4401 for a bad credential.
func (s *Session) handshake() bool {
	rd, boundable := s.conn.(readDeadliner)
	if boundable {
		_ = rd.SetReadDeadline(time.Now().Add(s.srv.handshakeTimeout))
	}

	raw, err := s.conn.Receive()
	if err != nil {
		s.shutdown(CloseProtocolError)
		return false
	}
	f, err := DecodeFrame(raw)
	if err != nil {
		logger.Warnf("[session] malformed handshake: %v", err)
		s.shutdown(CloseProtocolError)
		return false
	}
	hello, ok := f.(*AuthFrame)
	if !ok {
		logger.Warnf("[session] first frame is %q, not auth", f.Kind())
		s.shutdown(CloseProtocolError)
		return false
	}

	identity, err := s.srv.auth.VerifyCredential(hello.Token)
	if err != nil || identity == "" {
		logger.Warnf("[session] credential rejected: %v", err)
		s.shutdown(CloseUnauthorized)
		return false
	}

	if boundable {
		_ = rd.SetReadDeadline(time.Time{})
	}

	s.identity = identity
	s.srv.reg.Connect(identity, s.conn)
	// The session may have been shut down while the credential check was in
	// flight. Closed is terminal: teardown saw AwaitingAuth and armed no
	// eviction, so undo the registration and abort instead of resuming.
	if !s.state.CompareAndSwap(int32(StateAwaitingAuth), int32(StateAuthenticated)) {
		s.srv.reg.Disconnect(identity, s.conn)
		return false
	}
	metrics.ConnectionsOnline.Inc()
	s.markOnline(identity)

	logger.Infof("[session] authenticated user=%s", identity)
	return true
}

// loop processes inbound envelopes strictly in arrival order. A malformed
// envelope is dropped and logged; only a transport error ends the loop.
func (s *Session) loop() {
	for {
		raw, err := s.conn.Receive()
		if err != nil {
			logger.Debugf("[session] read ended user=%s err=%v", s.identity, err)
			return
		}
		f, derr := DecodeFrame(raw)
		if derr != nil {
			sample := raw
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[session] drop malformed envelope user=%s err=%v sample=%q", s.identity, derr, sample)
			continue
		}
		switch f.Kind() {
		case KindUnknown:
			continue
		case KindAuth:
			// the handshake frame is never treated as a chat message
			continue
		}
		if err := s.srv.disp.Dispatch(s, f); err != nil {
			logger.Warnf("[session] handler error user=%s type=%q err=%v", s.identity, f.Kind(), err)
		}
	}
}

// shutdown is the single entry into Closed. Safe to invoke from multiple
// triggers (read error, explicit close, context cancellation); only the first
// wins. An authenticated session evicts itself from the registry here; the
// only other eviction path is a failed push inside the router.
func (s *Session) shutdown(code int) {
	s.closeOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		_ = s.conn.Close(code)
		close(s.done)

		if prev != StateAuthenticated {
			return
		}
		s.srv.reg.Disconnect(s.identity, s.conn)
		metrics.ConnectionsOnline.Dec()
		if !s.srv.reg.IsOnline(s.identity) {
			s.markOffline(s.identity)
		}
		logger.Infof("[session] closed user=%s code=%d", s.identity, code)
	})
}

func (s *Session) markOnline(identity string) {
	if s.srv.presence == nil {
		return
	}
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := s.srv.presence.Online(ctx, identity); err != nil {
			logger.Warnf("[presence] online failed user=%s err=%v", identity, err)
		}
	})
}

func (s *Session) markOffline(identity string) {
	if s.srv.presence == nil {
		return
	}
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := s.srv.presence.Offline(ctx, identity); err != nil {
			logger.Warnf("[presence] offline failed user=%s err=%v", identity, err)
		}
	})
}
