package chat

import (
	"context"
	"testing"
	"time"
)

func runSession(s *Server, c *fakeConn) (*Session, chan struct{}) {
	sess := NewSession(s, c)
	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()
	return sess, done
}

func TestSessionHandshakeSuccess(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
	})
	c := newFakeConn("c1")
	sess, done := runSession(srv, c)

	c.script(`{"type":"auth","token":"tok-1"}`)
	if !waitFor(func() bool { return srv.Registry().IsOnline("u1") }, time.Second) {
		t.Fatal("u1 should be registered after handshake")
	}
	if sess.State() != StateAuthenticated {
		t.Fatalf("state = %v, want Authenticated", sess.State())
	}
	if sess.Identity() != "u1" {
		t.Fatalf("identity = %q, want u1", sess.Identity())
	}

	c.endInput()
	<-done
	if srv.Registry().IsOnline("u1") {
		t.Fatal("u1 must be evicted after session close")
	}
	if sess.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", sess.State())
	}
}

func TestSessionHandshakeBadToken(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
	})
	c := newFakeConn("c1")
	_, done := runSession(srv, c)

	c.script(`{"type":"auth","token":"stolen"}`)
	<-done

	if !c.isClosed() || c.lastCloseCode() != CloseUnauthorized {
		t.Fatalf("expected close code %d, got %d", CloseUnauthorized, c.lastCloseCode())
	}
	if got := len(srv.Registry().Identities()); got != 0 {
		t.Fatalf("rejected credential must never reach the registry, have %d identities", got)
	}
}

func TestSessionHandshakeMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{{{`,
		"missing token":   `{"type":"auth"}`,
		"not a handshake": `{"type":"message","receiver":"u2","text":"hi"}`,
		"unknown type":    `{"type":"bogus"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(Options{
				Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
			})
			c := newFakeConn("c1")
			_, done := runSession(srv, c)

			c.script(payload)
			<-done

			if !c.isClosed() || c.lastCloseCode() != CloseProtocolError {
				t.Fatalf("expected close code %d, got %d", CloseProtocolError, c.lastCloseCode())
			}
			if got := len(srv.Registry().Identities()); got != 0 {
				t.Fatalf("no registration may happen, have %d identities", got)
			}
		})
	}
}

// A malformed envelope mid-stream is dropped; the session keeps running.
func TestSessionMalformedEnvelopeDropped(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1", "tok-2": "u2"}},
	})
	recv := newFakeConn("u2-conn")
	srv.Registry().Connect("u2", recv)

	c := newFakeConn("c1")
	_, done := runSession(srv, c)
	c.script(`{"type":"auth","token":"tok-1"}`)

	c.script(`{"type":"message"}`)       // missing receiver: dropped
	c.script(`g@rbage`)                  // unparseable: dropped
	c.script(`{"type":"some_new_kind"}`) // unknown: ignored
	c.script(`{"type":"message","receiver":"u2","text":"still alive"}`)

	if !waitFor(func() bool { return len(recv.frames()) == 1 }, time.Second) {
		t.Fatalf("expected exactly 1 delivered frame, got %d", len(recv.frames()))
	}
	m, ok := recv.frames()[0].(*MessageFrame)
	if !ok || m.Text != "still alive" {
		t.Fatalf("unexpected delivered frame: %#v", recv.frames()[0])
	}

	c.endInput()
	<-done
}

// P6: envelopes from one connection are handled strictly in arrival order.
func TestSessionOrderingWithinConnection(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
	})
	recv := newFakeConn("u2-conn")
	srv.Registry().Connect("u2", recv)

	c := newFakeConn("c1")
	_, done := runSession(srv, c)
	c.script(`{"type":"auth","token":"tok-1"}`)

	c.script(`{"type":"typing","receiver":"u2"}`)
	c.script(`{"type":"message","receiver":"u2","text":"hi"}`)

	if !waitFor(func() bool { return len(recv.frames()) == 2 }, time.Second) {
		t.Fatalf("expected 2 frames, got %d", len(recv.frames()))
	}
	got := recv.frames()
	if got[0].Kind() != KindTyping || got[1].Kind() != KindMessage {
		t.Fatalf("order violated: %q then %q", got[0].Kind(), got[1].Kind())
	}

	c.endInput()
	<-done
}

// The sender identity on routed frames comes from the session, never from
// the client payload.
func TestSessionStampsSender(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
	})
	recv := newFakeConn("u2-conn")
	srv.Registry().Connect("u2", recv)

	c := newFakeConn("c1")
	_, done := runSession(srv, c)
	c.script(`{"type":"auth","token":"tok-1"}`)
	c.script(`{"type":"message","sender":"someone-else","receiver":"u2","text":"hi"}`)

	if !waitFor(func() bool { return len(recv.frames()) == 1 }, time.Second) {
		t.Fatal("frame not delivered")
	}
	m := recv.frames()[0].(*MessageFrame)
	if m.Sender != "u1" {
		t.Fatalf("sender = %q, want the authenticated identity", m.Sender)
	}

	c.endInput()
	<-done
}

// A second auth frame after the handshake is never treated as a chat message.
func TestSessionIgnoresAuthMidStream(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
	})
	recv := newFakeConn("u2-conn")
	srv.Registry().Connect("u2", recv)

	c := newFakeConn("c1")
	sess, done := runSession(srv, c)
	c.script(`{"type":"auth","token":"tok-1"}`)
	c.script(`{"type":"auth","token":"tok-1"}`)
	c.script(`{"type":"message","receiver":"u2","text":"after"}`)

	if !waitFor(func() bool { return len(recv.frames()) == 1 }, time.Second) {
		t.Fatalf("expected 1 frame, got %d", len(recv.frames()))
	}
	if sess.Identity() != "u1" {
		t.Fatalf("identity changed: %q", sess.Identity())
	}

	c.endInput()
	<-done
}

func TestSessionGroupFlow(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(Options{
		Auth:   &fakeVerifier{tokens: map[string]string{"tok-a": "A"}},
		Store:  store,
		Groups: &fakeGroups{members: map[string][]string{"g1": {"A", "B", "C"}}},
	})
	cb := newFakeConn("b")
	cc := newFakeConn("c")
	srv.Registry().Connect("B", cb)
	srv.Registry().Connect("C", cc)

	c := newFakeConn("a")
	_, done := runSession(srv, c)
	c.script(`{"type":"auth","token":"tok-a"}`)
	c.script(`{"type":"group_message","group_id":"g1","text":"hello group"}`)

	if !waitFor(func() bool { return len(cb.frames()) == 1 && len(cc.frames()) == 1 }, time.Second) {
		t.Fatalf("group members did not receive: b=%d c=%d", len(cb.frames()), len(cc.frames()))
	}
	if len(c.frames()) != 0 {
		t.Fatal("sender must not receive its own group echo")
	}
	if !waitFor(func() bool { return store.count() == 1 }, time.Second) {
		t.Fatalf("expected 1 stored record, got %d", store.count())
	}

	c.endInput()
	<-done
}

// Teardown is idempotent and safe from concurrent triggers.
func TestSessionShutdownIdempotent(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
	})
	c := newFakeConn("c1")
	sess, done := runSession(srv, c)
	c.script(`{"type":"auth","token":"tok-1"}`)
	if !waitFor(func() bool { return srv.Registry().IsOnline("u1") }, time.Second) {
		t.Fatal("not registered")
	}

	for i := 0; i < 3; i++ {
		go sess.shutdown(CloseNormal)
	}
	sess.shutdown(CloseNormal)
	<-done

	if srv.Registry().IsOnline("u1") {
		t.Fatal("u1 must be gone after shutdown")
	}
	if sess.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", sess.State())
	}
}

// Cancelling the context closes the transport and unblocks the receive.
func TestSessionContextCancel(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
	})
	c := newFakeConn("c1")
	sess := NewSession(srv, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sess.Run(ctx)
		close(done)
	}()

	c.script(`{"type":"auth","token":"tok-1"}`)
	if !waitFor(func() bool { return srv.Registry().IsOnline("u1") }, time.Second) {
		t.Fatal("not registered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after context cancellation")
	}
	if srv.Registry().IsOnline("u1") {
		t.Fatal("u1 must be evicted after cancellation")
	}
}

// blockingVerifier parks VerifyCredential until released, so tests can
// overlap teardown with an in-flight credential check.
type blockingVerifier struct {
	entered chan struct{}
	release chan struct{}
}

func (v *blockingVerifier) VerifyCredential(string) (string, error) {
	close(v.entered)
	<-v.release
	return "u1", nil
}

// Cancelling the context while the credential check is in flight must not let
// the handshake resume into Authenticated: Closed is terminal, and the
// already-closed connection must never land in the registry.
func TestSessionCancelDuringCredentialCheck(t *testing.T) {
	v := &blockingVerifier{entered: make(chan struct{}), release: make(chan struct{})}
	srv := newTestServer(Options{Auth: v})
	c := newFakeConn("c1")
	sess := NewSession(srv, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sess.Run(ctx)
		close(done)
	}()

	c.script(`{"type":"auth","token":"tok-1"}`)
	<-v.entered
	cancel()
	if !waitFor(c.isClosed, time.Second) {
		t.Fatal("cancellation must close the transport")
	}

	close(v.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after context cancellation")
	}

	if sess.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", sess.State())
	}
	if srv.Registry().IsOnline("u1") {
		t.Fatal("closed connection must not remain registered for u1")
	}
	if got := len(srv.Registry().ConnectionsFor("u1")); got != 0 {
		t.Fatalf("registry holds %d connections for u1, want 0", got)
	}
}

// Offline/online scenario from the routing contract: sending to an absent
// identity reports offline; after the identity connects, the same send
// delivers with the stamped sender.
func TestScenarioOfflineThenOnline(t *testing.T) {
	srv := newTestServer(Options{
		Auth: &fakeVerifier{tokens: map[string]string{"tok-1": "u1"}},
	})

	env := &MessageFrame{Sender: "u1", Receiver: "u2", Text: "hi"}
	if srv.Router().DeliverToUser("u2", env) {
		t.Fatal("u2 is offline, delivery must report false")
	}
	if srv.Registry().IsOnline("u2") {
		t.Fatal("registry entry for u2 must remain absent")
	}

	c2 := newFakeConn("c2")
	srv.Registry().Connect("u2", c2)
	if !srv.Router().DeliverToUser("u2", env) {
		t.Fatal("u2 is online now, delivery must succeed")
	}
	got := c2.frames()
	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	m := got[0].(*MessageFrame)
	if m.Sender != "u1" || m.Text != "hi" {
		t.Fatalf("unexpected frame: %+v", m)
	}
}
