package chat

import (
	"testing"
)

// P1: every connection of a multi-device identity receives the frame, and a
// single failing connection neither blocks the others nor survives delivery.
func TestDeliverToUserMultiDevice(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")
	reg.Connect("u1", c1)
	reg.Connect("u1", c2)

	env := &MessageFrame{Sender: "u2", Receiver: "u1", Text: "hi"}
	if !router.DeliverToUser("u1", env) {
		t.Fatal("expected delivery to succeed")
	}
	if len(c1.frames()) != 1 || len(c2.frames()) != 1 {
		t.Fatalf("both devices must receive the frame: c1=%d c2=%d", len(c1.frames()), len(c2.frames()))
	}
}

func TestDeliverToUserEvictsFailedConn(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")
	c1.failPushes()
	reg.Connect("u1", c1)
	reg.Connect("u1", c2)

	env := &MessageFrame{Sender: "u2", Receiver: "u1", Text: "hi"}
	if !router.DeliverToUser("u1", env) {
		t.Fatal("healthy connection must still receive the frame")
	}
	if len(c2.frames()) != 1 {
		t.Fatalf("c2 should have received the frame, got %d", len(c2.frames()))
	}

	// the failed connection is gone from the registry
	for _, c := range reg.ConnectionsFor("u1") {
		if c == c1 {
			t.Fatal("c1 must be evicted after a failed push")
		}
	}
	if len(reg.ConnectionsFor("u1")) != 1 {
		t.Fatalf("expected exactly one connection left, got %d", len(reg.ConnectionsFor("u1")))
	}
}

func TestDeliverToUserOffline(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	env := &MessageFrame{Sender: "u1", Receiver: "u2", Text: "hi"}
	if router.DeliverToUser("u2", env) {
		t.Fatal("delivery to an offline identity must report false")
	}
	if reg.IsOnline("u2") {
		t.Fatal("registry must not grow an entry for an offline identity")
	}
}

// P2: the sender never receives its own group echo.
func TestDeliverToGroupExcludesSender(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	ca := newFakeConn("a")
	cb := newFakeConn("b")
	cc := newFakeConn("c")
	reg.Connect("A", ca)
	reg.Connect("B", cb)
	reg.Connect("C", cc)

	env := &GroupMessageFrame{Sender: "A", GroupID: "g1", Text: "hello"}
	router.DeliverToGroup([]string{"A", "B", "C"}, env, "A")

	if len(ca.frames()) != 0 {
		t.Fatal("sender A must not receive its own echo")
	}
	if len(cb.frames()) != 1 || len(cc.frames()) != 1 {
		t.Fatalf("B and C must each receive the frame: b=%d c=%d", len(cb.frames()), len(cc.frames()))
	}
}

// P5: one member's dead socket neither raises nor blocks the rest, and the
// dead connection is evicted.
func TestDeliverToGroupPartialFailure(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	cb := newFakeConn("b")
	cc := newFakeConn("c")
	cd := newFakeConn("d")
	cb.failPushes()
	reg.Connect("B", cb)
	reg.Connect("C", cc)
	reg.Connect("D", cd)

	env := &GroupMessageFrame{Sender: "A", GroupID: "g1", Text: "hello"}
	router.DeliverToGroup([]string{"A", "B", "C", "D"}, env, "A")

	if len(cc.frames()) != 1 || len(cd.frames()) != 1 {
		t.Fatalf("C and D must receive despite B failing: c=%d d=%d", len(cc.frames()), len(cd.frames()))
	}
	if reg.IsOnline("B") {
		t.Fatal("B's dead connection must be evicted")
	}
}

func TestBroadcast(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	conns := map[string]*fakeConn{}
	for _, id := range []string{"A", "B", "C"} {
		c := newFakeConn(id)
		conns[id] = c
		reg.Connect(id, c)
	}

	env := &NotificationFrame{Sender: "A", Text: "maintenance"}
	router.Broadcast(env, "A")

	if len(conns["A"].frames()) != 0 {
		t.Fatal("excluded identity must not receive the broadcast")
	}
	for _, id := range []string{"B", "C"} {
		if len(conns[id].frames()) != 1 {
			t.Fatalf("%s should receive the broadcast", id)
		}
	}
}
