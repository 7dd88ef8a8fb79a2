package chat

import (
	"sync"

	"github.com/Mehdi856/Chat-Project/logger"
	"github.com/Mehdi856/Chat-Project/service/metrics"
)

// Router resolves a destination identity (or member list) to live connections
// and pushes frames at them. Delivery is fire-and-forget: there is no ack
// protocol, and the durable store is the system of record for anything a live
// push misses.
type Router struct {
	reg *Registry
}

func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// DeliverToUser pushes the frame to every live connection of identity. A
// failed push evicts that one connection and never aborts delivery to the
// identity's other connections. Returns true if at least one connection
// received the frame (callers use false as "recipient offline").
func (r *Router) DeliverToUser(identity string, f Frame) bool {
	conns := r.reg.ConnectionsFor(identity)
	if len(conns) == 0 {
		return false
	}
	delivered := false
	for _, c := range conns {
		if err := c.Push(f); err != nil {
			logger.Warnf("[router] push failed, evicting conn user=%s err=%v", identity, err)
			metrics.DeliveryFailures.Inc()
			r.reg.Disconnect(identity, c)
			_ = c.Close(CloseGoingAway)
			continue
		}
		metrics.DeliveredTotal.Inc()
		delivered = true
	}
	return delivered
}

// DeliverToGroup fans the frame out to every member except exclude (the
// sender never receives its own echo). Per-member delivery runs concurrently;
// one member's dead socket never blocks or fails the others. Returns after
// every push has settled.
func (r *Router) DeliverToGroup(members []string, f Frame, exclude string) {
	var wg sync.WaitGroup
	for _, m := range members {
		if m == exclude || m == "" {
			continue
		}
		wg.Add(1)
		go func(identity string) {
			defer wg.Done()
			r.DeliverToUser(identity, f)
		}(m)
	}
	wg.Wait()
}

// Broadcast delivers to every identity currently registered, except exclude.
func (r *Router) Broadcast(f Frame, exclude string) {
	r.DeliverToGroup(r.reg.Identities(), f, exclude)
}
