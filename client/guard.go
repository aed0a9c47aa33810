package client

import "sync"

// maxTrackedWrites bounds the per-key write history before it is pruned
const maxTrackedWrites = 1024

// writeGuard orders cache writes against fetches still in flight. Every fetch
// takes a ticket before it goes to the network; its response may only be
// written if no invalidation happened after the ticket was issued and no
// fresher ticket has already written the same key.
type writeGuard struct {
	mu          sync.Mutex
	next        uint64
	invalidated uint64
	written     map[string]uint64
	inFlight    map[uint64]struct{}
}

func newWriteGuard() *writeGuard {
	return &writeGuard{
		written:  make(map[string]uint64),
		inFlight: make(map[uint64]struct{}),
	}
}

// issue hands out the next ticket. The caller must release it.
func (g *writeGuard) issue() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	g.inFlight[g.next] = struct{}{}
	return g.next
}

// release marks ticket as settled
func (g *writeGuard) release(ticket uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, ticket)
}

// commit runs write if ticket is still admissible for key
func (g *writeGuard) commit(key string, ticket uint64, write func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ticket <= g.invalidated || ticket < g.written[key] {
		return false
	}
	g.written[key] = ticket
	write()

	if len(g.written) > maxTrackedWrites {
		g.prune()
	}
	return true
}

// prune forgets writes older than every unsettled ticket; no pending commit
// can be rejected by them.
func (g *writeGuard) prune() {
	oldest := g.next + 1
	for t := range g.inFlight {
		if t < oldest {
			oldest = t
		}
	}
	for key, t := range g.written {
		if t < oldest {
			delete(g.written, key)
		}
	}
}

// invalidate retires every ticket issued so far, then runs drop
func (g *writeGuard) invalidate(drop func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.invalidated = g.next
	g.written = make(map[string]uint64)
	drop()
}
