/**
 * @description
 * In-flight mutation guard. The upstream API does not deduplicate rapid repeated
 * mutation calls, so a double-submit could create two deposits or race two
 * reversals. The guard admits at most one in-flight mutation per user and
 * mutation type; idempotency keys on the upstream request cover the rest.
 */

package app

import "sync"

type mutationGuard struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

func newMutationGuard() *mutationGuard {
	return &mutationGuard{inFlight: make(map[string]bool)}
}

// begin marks the mutation as in flight. It returns false if the same user
// already has the same mutation type running.
func (g *mutationGuard) begin(userID, kind string) bool {
	key := userID + "|" + kind
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[key] {
		return false
	}
	g.inFlight[key] = true
	return true
}

// end releases the slot taken by begin.
func (g *mutationGuard) end(userID, kind string) {
	key := userID + "|" + kind
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, key)
}
