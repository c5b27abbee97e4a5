package router

import (
	"hash/fnv"
	"sort"

	"github.com/nexusgate/llm-gateway/internal/ir"
)

// SessionClass selects how tolerant a request's candidate ordering is of
// cross-upstream failover.
type SessionClass int

const (
	// Portable sessions tolerate landing on any healthy candidate.
	Portable SessionClass = iota
	// Anchored sessions prefer their primary upstream even while its
	// breaker is open.
	Anchored
)

// Router resolves candidate lists for incoming requests, combining the
// static Table with the live Breaker.
type Router struct {
	table   *Table
	breaker *Breaker
}

// New builds a Router over an already-constructed Table and Breaker.
func New(table *Table, breaker *Breaker) *Router {
	return &Router{table: table, breaker: breaker}
}

// Breaker exposes the underlying breaker so the pipeline can record
// attempt outcomes.
func (r *Router) Breaker() *Breaker { return r.breaker }

// StickyHash derives a non-cryptographic per-request hash from
// (clientAPIKey, ingress, model, a body prefix), used to rotate the
// candidate list so repeat traffic from the same client+model lands on the
// same primary. An absent API key falls
// back to hashing ingress+model only.
func StickyHash(clientAPIKey string, ingress ir.IngressAPI, model string, bodyPrefix []byte) uint64 {
	h := fnv.New64a()
	if clientAPIKey != "" {
		h.Write([]byte(clientAPIKey))
		h.Write([]byte{0})
	}
	h.Write([]byte(ingress))
	h.Write([]byte{0})
	h.Write([]byte(model))
	if clientAPIKey != "" && len(bodyPrefix) > 0 {
		h.Write([]byte{0})
		h.Write(bodyPrefix)
	}
	return h.Sum64()
}

// Resolve returns the ordered candidate list for model under the given
// session class, per the policy:
//
//   - a single candidate is returned immediately, with no hashing;
//   - otherwise the list is rotated by requestHash mod N so the same
//     request hash always lands on the same "primary" first;
//   - Portable stably sorts healthy candidates ahead of blocked ones,
//     preserving rotated order within each group;
//   - Anchored leaves the rotated order untouched, so an anchored session
//     is willing to retry its (possibly blocked) primary before failing
//     over.
func (r *Router) Resolve(model string, requestHash uint64, class SessionClass) []RouteTarget {
	candidates := r.table.Candidates(model)
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates
	}

	n := len(candidates)
	offset := int(requestHash % uint64(n))
	rotated := make([]RouteTarget, n)
	for i := 0; i < n; i++ {
		rotated[i] = candidates[(offset+i)%n]
	}

	if class == Anchored {
		return rotated
	}

	type ranked struct {
		target  RouteTarget
		blocked bool
	}
	withHealth := make([]ranked, n)
	for i, c := range rotated {
		withHealth[i] = ranked{target: c, blocked: r.breaker.Observe(c.UpstreamIndex, c.ActualModel).Blocked}
	}

	sort.SliceStable(withHealth, func(i, j int) bool {
		return !withHealth[i].blocked && withHealth[j].blocked
	})

	out := make([]RouteTarget, n)
	for i, rk := range withHealth {
		out[i] = rk.target
	}
	return out
}
