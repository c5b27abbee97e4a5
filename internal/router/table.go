package router

import "sort"

// Table is the process-wide mapping from a client-requested model name to
// its ordered candidate list, built once at startup. It is
// immutable after BuildTable returns; only the Breaker embedded in the owning
// Router mutates at runtime.
type Table struct {
	// direct maps a requested model name to every (upstream,model) pair
	// whose upstream lists that model directly.
	direct map[string][]RouteTarget
}

// BuildTable constructs the candidate table from the static upstream list
// and the configured model aliases (config.Features.ModelAliases).
// The table is built once since the upstream set never changes after
// startup.
func BuildTable(upstreams []Upstream, aliases map[string]map[string]string) *Table {
	t := &Table{direct: make(map[string][]RouteTarget)}

	for _, u := range upstreams {
		for _, m := range u.Models {
			t.direct[m] = append(t.direct[m], RouteTarget{
				UpstreamIndex: u.Index,
				ActualModel:   m,
				KnownModelID:  m,
			})
		}
	}

	// Alias rewriting: "smart" -> {"openai-primary": "gpt-4o", ...} adds one
	// candidate per upstream named in the alias's per-upstream map, using
	// that upstream's specific actual model string.
	upstreamsByName := make(map[string]Upstream, len(upstreams))
	for _, u := range upstreams {
		upstreamsByName[u.Name] = u
	}
	for alias, perUpstream := range aliases {
		// Map iteration order would reshuffle the candidate list on every
		// restart, breaking cross-restart hash-rotation stickiness.
		names := make([]string, 0, len(perUpstream))
		for upstreamName := range perUpstream {
			names = append(names, upstreamName)
		}
		sort.Strings(names)
		for _, upstreamName := range names {
			u, ok := upstreamsByName[upstreamName]
			if !ok {
				continue
			}
			t.direct[alias] = append(t.direct[alias], RouteTarget{
				UpstreamIndex: u.Index,
				ActualModel:   perUpstream[upstreamName],
				KnownModelID:  perUpstream[upstreamName],
			})
		}
	}

	return t
}

// Candidates returns the raw (unrotated, unsorted) candidate list for a
// requested model name, or nil if no upstream serves it.
func (t *Table) Candidates(model string) []RouteTarget {
	return t.direct[model]
}
