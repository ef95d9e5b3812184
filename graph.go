package asyncinject

import "sort"

// buildGraph derives the name→dependency-set mapping from the unit table.
// Private parameters are excluded: they are injected out-of-band, not
// resolved. Dependency names are looked up at plan time, so the graph can
// legitimately reference names with no registered unit.
func buildGraph(units map[string]*Unit) map[string]map[string]struct{} {
	graph := make(map[string]map[string]struct{}, len(units))
	for name, unit := range units {
		graph[name] = unit.dependencies()
	}
	return graph
}

// snapshot returns the unit table and the cached dependency graph, rebuilding
// the graph if a registration invalidated it. The returned graph is immutable;
// registration replaces the cache rather than mutating it.
func (r *Registry) snapshot() (map[string]*Unit, map[string]map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.graph == nil {
		r.graph = buildGraph(r.units)
	}
	units := make(map[string]*Unit, len(r.units))
	for name, unit := range r.units {
		units[name] = unit
	}
	return units, r.graph
}

// Graph returns the dependency graph as a mapping from unit name to its
// sorted dependency names.
func (r *Registry) Graph() map[string][]string {
	_, graph := r.snapshot()
	out := make(map[string][]string, len(graph))
	for name, deps := range graph {
		names := make([]string, 0, len(deps))
		for dep := range deps {
			names = append(names, dep)
		}
		sort.Strings(names)
		out[name] = names
	}
	return out
}
