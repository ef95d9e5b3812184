package asyncinject

// plan is the dependency-respecting schedule for one resolution call. It
// carries both a total order (consumed by the sequential executor) and the
// readiness state (consumed by the concurrent executor): per-node counts of
// unresolved dependencies, plus the reverse adjacency used to unlock
// dependents as units complete.
type plan struct {
	order      []string
	ready      []string
	remaining  map[string]int
	dependents map[string][]string
}

// complete marks name as done and returns the dependents that became ready.
func (p *plan) complete(name string) []string {
	var ready []string
	for _, dependent := range p.dependents[name] {
		p.remaining[dependent]--
		if p.remaining[dependent] == 0 {
			ready = append(ready, dependent)
		}
	}
	return ready
}

// buildPlan walks backward from the targets through the dependency graph,
// collecting the minimal subgraph of names not already satisfied by a seed
// value, then linearizes it. Names with no registered unit are allowed into
// the plan only when every unit consuming them declares a default; they are
// marked done without executing anything. Cycles and unresolvable names fail
// here, before any unit runs.
func buildPlan(
	targets []string,
	seeded func(string) bool,
	lookup func(string) (*Unit, bool),
	deps func(string) (map[string]struct{}, bool),
) (*plan, error) {
	nodes := make(map[string]map[string]struct{})
	targetSet := make(map[string]struct{}, len(targets))
	stack := make([]string, 0, len(targets))
	for _, target := range targets {
		targetSet[target] = struct{}{}
		if !seeded(target) {
			stack = append(stack, target)
		}
	}

	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, visited := nodes[name]; visited {
			continue
		}
		need := make(map[string]struct{})
		if declared, ok := deps(name); ok {
			for dep := range declared {
				if seeded(dep) {
					continue
				}
				need[dep] = struct{}{}
				stack = append(stack, dep)
			}
		}
		nodes[name] = need
	}

	if err := checkResolvable(nodes, targetSet, lookup); err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for name, need := range nodes {
		remaining[name] = len(need)
		for dep := range need {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	counts := make(map[string]int, len(remaining))
	queue := make([]string, 0, len(nodes))
	ready := make([]string, 0, len(nodes))
	for name, count := range remaining {
		counts[name] = count
		if count == 0 {
			queue = append(queue, name)
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, dependent := range dependents[name] {
			counts[dependent]--
			if counts[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(nodes) {
		var cycle []string
		for name, count := range counts {
			if count > 0 {
				cycle = append(cycle, name)
			}
		}
		return nil, &PlanError{Cycle: cycle}
	}

	return &plan{
		order:      order,
		ready:      ready,
		remaining:  remaining,
		dependents: dependents,
	}, nil
}

// checkResolvable rejects plans containing names that cannot produce a value:
// unregistered targets, and unregistered dependencies for which some consumer
// lacks a default.
func checkResolvable(
	nodes map[string]map[string]struct{},
	targetSet map[string]struct{},
	lookup func(string) (*Unit, bool),
) error {
	consumers := make(map[string][]string)
	for name, need := range nodes {
		for dep := range need {
			consumers[dep] = append(consumers[dep], name)
		}
	}

	var missing []string
	for name := range nodes {
		if _, ok := lookup(name); ok {
			continue
		}
		if _, isTarget := targetSet[name]; isTarget {
			missing = append(missing, name)
			continue
		}
		covered := true
		for _, consumer := range consumers[name] {
			unit, ok := lookup(consumer)
			if !ok {
				continue
			}
			if _, has := unit.defaultFor(name); !has {
				covered = false
				break
			}
		}
		if !covered {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &PlanError{Missing: missing}
	}
	return nil
}
