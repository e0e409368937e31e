package engine

import (
	"fmt"
	"strings"
)

// Graph is the dependency graph of a manifest, with a deterministic
// topological order and execution levels for parallel apply.
type Graph struct {
	// Order is the total order consistent with the declared partial
	// order: for every edge A depends_on B, B precedes A. Ties are
	// broken by declaration order in the manifest.
	Order []ResourceID

	// Levels groups resources by depth from the roots. Resources within
	// a level have no transitive dependency relation and may execute in
	// parallel.
	Levels [][]ResourceID

	// Dependencies maps a resource to the resources it depends on.
	Dependencies map[ResourceID][]ResourceID

	// Dependents maps a resource to the resources that depend on it.
	Dependents map[ResourceID][]ResourceID
}

// graphBuilder constructs a Graph from a manifest. It validates
// identities and dependencies and detects cycles.
type graphBuilder struct {
	order        []ResourceID
	index        map[ResourceID]int
	dependencies map[ResourceID][]ResourceID
	dependents   map[ResourceID][]ResourceID
	inDegree     map[ResourceID]int
}

// BuildGraph validates the manifest's dependency structure and computes
// the deterministic topological order. Duplicate identities, dangling
// dependencies, and cycles yield a ManifestError.
func BuildGraph(m *Manifest) (*Graph, error) {
	b := &graphBuilder{
		index:        make(map[ResourceID]int),
		dependencies: make(map[ResourceID][]ResourceID),
		dependents:   make(map[ResourceID][]ResourceID),
		inDegree:     make(map[ResourceID]int),
	}

	if err := b.initialize(m); err != nil {
		return nil, err
	}
	if err := b.detectCycles(); err != nil {
		return nil, err
	}
	return b.build()
}

// initialize indexes declarations and builds adjacency lists.
func (b *graphBuilder) initialize(m *Manifest) error {
	for i, res := range m.Resources {
		if err := res.Kind.Validate(); err != nil {
			return NewManifestError("invalid resource kind", err).WithResource(res.ID())
		}
		if res.Name == "" {
			return NewManifestError(fmt.Sprintf("resource %d has empty name", i), nil)
		}

		id := res.ID()
		if _, exists := b.index[id]; exists {
			return NewManifestError(fmt.Sprintf("duplicate resource identity: %s", id), nil)
		}
		b.index[id] = i
		b.order = append(b.order, id)
		b.inDegree[id] = 0
	}

	for _, res := range m.Resources {
		id := res.ID()
		for _, dep := range res.DependsOn {
			if _, exists := b.index[dep]; !exists {
				return NewManifestError(
					fmt.Sprintf("resource %s depends on undeclared resource %s", id, dep), nil,
				).WithResource(id)
			}
			if dep == id {
				return NewManifestError(fmt.Sprintf("resource %s depends on itself", id), nil).WithResource(id)
			}
			b.dependencies[id] = append(b.dependencies[id], dep)
			b.dependents[dep] = append(b.dependents[dep], id)
			b.inDegree[id]++
		}
	}

	return nil
}

// detectCycles runs depth-first search over the dependency edges and
// reports the first cycle found, naming its members.
func (b *graphBuilder) detectCycles() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[ResourceID]int, len(b.order))
	var path []ResourceID

	var visit func(id ResourceID) []ResourceID
	visit = func(id ResourceID) []ResourceID {
		state[id] = visiting
		path = append(path, id)

		for _, dep := range b.dependencies[id] {
			switch state[dep] {
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			case visiting:
				// Trim the path down to the cycle and close it.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				return append(append([]ResourceID{}, path[start:]...), dep)
			}
		}

		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, id := range b.order {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return NewManifestError(
					fmt.Sprintf("dependency cycle: %s", formatCycle(cycle)), nil,
				)
			}
		}
	}
	return nil
}

// build runs Kahn's algorithm with declaration-order tie-breaking and
// computes execution levels.
func (b *graphBuilder) build() (*Graph, error) {
	inDegree := make(map[ResourceID]int, len(b.inDegree))
	for id, d := range b.inDegree {
		inDegree[id] = d
	}

	g := &Graph{
		Dependencies: b.dependencies,
		Dependents:   b.dependents,
	}

	scheduled := make(map[ResourceID]bool, len(b.order))
	for len(g.Order) < len(b.order) {
		// Ready set in declaration order keeps the result deterministic.
		var level []ResourceID
		for _, id := range b.order {
			if !scheduled[id] && inDegree[id] == 0 {
				level = append(level, id)
			}
		}
		if len(level) == 0 {
			// Unreachable once detectCycles has passed.
			return nil, NewManifestError("dependency graph is not acyclic", nil)
		}

		for _, id := range level {
			scheduled[id] = true
			g.Order = append(g.Order, id)
			for _, dep := range b.dependents[id] {
				inDegree[dep]--
			}
		}
		g.Levels = append(g.Levels, level)
	}

	return g, nil
}

// ToDOT renders the graph in Graphviz DOT format.
func (g *Graph) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph manifest {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n")
	for _, id := range g.Order {
		sb.WriteString(fmt.Sprintf("  %q;\n", id))
	}
	for _, id := range g.Order {
		for _, dep := range g.Dependencies[id] {
			sb.WriteString(fmt.Sprintf("  %q -> %q;\n", dep, id))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []ResourceID) string {
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
