package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/schema"
)

// CycleWarning represents a dependency cycle between computed fields.
//
// Cycles are warnings, not errors: the engine bounds propagation depth, so
// a cyclic schema still terminates, but its results depend on where an
// update enters the loop.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["A.x", "B.y", "A.x"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on the computed-field
// dependency graph.
//
// The algorithm:
//  1. Build field → dependent field edges ("Model.field" nodes) from the
//     schema's source map, within records and across links
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// Models that do not build into a registry yield no warnings; ValidateModels
// reports why.
func AnalyzeCycles(specs []ir.ModelSpec) []CycleWarning {
	if len(specs) == 0 {
		return []CycleWarning{}
	}

	reg, err := schema.New(specs)
	if err != nil {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(reg)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

// dependencyGraph maps "Model.field" → fields recomputed when it changes.
type dependencyGraph map[string][]string

func nodeName(modelID, fieldID string) string {
	return modelID + "." + fieldID
}

// buildDependencyGraph constructs the field dependency graph. Adjacency
// lists are sorted so traversal order does not depend on map iteration.
func buildDependencyGraph(reg *schema.Registry) dependencyGraph {
	graph := make(dependencyGraph)
	for _, modelID := range reg.ModelIDs() {
		m, _ := reg.Model(modelID)
		for _, fieldID := range m.FieldIDs() {
			refs := reg.SourceFor(modelID, fieldID)
			if len(refs) == 0 {
				continue
			}
			from := nodeName(modelID, fieldID)
			for _, ref := range refs {
				graph[from] = append(graph[from], nodeName(ref.ModelID, ref.FieldID))
			}
			sort.Strings(graph[from])
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning. For self-loops the
// path is [field, field].
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		node := scc[0]
		return CycleWarning{
			Path:    []string{node, node},
			Message: fmt.Sprintf("Computed field depends on itself: %s → %s", node, node),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Computed field cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks from the first SCC member along edges that
// stay inside the SCC until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
