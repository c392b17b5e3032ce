// Package graph maintains the file-level dependency graph. Nodes are keyed
// by project-relative path and carry the content hash of the analyzed
// revision; edges are typed by relationship kind. All accessors return
// clones so callers never observe concurrent mutation.
package graph

import (
	"sort"
	"sync"

	"guardrail/internal/engine/parser"
	"guardrail/internal/shared/observability"
)

type EdgeKind string

const (
	EdgeImport     EdgeKind = "import"
	EdgeCall       EdgeKind = "call"
	EdgeExtends    EdgeKind = "extends"
	EdgeImplements EdgeKind = "implements"
)

// Node is one analyzed file in the graph.
type Node struct {
	Path        string
	ContentHash string
	Language    string
	Module      string
	Exports     []parser.Definition
}

// Edge is one typed relationship between two files. Symbol carries the
// referenced definition name for call/extends/implements edges.
type Edge struct {
	From     string
	To       string
	Kind     EdgeKind
	Symbol   string
	Location parser.Location
}

type edgeKey struct {
	to     string
	kind   EdgeKind
	symbol string
}

type Graph struct {
	mu sync.RWMutex

	nodes      map[string]*Node
	edges      map[string]map[edgeKey]*Edge // from -> key -> edge
	dependents map[string]map[string]bool   // to -> from
}

func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		edges:      make(map[string]map[edgeKey]*Edge),
		dependents: make(map[string]map[string]bool),
	}
}

// AddNode registers or replaces a file node. Replacing a node removes its
// outgoing edges first so a re-analysis never leaves stale edges behind.
func (g *Graph) AddNode(node Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(node)
	g.updateGaugesLocked()
}

func (g *Graph) addNodeLocked(node Node) {
	if _, exists := g.nodes[node.Path]; exists {
		g.removeOutgoingLocked(node.Path)
	}
	clone := node
	clone.Exports = append([]parser.Definition(nil), node.Exports...)
	g.nodes[node.Path] = &clone
}

// AddEdge records a typed edge. Both endpoints must already be nodes; edges
// into unknown files are dropped by the caller after resolution fails.
func (g *Graph) AddEdge(edge Edge) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.addEdgeLocked(edge)
	g.updateGaugesLocked()
	return ok
}

func (g *Graph) addEdgeLocked(edge Edge) bool {
	if _, ok := g.nodes[edge.From]; !ok {
		return false
	}
	if _, ok := g.nodes[edge.To]; !ok {
		return false
	}
	if g.edges[edge.From] == nil {
		g.edges[edge.From] = make(map[edgeKey]*Edge)
	}
	key := edgeKey{to: edge.To, kind: edge.Kind, symbol: edge.Symbol}
	clone := edge
	g.edges[edge.From][key] = &clone

	if g.dependents[edge.To] == nil {
		g.dependents[edge.To] = make(map[string]bool)
	}
	g.dependents[edge.To][edge.From] = true
	return true
}

// RemoveNode drops a file and every edge touching it.
func (g *Graph) RemoveNode(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[path]; !ok {
		return
	}
	g.removeOutgoingLocked(path)

	for from := range g.dependents[path] {
		for key := range g.edges[from] {
			if key.to == path {
				delete(g.edges[from], key)
			}
		}
		if len(g.edges[from]) == 0 {
			delete(g.edges, from)
		}
	}
	delete(g.dependents, path)
	delete(g.nodes, path)
	g.updateGaugesLocked()
}

func (g *Graph) removeOutgoingLocked(path string) {
	for key := range g.edges[path] {
		if deps := g.dependents[key.to]; deps != nil {
			if !g.hasOtherEdgeLocked(path, key.to, key) {
				delete(deps, path)
				if len(deps) == 0 {
					delete(g.dependents, key.to)
				}
			}
		}
	}
	delete(g.edges, path)
}

func (g *Graph) hasOtherEdgeLocked(from, to string, except edgeKey) bool {
	for key := range g.edges[from] {
		if key != except && key.to == to {
			return true
		}
	}
	return false
}

func (g *Graph) GetNode(path string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[path]
	if !ok {
		return Node{}, false
	}
	clone := *node
	clone.Exports = append([]parser.Definition(nil), node.Exports...)
	return clone, true
}

func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		clone := *node
		clone.Exports = append([]parser.Definition(nil), node.Exports...)
		out = append(out, clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCountLocked()
}

func (g *Graph) edgeCountLocked() int {
	n := 0
	for _, edges := range g.edges {
		n += len(edges)
	}
	return n
}

// EdgesFrom returns the outgoing edges of a file sorted by target, kind and
// symbol.
func (g *Graph) EdgesFrom(path string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, len(g.edges[path]))
	for _, edge := range g.edges[path] {
		out = append(out, *edge)
	}
	sortEdges(out)
	return out
}

func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, g.edgeCountLocked())
	for _, edges := range g.edges {
		for _, edge := range edges {
			out = append(out, *edge)
		}
	}
	sortEdges(out)
	return out
}

// DirectDependents returns the files with at least one edge into path.
func (g *Graph) DirectDependents(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.dependents[path]))
	for from := range g.dependents[path] {
		out = append(out, from)
	}
	sort.Strings(out)
	return out
}

// Dependents walks the reverse edges breadth-first up to maxDepth hops.
// maxDepth <= 0 means unbounded. The changed file itself is excluded.
func (g *Graph) Dependents(path string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	type item struct {
		path  string
		depth int
	}
	seen := map[string]bool{path: true}
	queue := []item{{path: path, depth: 0}}
	var out []string

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && curr.depth >= maxDepth {
			continue
		}
		for from := range g.dependents[curr.path] {
			if seen[from] {
				continue
			}
			seen[from] = true
			out = append(out, from)
			queue = append(queue, item{path: from, depth: curr.depth + 1})
		}
	}
	sort.Strings(out)
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		if edges[i].Kind != edges[j].Kind {
			return edges[i].Kind < edges[j].Kind
		}
		return edges[i].Symbol < edges[j].Symbol
	})
}

func (g *Graph) updateGaugesLocked() {
	observability.GraphNodes.Set(float64(len(g.nodes)))
	observability.GraphEdges.Set(float64(g.edgeCountLocked()))
}

// adjacencyLocked returns the deduplicated forward adjacency restricted to
// known nodes, with deterministic ordering.
func (g *Graph) adjacencyLocked() (nodes []string, adjacency map[string][]string) {
	nodes = make([]string, 0, len(g.nodes))
	for path := range g.nodes {
		nodes = append(nodes, path)
	}
	sort.Strings(nodes)

	adjacency = make(map[string][]string, len(nodes))
	for _, from := range nodes {
		targetSet := make(map[string]bool)
		for key := range g.edges[from] {
			targetSet[key.to] = true
		}
		targets := make([]string, 0, len(targetSet))
		for to := range targetSet {
			targets = append(targets, to)
		}
		sort.Strings(targets)
		adjacency[from] = targets
	}
	return nodes, adjacency
}
