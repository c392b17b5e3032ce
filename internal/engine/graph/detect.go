package graph

import "sort"

// DetectCycles finds every import cycle reachable in the graph, including
// self-imports reported as a single-element cycle. Detection only reads the
// graph; running it twice yields the same result.
func (g *Graph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes, adjacency := g.adjacencyLocked()

	var cycles [][]string
	visited := make(map[string]bool, len(nodes))
	onStack := make(map[string]bool, len(nodes))

	var walk func(curr string, path []string)
	walk = func(curr string, path []string) {
		visited[curr] = true
		onStack[curr] = true
		path = append(path, curr)

		for _, next := range adjacency[curr] {
			if next == curr {
				cycles = append(cycles, []string{curr})
				continue
			}
			if onStack[next] {
				start := -1
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				if start != -1 {
					cycle := make([]string, len(path)-start)
					copy(cycle, path[start:])
					cycles = append(cycles, cycle)
				}
			} else if !visited[next] {
				walk(next, path)
			}
		}

		onStack[curr] = false
	}

	for _, node := range nodes {
		if !visited[node] {
			walk(node, nil)
		}
	}

	return cycles
}

// DependencyChain returns the shortest forward path between two files.
func (g *Graph) DependencyChain(from, to string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[from]; !ok {
		return nil, false
	}
	if _, ok := g.nodes[to]; !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	_, adjacency := g.adjacencyLocked()

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		neighbors := append([]string(nil), adjacency[curr]...)
		sort.Strings(neighbors)

		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; {
					p, ok := prev[node]
					if !ok {
						return nil, false
					}
					path = append(path, p)
					node = p
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}

			queue = append(queue, next)
		}
	}

	return nil, false
}
