package graph

import "sort"

// FileMetrics summarizes one file's position in the dependency graph.
type FileMetrics struct {
	Path   string
	FanIn  int
	FanOut int
	Weight float64
}

// criticalWeight ranks a file by how much of the codebase leans on it.
// Incoming edges count double because breaking a dependency hurts every
// dependent, while outgoing edges only hurt the file itself.
func criticalWeight(fanIn, fanOut int) float64 {
	return float64(fanIn*2 + fanOut)
}

// ComputeMetrics returns fan-in/fan-out and the criticality weight for every
// file, sorted by descending weight with path as the tiebreaker.
func (g *Graph) ComputeMetrics() []FileMetrics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes, adjacency := g.adjacencyLocked()

	fanIn := make(map[string]int, len(nodes))
	fanOut := make(map[string]int, len(nodes))
	for _, from := range nodes {
		fanOut[from] = len(adjacency[from])
		for _, to := range adjacency[from] {
			fanIn[to]++
		}
	}

	out := make([]FileMetrics, 0, len(nodes))
	for _, path := range nodes {
		out = append(out, FileMetrics{
			Path:   path,
			FanIn:  fanIn[path],
			FanOut: fanOut[path],
			Weight: criticalWeight(fanIn[path], fanOut[path]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// CriticalPaths returns the top-K most load-bearing files. k <= 0 returns
// every file.
func (g *Graph) CriticalPaths(k int) []FileMetrics {
	metrics := g.ComputeMetrics()
	if k > 0 && k < len(metrics) {
		metrics = metrics[:k]
	}
	return metrics
}

// IsCritical reports whether path ranks within the top-K critical files.
func (g *Graph) IsCritical(path string, k int) bool {
	for _, m := range g.CriticalPaths(k) {
		if m.Path == path {
			return true
		}
	}
	return false
}
