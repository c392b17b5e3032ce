package graph

// Merge unions another graph into this one. Nodes are content-addressed:
// a node with an unchanged hash keeps its current state, a changed hash
// replaces the node and its outgoing edges. Merging the same partial graph
// twice leaves the receiver identical to merging it once.
func (g *Graph) Merge(other *Graph) {
	if other == nil || other == g {
		return
	}

	otherNodes := other.Nodes()
	otherEdges := other.Edges()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, node := range otherNodes {
		existing, ok := g.nodes[node.Path]
		if ok && (node.ContentHash == "" || existing.ContentHash == node.ContentHash) {
			// Hash-less nodes are edge-endpoint placeholders; the analyzed
			// node for that path wins regardless of merge order.
			continue
		}
		g.addNodeLocked(node)
	}

	for _, edge := range otherEdges {
		g.addEdgeLocked(edge)
	}

	g.updateGaugesLocked()
}
