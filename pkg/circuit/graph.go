package circuit

import "sort"

// depGraph is a directed graph over node names, scheduled with Kahn's
// algorithm exactly the way the teacher's pkg/toposort.IntGraph does:
// adjacency list plus an in-degree count, a queue seeded with in-degree-zero
// nodes kept sorted for deterministic output, and a BFS-based cycle
// reconstruction when the topological sort doesn't consume every node.
// Node names stand in directly for the teacher's interned integer IDs —
// this graph has dozens of nodes, not the millions of commit objects
// pkg/toposort.SymbolTable exists to intern cheaply, so the string-keyed
// adjacency list is simpler without being slower in any way that matters
// here.
type depGraph struct {
	edges    map[string][]string
	inDegree map[string]int
	nodes    []string
}

func newDepGraph() *depGraph {
	return &depGraph{
		edges:    map[string][]string{},
		inDegree: map[string]int{},
	}
}

func (g *depGraph) addNode(name string) {
	if _, ok := g.inDegree[name]; ok {
		return
	}

	g.inDegree[name] = 0
	g.nodes = append(g.nodes, name)
}

// addEdge records that from must run before to.
func (g *depGraph) addEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	g.edges[from] = append(g.edges[from], to)
	g.inDegree[to]++
}

// topoSort runs Kahn's algorithm, returning the order and true on success,
// or the partial order and false if a cycle prevented some nodes from ever
// reaching in-degree zero.
func (g *depGraph) topoSort() ([]string, bool) {
	inDegree := make(map[string]int, len(g.inDegree))
	for k, v := range g.inDegree {
		inDegree[k] = v
	}

	var queue []string

	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	sort.Strings(queue)

	result := make([]string, 0, len(g.nodes))

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		result = append(result, cur)

		var toInsert []string

		for _, next := range g.edges[cur] {
			inDegree[next]--
			if inDegree[next] == 0 {
				toInsert = append(toInsert, next)
			}
		}

		sort.Strings(toInsert)

		for _, n := range toInsert {
			idx := sort.SearchStrings(queue, n)
			queue = append(queue, "")
			copy(queue[idx+1:], queue[idx:])
			queue[idx] = n
		}
	}

	return result, len(result) == len(g.nodes)
}

// findCycle does a BFS from start looking for the first edge back to start,
// then reconstructs the path start -> ... -> start via the parent map,
// mirroring the teacher's IntGraph.FindCycle.
func (g *depGraph) findCycle(start string) []string {
	parent := map[string]string{start: ""}
	queue := []string{start}
	visited := map[string]bool{start: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range g.edges[cur] {
			if next == start {
				path := []string{start, cur}
				walk := cur

				for walk != start {
					p, ok := parent[walk]
					if !ok || p == "" {
						break
					}

					path = append(path, p)
					walk = p
				}

				for left, right := 0, len(path)-1; left < right; left, right = left+1, right-1 {
					path[left], path[right] = path[right], path[left]
				}

				return path
			}

			if !visited[next] {
				visited[next] = true
				parent[next] = cur
				queue = append(queue, next)
			}
		}
	}

	return nil
}

// firstCycleNode returns a node left out of a failed topoSort, to seed
// findCycle.
func (g *depGraph) firstCycleNode(order []string) string {
	inOrder := make(map[string]bool, len(order))
	for _, n := range order {
		inOrder[n] = true
	}

	for _, n := range g.nodes {
		if !inOrder[n] {
			return n
		}
	}

	return ""
}
