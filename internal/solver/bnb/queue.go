package bnb

type node struct {
	id     int
	parent int
	depth  int
	// bound is the parent's relaxation objective, a lower bound for the node.
	bound float64
	// warm is the parent's optimal basis, shared by both children.
	warm basis
	lo   []float64
	hi   []float64
}

// nodeQueue orders open nodes depth-first (newest first) until bestFirst is
// set, then by bound with the id as tiebreak.
type nodeQueue struct {
	items     []*node
	bestFirst bool
}

func (q nodeQueue) Len() int { return len(q.items) }

func (q nodeQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if q.bestFirst {
		if a.bound != b.bound {
			return a.bound < b.bound
		}
		return a.id < b.id
	}
	if a.depth != b.depth {
		return a.depth > b.depth
	}
	return a.id > b.id
}

func (q nodeQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *nodeQueue) Push(x any) { q.items = append(q.items, x.(*node)) }

func (q *nodeQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return it
}
