// Package bktree implements a Burkhard-Keller tree: a metric-space index that
// answers "everything within distance k of q" without comparing q against
// every stored element.
//
// Each node's children are keyed by their exact distance to that node. A
// range search visits only the children whose key lies within
// [d-k, d+k], where d is the distance from the query to the node; the
// triangle inequality guarantees nothing outside that band can match.
//
// Nodes are kept in a flat arena and both insertion and search are iterative,
// so a degenerate insertion order that produces a very deep tree costs time
// but never stack.
//
// A Tree is not safe for concurrent use. Callers that share one across
// goroutines must guard every call, reads included, with the same lock.
package bktree

import (
	"math"
	"slices"

	"bkdict/internal/metric"
)

// Tree is a BK-tree over values of type T.
type Tree[T any] struct {
	nodes    []node[T]
	distance metric.Func[T]
	inserts  int
}

type node[T any] struct {
	value    T
	parent   int32
	key      int
	children map[int]int32 // distance -> arena index
}

// Match is a search hit together with its distance to the query.
type Match[T any] struct {
	Value    T
	Distance int
}

// New creates an empty tree ordered by distanceFn. The function must be a
// metric (see package metric); if it is not, searches may miss elements.
func New[T any](distanceFn func(a, b T) int) *Tree[T] {
	return &Tree[T]{distance: distanceFn}
}

// Insert adds value to the tree. A value at distance 0 from an element
// already stored is absorbed without creating a node.
func (t *Tree[T]) Insert(value T) {
	t.inserts++

	if len(t.nodes) == 0 {
		t.nodes = append(t.nodes, node[T]{value: value, parent: -1})
		return
	}

	current := int32(0)
	for {
		n := &t.nodes[current]
		dist := t.distance(n.value, value)
		if dist == 0 {
			return
		}

		if child, exists := n.children[dist]; exists {
			current = child
			continue
		}

		if n.children == nil {
			n.children = make(map[int]int32)
		}
		n.children[dist] = int32(len(t.nodes))
		t.nodes = append(t.nodes, node[T]{value: value, parent: current, key: dist})
		return
	}
}

// InsertAll inserts each value in order.
func (t *Tree[T]) InsertAll(values ...T) {
	for _, v := range values {
		t.Insert(v)
	}
}

// Find returns every stored value within threshold of query. Values are
// ordered node first, then each child subtree in ascending distance key.
// A negative threshold matches nothing.
func (t *Tree[T]) Find(query T, threshold int) []T {
	matches := t.Search(query, threshold)
	if len(matches) == 0 {
		return nil
	}

	values := make([]T, len(matches))
	for i, m := range matches {
		values[i] = m.Value
	}
	return values
}

// Search is Find with the distance of every hit to the query attached.
func (t *Tree[T]) Search(query T, threshold int) []Match[T] {
	if len(t.nodes) == 0 || threshold < 0 {
		return nil
	}

	var (
		results []Match[T]
		keys    []int
		stack   = []int32{0}
	)

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[idx]
		dist := t.distance(n.value, query)
		if dist <= threshold {
			results = append(results, Match[T]{Value: n.value, Distance: dist})
		}
		if len(n.children) == 0 {
			continue
		}

		// Triangle inequality: only children keyed within
		// [dist - threshold, dist + threshold] can hold a match.
		lo := max(dist-threshold, 1)
		hi := dist + threshold
		if hi < dist {
			hi = math.MaxInt
		}

		// Push in descending key order so the smallest key is popped first.
		if hi-lo < len(n.children) {
			for d := hi; d >= lo; d-- {
				if child, ok := n.children[d]; ok {
					stack = append(stack, child)
				}
			}
			continue
		}

		keys = keys[:0]
		for d := range n.children {
			if d >= lo && d <= hi {
				keys = append(keys, d)
			}
		}
		slices.Sort(keys)
		for i := len(keys) - 1; i >= 0; i-- {
			stack = append(stack, n.children[keys[i]])
		}
	}

	return results
}

// Contains reports whether a value at distance 0 from value is stored.
func (t *Tree[T]) Contains(value T) bool {
	return len(t.Search(value, 0)) > 0
}

// Size returns the number of Insert calls made on the tree, duplicates
// included. Use Len for the number of distinct stored elements.
func (t *Tree[T]) Size() int {
	return t.inserts
}

// Len returns the number of nodes, which is the number of distinct elements.
func (t *Tree[T]) Len() int {
	return len(t.nodes)
}

// Depth returns the number of edges on the longest root-to-leaf path, or -1
// for an empty tree.
func (t *Tree[T]) Depth() int {
	if len(t.nodes) == 0 {
		return -1
	}

	// Parents always precede their children in the arena.
	depths := make([]int, len(t.nodes))
	deepest := 0
	for i := 1; i < len(t.nodes); i++ {
		depths[i] = depths[t.nodes[i].parent] + 1
		deepest = max(deepest, depths[i])
	}
	return deepest
}

// Root returns the root value, or false if the tree is empty.
func (t *Tree[T]) Root() (T, bool) {
	if len(t.nodes) == 0 {
		var zero T
		return zero, false
	}
	return t.nodes[0].value, true
}
