package bktree

import (
	"errors"
	"fmt"
	"slices"
)

// ErrCorruptSnapshot is returned by Restore when a snapshot does not describe
// a well-formed tree.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// NodeInfo describes one node of a tree.
type NodeInfo[T any] struct {
	Index    int // position in insertion order
	Parent   int // -1 for the root
	Distance int // key under Parent, 0 for the root
	Value    T
}

// Snapshot is the complete state of a tree as a flat list of nodes in which
// every parent precedes its children.
type Snapshot[T any] struct {
	Inserts int
	Nodes   []NodeInfo[T]
}

func (t *Tree[T]) info(i int) NodeInfo[T] {
	n := &t.nodes[i]
	return NodeInfo[T]{
		Index:    i,
		Parent:   int(n.parent),
		Distance: n.key,
		Value:    n.value,
	}
}

// Walk calls fn for every node, parents before children, stopping at the
// first error.
func (t *Tree[T]) Walk(fn func(NodeInfo[T]) error) error {
	for i := range t.nodes {
		if err := fn(t.info(i)); err != nil {
			return err
		}
	}
	return nil
}

// Children returns the direct children of the node at index, ordered by
// distance key. It returns nil for a leaf or an out-of-range index.
func (t *Tree[T]) Children(index int) []NodeInfo[T] {
	if index < 0 || index >= len(t.nodes) {
		return nil
	}

	n := &t.nodes[index]
	if len(n.children) == 0 {
		return nil
	}

	out := make([]NodeInfo[T], 0, len(n.children))
	for _, child := range n.children {
		out = append(out, t.info(int(child)))
	}
	slices.SortFunc(out, func(a, b NodeInfo[T]) int { return a.Distance - b.Distance })
	return out
}

// Export captures the tree so it can be rebuilt with Restore.
func (t *Tree[T]) Export() Snapshot[T] {
	snap := Snapshot[T]{
		Inserts: t.inserts,
		Nodes:   make([]NodeInfo[T], len(t.nodes)),
	}
	for i := range t.nodes {
		snap.Nodes[i] = t.info(i)
	}
	return snap
}

// Restore rebuilds a tree from a snapshot. Distance keys are taken verbatim
// from the snapshot, so distanceFn is not called; use Verify to check that the
// keys agree with the metric.
func Restore[T any](distanceFn func(a, b T) int, snap Snapshot[T]) (*Tree[T], error) {
	if snap.Inserts < len(snap.Nodes) {
		return nil, fmt.Errorf("%w: %d inserts cannot produce %d nodes",
			ErrCorruptSnapshot, snap.Inserts, len(snap.Nodes))
	}

	t := &Tree[T]{
		distance: distanceFn,
		inserts:  snap.Inserts,
		nodes:    make([]node[T], len(snap.Nodes)),
	}

	for i, info := range snap.Nodes {
		if info.Index != i {
			return nil, fmt.Errorf("%w: node at position %d has index %d", ErrCorruptSnapshot, i, info.Index)
		}

		if i == 0 {
			if info.Parent != -1 {
				return nil, fmt.Errorf("%w: root has parent %d", ErrCorruptSnapshot, info.Parent)
			}
			t.nodes[0] = node[T]{value: info.Value, parent: -1}
			continue
		}

		if info.Parent < 0 || info.Parent >= i {
			return nil, fmt.Errorf("%w: node %d has parent %d", ErrCorruptSnapshot, i, info.Parent)
		}
		if info.Distance <= 0 {
			return nil, fmt.Errorf("%w: node %d has distance key %d", ErrCorruptSnapshot, i, info.Distance)
		}

		parent := &t.nodes[info.Parent]
		if _, taken := parent.children[info.Distance]; taken {
			return nil, fmt.Errorf("%w: node %d has two children at distance %d",
				ErrCorruptSnapshot, info.Parent, info.Distance)
		}
		if parent.children == nil {
			parent.children = make(map[int]int32)
		}
		parent.children[info.Distance] = int32(i)

		t.nodes[i] = node[T]{value: info.Value, parent: int32(info.Parent), key: info.Distance}
	}

	return t, nil
}

// Verify recomputes the distance from every node to its parent and reports
// the first node whose stored key disagrees.
func (t *Tree[T]) Verify() error {
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		if d := t.distance(t.nodes[n.parent].value, n.value); d != n.key {
			return fmt.Errorf("%w: node %d stored under key %d but is at distance %d from its parent", ErrCorruptSnapshot, i, n.key, d)
		}
	}
	return nil
}
