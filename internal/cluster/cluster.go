package cluster

import (
	"slices"

	"bkdict/internal/bktree"
)

// Group is a set of stored values that are linked by chains of matches
// within the clustering threshold
type Group struct {
	ID      int      `json:"id"`
	Members []string `json:"members"`
}

// Clusterer groups near-duplicate entries of a tree
type Clusterer struct {
	threshold int
}

// NewClusterer creates a new Clusterer
func NewClusterer(threshold int) *Clusterer {
	if threshold < 1 {
		threshold = 1 // Default threshold
	}
	return &Clusterer{threshold: threshold}
}

// FindGroups returns every group of two or more stored values in which each
// member is within the threshold of at least one other member. Groups are
// ordered by size, largest first, then by their smallest member; members
// are sorted.
func (c *Clusterer) FindGroups(tree *bktree.Tree[string]) []*Group {
	n := tree.Len()
	if n < 2 {
		return nil
	}

	values := make([]string, 0, n)
	index := make(map[string]int, n)
	tree.Walk(func(node bktree.NodeInfo[string]) error {
		index[node.Value] = node.Index
		values = append(values, node.Value)
		return nil
	})

	uf := newUnionFind(n)
	for i, v := range values {
		for _, neighbor := range tree.Find(v, c.threshold) {
			if j, ok := index[neighbor]; ok && j != i {
				uf.union(i, j)
			}
		}
	}

	// Collect groups
	groupMap := make(map[int][]string)
	for i, v := range values {
		root := uf.find(i)
		groupMap[root] = append(groupMap[root], v)
	}

	var groups []*Group
	for _, members := range groupMap {
		if len(members) < 2 {
			continue
		}
		slices.Sort(members)
		groups = append(groups, &Group{Members: members})
	}

	slices.SortFunc(groups, func(a, b *Group) int {
		if len(a.Members) != len(b.Members) {
			return len(b.Members) - len(a.Members)
		}
		if a.Members[0] < b.Members[0] {
			return -1
		}
		if a.Members[0] > b.Members[0] {
			return 1
		}
		return 0
	})
	for i, g := range groups {
		g.ID = i + 1
	}

	return groups
}

// GetThreshold returns the current threshold
func (c *Clusterer) GetThreshold() int {
	return c.threshold
}

// Union-Find data structure for efficient grouping
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	rank := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent, rank: rank}
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // Path halving
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y int) {
	px, py := uf.find(x), uf.find(y)
	if px == py {
		return
	}
	// Union by rank
	if uf.rank[px] < uf.rank[py] {
		px, py = py, px
	}
	uf.parent[py] = px
	if uf.rank[px] == uf.rank[py] {
		uf.rank[px]++
	}
}
