package folder

import "sort"

// Node is one folder in a Tree. Parent and Children are indexes into Tree.Nodes.
type Node struct {
	Path     string
	Name     string
	Depth    int
	Parent   int
	Children []int
	Direct   int // checks placed exactly here
	Total    int // checks here or anywhere below
	Declared bool
}

// Tree is rebuilt from scratch on every read. Nodes[0] is the synthetic top level with Path "".
type Tree struct {
	Nodes []Node
	index map[string]int
}

// BuildTree derives the hierarchy from the folders of all checks (one entry per check,
// "" for unfiled checks) plus the declared empty folders.
func BuildTree(checkFolders []string, declared []string) *Tree {
	t := &Tree{
		Nodes: []Node{{Path: "", Parent: -1}},
		index: map[string]int{"": 0},
	}
	for _, p := range declared {
		p = Normalize(p)
		if p == "" {
			continue
		}
		i := t.ensure(p)
		t.Nodes[i].Declared = true
	}
	for _, p := range checkFolders {
		i := t.ensure(Normalize(p))
		t.Nodes[i].Direct++
		for j := i; j >= 0; j = t.Nodes[j].Parent {
			t.Nodes[j].Total++
		}
	}
	for i := range t.Nodes {
		ch := t.Nodes[i].Children
		sort.Slice(ch, func(a, b int) bool { return t.Nodes[ch[a]].Path < t.Nodes[ch[b]].Path })
	}
	return t
}

func (t *Tree) ensure(path string) int {
	if i, ok := t.index[path]; ok {
		return i
	}
	parent := t.ensure(Parent(path))
	i := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Path:   path,
		Name:   Base(path),
		Depth:  Depth(path),
		Parent: parent,
	})
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, i)
	t.index[path] = i
	return i
}

func (t *Tree) Lookup(path string) (Node, bool) {
	i, ok := t.index[Normalize(path)]
	if !ok {
		return Node{}, false
	}
	return t.Nodes[i], true
}

// Paths returns every folder path in depth-first, name-sorted order.
func (t *Tree) Paths() []string {
	out := make([]string, 0, len(t.Nodes)-1)
	t.Walk(func(n Node) { out = append(out, n.Path) })
	return out
}

// Walk visits every folder below the top level depth first.
func (t *Tree) Walk(fn func(Node)) {
	var visit func(i int)
	visit = func(i int) {
		for _, c := range t.Nodes[i].Children {
			fn(t.Nodes[c])
			visit(c)
		}
	}
	visit(0)
}
