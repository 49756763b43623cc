// Package octree implements an octree color quantizer: an 8-ary tree over
// the RGB cube that accumulates weighted colors, collapses its lightest
// subtrees until at most a given number of leaves remain, and maps colors to
// the resulting palette.
//
// Nodes live in an arena and refer to each other by index. Every internal
// node above the reduction level is also registered in the reclaim list of
// its level, which is where Reduce looks for the next subtree to collapse.
package octree

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/Raimguzhinov/imgquant/pixbuf"
)

// NumLevels is the depth of the tree: one level per bit of an 8-bit channel.
const NumLevels = 8

const root = 0

type node struct {
	level   int
	r, g, b int64
	nref    int64
	palIdx  int
	leaf    bool
	sub     [8]int32 // arena indices, 0 means empty; the root is never a child
}

// Tree is an octree color quantizer. It is not safe for concurrent use.
type Tree struct {
	nodes []node
	free  []int32

	// redlist holds, per level, the internal nodes that can still be
	// collapsed, in insertion order.
	redlist [NumLevels][]int32
	redlev  int

	nleaves   int
	maxColors int
}

// New returns an empty tree that will hold at most maxColors leaves once
// the caller reduces it after each insertion.
func New(maxColors int) *Tree {
	t := &Tree{
		nodes:     make([]node, 0, 64),
		redlev:    NumLevels - 1,
		maxColors: maxColors,
	}
	t.alloc(0)
	return t
}

// Leaves returns the current number of leaf nodes.
func (t *Tree) Leaves() int { return t.nleaves }

// MaxColors returns the palette size the tree was created for.
func (t *Tree) MaxColors() int { return t.maxColors }

// alloc creates a node at the given level. Nodes below the current
// reduction level become leaves right away.
func (t *Tree) alloc(level int) int32 {
	n := node{level: level, palIdx: -1}
	if level >= t.redlev {
		n.leaf = true
		t.nleaves++
	}

	var id int32
	if k := len(t.free); k > 0 {
		id = t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
	} else {
		if len(t.nodes) >= math.MaxInt32 {
			panic("octree: node arena exhausted")
		}
		id = int32(len(t.nodes))
		t.nodes = append(t.nodes, n)
	}

	if !n.leaf {
		t.redlist[level] = append(t.redlist[level], id)
	}
	return id
}

// release frees a node and its subtree, unregistering each from its reclaim
// list and the leaf count.
func (t *Tree) release(id int32) {
	n := &t.nodes[id]
	for _, c := range n.sub {
		if c != 0 {
			t.release(c)
		}
	}
	n = &t.nodes[id]
	if l := t.redlist[n.level]; len(l) > 0 {
		if i := slices.Index(l, id); i >= 0 {
			t.redlist[n.level] = slices.Delete(l, i, i+1)
		}
	}
	if n.leaf {
		t.nleaves--
		if t.nleaves < 0 {
			panic("octree: negative leaf count")
		}
	}
	*n = node{}
	t.free = append(t.free, id)
}

// childIndex interleaves bit (7-level) of each channel: red in bit 0, green
// in bit 1, blue in bit 2.
func childIndex(level int, r, g, b byte) int {
	if level < 0 || level >= NumLevels {
		panic(fmt.Sprintf("octree: level %d out of range", level))
	}
	shift := NumLevels - 1 - level
	return int(r>>shift&1) | int(g>>shift&1)<<1 | int(b>>shift&1)<<2
}

// Add inserts a color with the given weight, creating nodes along its path
// down to the first leaf. Every visited node, the root included, accumulates
// the weighted color.
func (t *Tree) Add(c pixbuf.ColorRGB, weight int) {
	w := int64(weight)
	rr, gg, bb := int64(c.R)*w, int64(c.G)*w, int64(c.B)*w

	id := int32(root)
	t.accumulate(id, rr, gg, bb, w)

	for level := 0; level < NumLevels; level++ {
		if t.nodes[id].leaf {
			break
		}
		idx := childIndex(level, c.R, c.G, c.B)
		next := t.nodes[id].sub[idx]
		if next == 0 {
			next = t.alloc(level + 1)
			t.nodes[id].sub[idx] = next
		}
		id = next
		t.accumulate(id, rr, gg, bb, w)
	}
}

func (t *Tree) accumulate(id int32, r, g, b, w int64) {
	n := &t.nodes[id]
	n.r += r
	n.g += g
	n.b += b
	n.nref += w
}

// reducible removes and returns the lightest node of the deepest non-empty
// reclaim list. Among equally light nodes the most recently registered one
// wins. Exhausted levels are dropped for good.
func (t *Tree) reducible() (int32, bool) {
	for t.redlev >= 0 {
		l := t.redlist[t.redlev]
		best := -1
		var bestRef int64 = math.MaxInt64
		for i := len(l) - 1; i >= 0; i-- {
			if ref := t.nodes[l[i]].nref; ref < bestRef {
				best, bestRef = i, ref
			}
		}
		if best >= 0 {
			id := l[best]
			t.redlist[t.redlev] = slices.Delete(l, best, best+1)
			return id, true
		}
		t.redlev--
	}
	return 0, false
}

// Reduce collapses one subtree into its parent, which becomes a leaf. It
// reports false when no node is left to collapse; the tree is unchanged in
// that case.
func (t *Tree) Reduce() bool {
	id, ok := t.reducible()
	if !ok {
		return false
	}
	for i, c := range t.nodes[id].sub {
		if c != 0 {
			t.release(c)
			t.nodes[id].sub[i] = 0
		}
	}
	t.nodes[id].leaf = true
	t.nleaves++
	return true
}

// ReduceTo collapses subtrees until at most n leaves remain. It returns
// false if the tree ran out of reducible nodes first.
func (t *Tree) ReduceTo(n int) bool {
	for t.nleaves > n {
		if !t.Reduce() {
			return false
		}
	}
	return true
}

// AssignPalette numbers the leaves depth first, children in slot order, and
// returns their mean colors in palette order.
func (t *Tree) AssignPalette() []pixbuf.ColorRGB {
	pal := make([]pixbuf.ColorRGB, 0, t.nleaves)
	return t.assign(root, pal)
}

func (t *Tree) assign(id int32, pal []pixbuf.ColorRGB) []pixbuf.ColorRGB {
	n := &t.nodes[id]
	if n.leaf {
		if len(pal) >= t.maxColors {
			panic(fmt.Sprintf("octree: more than %d leaves at palette assignment", t.maxColors))
		}
		if n.nref == 0 {
			panic("octree: zero-weight leaf at palette assignment")
		}
		n.palIdx = len(pal)
		return append(pal, n.mean())
	}
	for _, c := range n.sub {
		if c != 0 {
			pal = t.assign(c, pal)
		}
	}
	return pal
}

func (n *node) mean() pixbuf.ColorRGB {
	return pixbuf.ColorRGB{
		R: byte(n.r / n.nref),
		G: byte(n.g / n.nref),
		B: byte(n.b / n.nref),
	}
}

// Lookup returns the palette index for c. Where the path of c leaves the
// tree, the next populated child slot (wrapping around) is taken instead.
// This approximates a nearest color search; it is not an exact one.
// AssignPalette must have been called first.
func (t *Tree) Lookup(c pixbuf.ColorRGB) int {
	id := int32(root)
	for level := 0; level < NumLevels; level++ {
		n := &t.nodes[id]
		if n.leaf {
			if n.palIdx < 0 {
				panic(fmt.Sprintf("octree: lookup(%d, %d, %d) hit an unassigned leaf", c.R, c.G, c.B))
			}
			return n.palIdx
		}

		idx := childIndex(level, c.R, c.G, c.B)
		for j := 0; j < 8 && n.sub[idx] == 0; j++ {
			idx = (idx + 1) & 7
		}
		if n.sub[idx] == 0 {
			panic(fmt.Sprintf("octree: lookup(%d, %d, %d) reached a childless internal node", c.R, c.G, c.B))
		}
		id = n.sub[idx]
	}
	panic(fmt.Sprintf("octree: lookup(%d, %d, %d) failed", c.R, c.G, c.B))
}

// Dump writes an indented listing of the tree for debugging.
func (t *Tree) Dump(w io.Writer) error {
	return t.dump(w, root, 0)
}

func (t *Tree) dump(w io.Writer, id int32, depth int) error {
	n := &t.nodes[id]
	var sb strings.Builder
	sb.WriteString(strings.Repeat("|  ", depth))
	if n.nref > 0 {
		m := n.mean()
		fmt.Fprintf(&sb, "+-(%d) #%d: <%d %d %d> #%d", n.level, id, m.R, m.G, m.B, n.nref)
	} else {
		fmt.Fprintf(&sb, "+-(%d) #%d: <- - -> #0", n.level, id)
	}
	if n.palIdx >= 0 {
		fmt.Fprintf(&sb, " [%d]", n.palIdx)
	}
	if n.leaf {
		sb.WriteString(" LEAF")
	}
	sb.WriteByte('\n')
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	for _, c := range n.sub {
		if c != 0 {
			if err := t.dump(w, c, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
