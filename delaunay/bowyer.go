package delaunay

import (
	"math"
	"sort"

	"github.com/soypat/dxa/internal/d3"
	"github.com/soypat/dxa/task"
	"gonum.org/v1/gonum/spatial/r3"
)

// superScale sets the size of the enclosing tetrahedron relative to the
// radius of the point set.
const superScale = 1e4

type tet struct {
	v    [4]int
	n    [4]int
	dead bool
}

type boundaryFace struct {
	tet, face int
}

type edgeKey [2]int

type faceRef struct {
	tet, face int
}

// builder performs incremental Bowyer-Watson insertion. The four super
// vertices are stored after the input points.
type builder struct {
	pts    []r3.Vec
	npts   int
	tets   []tet
	free   []int
	mark   []int
	stamp  int
	last   int
	cavity []int
	bound  []boundaryFace
	links  map[edgeKey]faceRef
}

func newBuilder(pts []r3.Vec) *builder {
	b := &builder{npts: len(pts), links: make(map[edgeKey]faceRef)}
	bb := d3.Set(pts).Bounds()
	center := bb.Center()
	radius := 0.5*r3.Norm(bb.Size()) + 1
	s := superScale * radius
	b.pts = append(make([]r3.Vec, 0, len(pts)+4), pts...)
	b.pts = append(b.pts,
		r3.Add(center, r3.Vec{X: s, Y: s, Z: s}),
		r3.Add(center, r3.Vec{X: s, Y: -s, Z: -s}),
		r3.Add(center, r3.Vec{X: -s, Y: s, Z: -s}),
		r3.Add(center, r3.Vec{X: -s, Y: -s, Z: s}),
	)
	n := b.npts
	sv := [4]int{n, n + 1, n + 2, n + 3}
	if b.orient(sv) < 0 {
		sv[2], sv[3] = sv[3], sv[2]
	}
	b.tets = append(b.tets, tet{v: sv, n: [4]int{-1, -1, -1, -1}})
	b.mark = append(b.mark, 0)
	return b
}

func (b *builder) orient(v [4]int) float64 {
	return orient(b.pts[v[0]], b.pts[v[1]], b.pts[v[2]], b.pts[v[3]])
}

func (b *builder) inside(c int, p r3.Vec) bool {
	v := b.tets[c].v
	return insphere(b.pts[v[0]], b.pts[v[1]], b.pts[v[2]], b.pts[v[3]], p) > 0
}

// run inserts all points in spatially coherent order.
func (b *builder) run(t *task.Task) error {
	order := insertionOrder(b.pts[:b.npts])
	t.SetMaximum(len(order))
	for i, p := range order {
		if !t.SetValueIntermittent(i, 1024) {
			return t.Err()
		}
		b.insert(p)
	}
	if !t.SetValue(len(order)) {
		return t.Err()
	}
	return nil
}

func (b *builder) insert(p int) {
	pos := b.pts[p]
	seed := b.locate(pos)
	b.stamp++
	b.cavity = b.cavity[:0]
	b.mark[seed] = b.stamp
	b.cavity = append(b.cavity, seed)
	for k := 0; k < len(b.cavity); k++ {
		for _, nb := range b.tets[b.cavity[k]].n {
			if nb < 0 || b.mark[nb] == b.stamp || !b.inside(nb, pos) {
				continue
			}
			b.mark[nb] = b.stamp
			b.cavity = append(b.cavity, nb)
		}
	}
	b.collectBoundary(p, seed)

	clear(b.links)
	for _, bf := range b.bound {
		old := b.tets[bf.tet]
		v := old.v
		v[bf.face] = p
		nt := b.alloc(v)
		outside := old.n[bf.face]
		b.tets[nt].n[bf.face] = outside
		if outside >= 0 {
			on := &b.tets[outside].n
			for j := range on {
				if on[j] == bf.tet {
					on[j] = nt
				}
			}
		}
		for j := 0; j < 4; j++ {
			if j == bf.face {
				continue
			}
			key := b.edgeOf(v, bf.face, j)
			if other, ok := b.links[key]; ok {
				b.tets[nt].n[j] = other.tet
				b.tets[other.tet].n[other.face] = nt
				delete(b.links, key)
			} else {
				b.links[key] = faceRef{tet: nt, face: j}
			}
		}
		b.last = nt
	}
	for _, c := range b.cavity {
		if b.mark[c] == b.stamp {
			b.tets[c].dead = true
			b.free = append(b.free, c)
		}
	}
}

// collectBoundary gathers the faces separating the cavity from the rest of
// the tessellation. Cavity tetrahedra that would produce an inverted new
// tetrahedron are dropped from the cavity until it is star shaped around p.
func (b *builder) collectBoundary(p, seed int) {
	for {
		b.bound = b.bound[:0]
		bad := -1
		for _, c := range b.cavity {
			if b.mark[c] != b.stamp {
				continue
			}
			t := &b.tets[c]
			for i, nb := range t.n {
				if nb >= 0 && b.mark[nb] == b.stamp {
					continue
				}
				v := t.v
				v[i] = p
				if b.orient(v) <= 0 && c != seed {
					bad = c
					break
				}
				b.bound = append(b.bound, boundaryFace{tet: c, face: i})
			}
			if bad >= 0 {
				break
			}
		}
		if bad < 0 {
			return
		}
		b.mark[bad] = 0
	}
}

// edgeOf returns the key of the edge shared by the new faces opposite local
// vertices i and j of a tetrahedron with vertices v.
func (b *builder) edgeOf(v [4]int, i, j int) edgeKey {
	var e [2]int
	k := 0
	for m := 0; m < 4; m++ {
		if m != i && m != j {
			e[k] = v[m]
			k++
		}
	}
	if e[0] > e[1] {
		e[0], e[1] = e[1], e[0]
	}
	return e
}

func (b *builder) alloc(v [4]int) int {
	t := tet{v: v, n: [4]int{-1, -1, -1, -1}}
	if n := len(b.free); n > 0 {
		c := b.free[n-1]
		b.free = b.free[:n-1]
		b.tets[c] = t
		b.mark[c] = 0
		return c
	}
	b.tets = append(b.tets, t)
	b.mark = append(b.mark, 0)
	return len(b.tets) - 1
}

// locate returns a live tetrahedron whose circumsphere contains p.
func (b *builder) locate(p r3.Vec) int {
	c := b.last
	if b.tets[c].dead {
		c = b.anyLive()
	}
	maxSteps := 4*len(b.tets) + 16
walk:
	for step := 0; step < maxSteps; step++ {
		t := &b.tets[c]
		for k := 0; k < 4; k++ {
			i := (k + step) & 3
			v := t.v
			v[i] = -1
			if b.orientWith(v, p) < 0 && t.n[i] >= 0 {
				c = t.n[i]
				continue walk
			}
		}
		if b.inside(c, p) {
			return c
		}
		break
	}
	for c := range b.tets {
		if !b.tets[c].dead && b.inside(c, p) {
			return c
		}
	}
	panic("bug: point outside of enclosing tetrahedron")
}

// orientWith evaluates orient with the vertex marked -1 replaced by p.
func (b *builder) orientWith(v [4]int, p r3.Vec) float64 {
	var q [4]r3.Vec
	for i, w := range v {
		if w < 0 {
			q[i] = p
		} else {
			q[i] = b.pts[w]
		}
	}
	return orient(q[0], q[1], q[2], q[3])
}

func (b *builder) anyLive() int {
	for c := range b.tets {
		if !b.tets[c].dead {
			return c
		}
	}
	panic("bug: no live tetrahedra")
}

// result drops tetrahedra touching super vertices and compacts the rest.
func (b *builder) result() []Tet {
	remap := make([]int, len(b.tets))
	var out []Tet
	for c, t := range b.tets {
		remap[c] = -1
		if t.dead || t.v[0] >= b.npts || t.v[1] >= b.npts || t.v[2] >= b.npts || t.v[3] >= b.npts {
			continue
		}
		remap[c] = len(out)
		out = append(out, Tet{V: t.v, N: t.n})
	}
	for c := range out {
		for i, nb := range out[c].N {
			if nb >= 0 {
				out[c].N[i] = remap[nb]
			}
		}
	}
	return out
}

// insertionOrder sorts point indices along a serpentine walk of a coarse
// grid so that consecutive insertions are spatially close.
func insertionOrder(pts []r3.Vec) []int {
	bb := d3.Set(pts).Bounds()
	min := bb.Min
	res := int(math.Ceil(math.Cbrt(float64(len(pts)) / 8)))
	if res < 1 {
		res = 1
	}
	size := bb.Size()
	bin := func(x, lo, extent float64) int {
		if extent <= 0 {
			return 0
		}
		i := int(float64(res) * (x - lo) / extent)
		if i >= res {
			i = res - 1
		}
		return i
	}
	keys := make([]int, len(pts))
	for i, p := range pts {
		ix := bin(p.X, min.X, size.X)
		iy := bin(p.Y, min.Y, size.Y)
		iz := bin(p.Z, min.Z, size.Z)
		if ix%2 == 1 {
			iy = res - 1 - iy
		}
		if (ix*res+iy)%2 == 1 {
			iz = res - 1 - iz
		}
		keys[i] = (ix*res+iy)*res + iz
	}
	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return keys[order[a]] < keys[order[b]] })
	return order
}
