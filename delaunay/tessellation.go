// Package delaunay computes Delaunay tessellations of particle sets inside
// (optionally periodic) simulation cells.
//
// Periodic boundaries are handled by surrounding the wrapped particles with
// a layer of ghost images. Every tetrahedron that has a periodic copy in the
// tessellation is flagged primary exactly once so that sums over primary
// tetrahedra do not double count.
package delaunay

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/soypat/dxa/internal/d3"
	"github.com/soypat/dxa/simcell"
	"github.com/soypat/dxa/task"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrTooFewPoints   = errors.New("delaunay: tessellation needs at least four distinct points")
	ErrSelectionSize  = errors.New("delaunay: selection length does not match number of positions")
	ErrNegativeGhosts = errors.New("delaunay: negative ghost layer thickness")
)

var inf = math.Inf(1)

const (
	// duplicateTol is the distance below which two input points are merged.
	duplicateTol = 1e-8
	// jitterScale is the perturbation amplitude relative to the point set extent.
	jitterScale = 1e-7
	jitterSeed  = 1
)

// Tet is a tetrahedron of the tessellation. V holds vertex indices in
// positive orientation. N[i] is the tetrahedron sharing the face opposite
// V[i], or -1 on the convex hull.
type Tet struct {
	V [4]int
	N [4]int
}

// faceVerts lists for each vertex i the indices of the opposite face,
// ordered so that the face normal points out of the tetrahedron.
var faceVerts = [4][3]int{{1, 2, 3}, {0, 3, 2}, {0, 1, 3}, {0, 2, 1}}

// FaceVertices returns the local vertex indices of the face opposite local
// vertex i, counter-clockwise when viewed from outside the tetrahedron.
func FaceVertices(i int) [3]int { return faceVerts[i] }

// Tessellation is a Delaunay tessellation of the primary points of a cell and
// their periodic ghost images.
type Tessellation struct {
	cell       simcell.Cell
	pos        []r3.Vec // exact positions
	jit        []r3.Vec // perturbed positions fed to predicates
	particle   []int
	image      [][3]int
	numPrimary int
	tets       []Tet
	primary    []bool
}

type config struct {
	log *zap.Logger
}

// Option configures Generate.
type Option func(*config)

// WithLogger sets the logger used to report tessellation statistics.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// Generate tessellates the selected positions inside cell. Positions are
// wrapped into the cell along periodic directions and surrounded by ghost
// images up to ghostLayer away from the cell faces. A nil selection selects
// every position. A canceled task aborts the tessellation with the task error.
func Generate(positions []r3.Vec, selection []bool, cell simcell.Cell, ghostLayer float64, t *task.Task, opts ...Option) (*Tessellation, error) {
	cfg := config{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if selection != nil && len(selection) != len(positions) {
		return nil, ErrSelectionSize
	}
	if ghostLayer < 0 {
		return nil, ErrNegativeGhosts
	}
	tess := &Tessellation{cell: cell}
	var wrapped []r3.Vec
	var particles []int
	for i, p := range positions {
		if selection != nil && !selection[i] {
			continue
		}
		wrapped = append(wrapped, cell.WrapPoint(p))
		particles = append(particles, i)
	}
	dup := duplicates(wrapped, duplicateTol)
	ndup := 0
	for i, p := range wrapped {
		if dup[i] {
			ndup++
			continue
		}
		tess.pos = append(tess.pos, p)
		tess.particle = append(tess.particle, particles[i])
		tess.image = append(tess.image, [3]int{})
	}
	if ndup > 0 {
		cfg.log.Warn("dropped duplicate points", zap.Int("count", ndup))
	}
	tess.numPrimary = len(tess.pos)
	if tess.numPrimary < 4 {
		return nil, ErrTooFewPoints
	}
	tess.addGhosts(ghostLayer)

	jitter := perturbations(tess.pos[:tess.numPrimary])
	tess.jit = make([]r3.Vec, len(tess.pos))
	for v, p := range tess.pos {
		primary := v
		if v >= tess.numPrimary {
			primary = tess.primaryOf(v)
		}
		tess.jit[v] = r3.Add(p, jitter[primary])
	}

	b := newBuilder(tess.jit)
	if err := b.run(t); err != nil {
		return nil, err
	}
	tess.tets = b.result()
	tess.primary = make([]bool, len(tess.tets))
	nprimary := 0
	for c := range tess.tets {
		tess.primary[c] = tess.classifyPrimary(c)
		if tess.primary[c] {
			nprimary++
		}
	}
	cfg.log.Debug("tessellation generated",
		zap.Int("primaryPoints", tess.numPrimary),
		zap.Int("ghostPoints", len(tess.pos)-tess.numPrimary),
		zap.Int("tetrahedra", len(tess.tets)),
		zap.Int("primaryTetrahedra", nprimary),
	)
	return tess, nil
}

// addGhosts appends the periodic images of primary points that fall within
// the ghost layer around the cell.
func (tess *Tessellation) addGhosts(ghostLayer float64) {
	cell := tess.cell
	var lo, hi [3]int
	var g [3]float64
	for d := 0; d < 3; d++ {
		if cell.HasPBC(d) {
			lo[d], hi[d] = -1, 1
			g[d] = ghostLayer / cell.FaceDistance(d)
		}
	}
	for v := 0; v < tess.numPrimary; v++ {
		r := cell.AbsoluteToReduced(tess.pos[v])
		rc := [3]float64{r.X, r.Y, r.Z}
		for sx := lo[0]; sx <= hi[0]; sx++ {
			for sy := lo[1]; sy <= hi[1]; sy++ {
				for sz := lo[2]; sz <= hi[2]; sz++ {
					s := [3]int{sx, sy, sz}
					if s == ([3]int{}) || !inGhostLayer(rc, s, g) {
						continue
					}
					shift := cell.ReducedToAbsoluteVector(r3.Vec{X: float64(sx), Y: float64(sy), Z: float64(sz)})
					tess.pos = append(tess.pos, r3.Add(tess.pos[v], shift))
					tess.particle = append(tess.particle, tess.particle[v])
					tess.image = append(tess.image, s)
				}
			}
		}
	}
}

func inGhostLayer(r [3]float64, s [3]int, g [3]float64) bool {
	for d := 0; d < 3; d++ {
		switch s[d] {
		case 1:
			if r[d] > g[d] {
				return false
			}
		case -1:
			if r[d] < 1-g[d] {
				return false
			}
		}
	}
	return true
}

// PrimaryVertex returns the primary vertex v is an image of.
func (tess *Tessellation) PrimaryVertex(v int) int {
	if v < tess.numPrimary {
		return v
	}
	return tess.primaryOf(v)
}

// primaryOf finds the primary image of ghost v by binary search, primary
// vertices being stored in increasing particle order.
func (tess *Tessellation) primaryOf(v int) int {
	want := tess.particle[v]
	lo, hi := 0, tess.numPrimary
	for lo < hi {
		m := (lo + hi) / 2
		if tess.particle[m] < want {
			lo = m + 1
		} else {
			hi = m
		}
	}
	if lo == tess.numPrimary || tess.particle[lo] != want {
		panic(fmt.Sprintf("bug: ghost vertex %d has no primary image", v))
	}
	return lo
}

// perturbations returns a deterministic small displacement per point.
func perturbations(pts []r3.Vec) []r3.Vec {
	size := d3.Set(pts).Bounds().Size()
	amp := jitterScale * math.Max(size.X, math.Max(size.Y, size.Z))
	rng := rand.New(rand.NewSource(jitterSeed))
	out := make([]r3.Vec, len(pts))
	for i := range out {
		out[i] = r3.Vec{
			X: amp * (2*rng.Float64() - 1),
			Y: amp * (2*rng.Float64() - 1),
			Z: amp * (2*rng.Float64() - 1),
		}
	}
	return out
}

// classifyPrimary reports whether the vertex with the lowest (particle,
// image) key of tetrahedron c is a primary point. Exactly one periodic copy
// of every tetrahedron satisfies this.
func (tess *Tessellation) classifyPrimary(c int) bool {
	v := tess.tets[c].V
	head := v[0]
	for _, w := range v[1:] {
		if tess.vertexLess(w, head) {
			head = w
		}
	}
	return tess.image[head] == [3]int{}
}

func (tess *Tessellation) vertexLess(a, b int) bool {
	if tess.particle[a] != tess.particle[b] {
		return tess.particle[a] < tess.particle[b]
	}
	ia, ib := tess.image[a], tess.image[b]
	for d := 0; d < 3; d++ {
		if ia[d] != ib[d] {
			return ia[d] < ib[d]
		}
	}
	return false
}

// Cell returns the simulation cell the tessellation was generated in.
func (tess *Tessellation) Cell() simcell.Cell { return tess.cell }

// NumVertices returns the number of primary and ghost vertices.
func (tess *Tessellation) NumVertices() int { return len(tess.pos) }

// NumPrimaryVertices returns the number of vertices inside the cell.
func (tess *Tessellation) NumPrimaryVertices() int { return tess.numPrimary }

// Position returns the unperturbed position of vertex v.
func (tess *Tessellation) Position(v int) r3.Vec { return tess.pos[v] }

// Particle returns the input index of the particle vertex v is an image of.
func (tess *Tessellation) Particle(v int) int { return tess.particle[v] }

// Image returns the periodic image vertex v belongs to. Primary vertices
// have a zero image.
func (tess *Tessellation) Image(v int) [3]int { return tess.image[v] }

// IsGhostVertex reports whether v is a periodic image outside the cell.
func (tess *Tessellation) IsGhostVertex(v int) bool { return v >= tess.numPrimary }

// Tets returns the tetrahedra of the tessellation. The slice must not be modified.
func (tess *Tessellation) Tets() []Tet { return tess.tets }

// IsPrimaryTet reports whether tetrahedron c is the representative of its
// periodic copies.
func (tess *Tessellation) IsPrimaryTet(c int) bool { return tess.primary[c] }

// Volume returns the unsigned volume of tetrahedron c.
func (tess *Tessellation) Volume(c int) float64 {
	v := tess.tets[c].V
	return math.Abs(orient(tess.pos[v[0]], tess.pos[v[1]], tess.pos[v[2]], tess.pos[v[3]])) / 6
}

// Circumradius2 returns the squared circumsphere radius of tetrahedron c.
func (tess *Tessellation) Circumradius2(c int) float64 {
	v := tess.tets[c].V
	return circumradius2(tess.jit[v[0]], tess.jit[v[1]], tess.jit[v[2]], tess.jit[v[3]])
}

// AlphaTest reports whether tetrahedron c belongs to the alpha shape of
// squared probe radius alpha2.
func (tess *Tessellation) AlphaTest(c int, alpha2 float64) bool {
	return tess.Circumradius2(c) < alpha2
}

// FaceKey identifies a triangular face independently of which periodic copy
// it was reached through. Two faces have the same key iff they are translated
// copies of each other with the same vertex orientation.
type FaceKey struct {
	Particles [3]int
	Offsets   [2][3]int
}

// FaceKey returns the key of the face of tetrahedron c opposite local vertex f,
// oriented outward from c.
func (tess *Tessellation) FaceKey(c, f int) FaceKey {
	fv := faceVerts[f]
	tv := tess.tets[c].V
	return tess.VertexFaceKey(tv[fv[0]], tv[fv[1]], tv[fv[2]])
}

// VertexFaceKey returns the key of the oriented triangle (a,b,c).
func (tess *Tessellation) VertexFaceKey(a, b, c int) FaceKey {
	v := [3]int{a, b, c}
	head := 0
	for i := 1; i < 3; i++ {
		if tess.vertexLess(v[i], v[head]) {
			head = i
		}
	}
	v = [3]int{v[head], v[(head+1)%3], v[(head+2)%3]}
	var key FaceKey
	base := tess.image[v[0]]
	for i := range v {
		key.Particles[i] = tess.particle[v[i]]
	}
	for i := 1; i < 3; i++ {
		img := tess.image[v[i]]
		for d := 0; d < 3; d++ {
			key.Offsets[i-1][d] = img[d] - base[d]
		}
	}
	return key
}
