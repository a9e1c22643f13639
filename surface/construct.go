// Package surface constructs the geometric surface of a solid from its
// constituent particles using the alpha-shape method.
//
// The selected particles are tessellated, every tetrahedron whose
// circumsphere is smaller than the probe sphere is classified solid and the
// interface between solid and void tetrahedra is extracted as a closed
// two-manifold triangle mesh.
package surface

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/dxa/delaunay"
	"github.com/soypat/dxa/simcell"
	"github.com/soypat/dxa/task"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// ghostLayerScale is the thickness of the periodic ghost layer in units of
// the probe sphere radius.
const ghostLayerScale = 3

// maxCirculation bounds the number of tetrahedra visited around one edge.
const maxCirculation = 1 << 12

// Params controls surface construction.
type Params struct {
	// Radius of the probe sphere. Tetrahedra with a smaller circumsphere are solid.
	Radius float64
	// SmoothingLevel is the number of Taubin smoothing iterations applied to the mesh.
	SmoothingLevel int
	// SelectSurfaceParticles requests Result.SurfaceParticles.
	SelectSurfaceParticles bool
}

// Result holds the output of Construct.
type Result struct {
	Mesh *Mesh
	// SolidVolume is the total volume of the solid region.
	SolidVolume float64
	// SurfaceArea is the area of the smoothed mesh.
	SurfaceArea float64
	// SurfaceParticles flags input particles at a mesh vertex.
	// It is nil unless Params.SelectSurfaceParticles is set.
	SurfaceParticles []bool
	// DuplicatedVertices counts vertices added to make the mesh manifold.
	DuplicatedVertices int
}

type config struct {
	log *zap.Logger
}

// Option configures Construct.
type Option func(*config)

// WithLogger sets the logger used to report construction statistics.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// Construct builds the surface mesh of the selected particles in cell.
// A nil selection selects all particles. Progress is reported through t
// as five weighted sub-steps; a canceled t aborts with ErrCanceled.
func Construct(positions []r3.Vec, cell simcell.Cell, selection []bool, p Params, t *task.Task, opts ...Option) (*Result, error) {
	cfg := config{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validate(positions, cell, selection, p); err != nil {
		return nil, err
	}
	t.BeginSubSteps(10, 30, 2, 2, 2)
	defer t.EndSubSteps()

	tess, err := delaunay.Generate(positions, selection, cell, ghostLayerScale*p.Radius, t, delaunay.WithLogger(cfg.log))
	switch {
	case errors.Is(err, delaunay.ErrTooFewPoints):
		return nil, fmt.Errorf("%w: %w", ErrTooFewPoints, err)
	case err != nil && t.Canceled():
		return nil, canceled(t)
	case err != nil:
		return nil, err
	}

	t.NextSubStep()
	b := newBuilder(tess, p.Radius)
	if err := b.classify(t); err != nil {
		return nil, err
	}
	if err := b.createFacets(t); err != nil {
		return nil, err
	}
	if err := b.link(); err != nil {
		return nil, err
	}
	res := &Result{Mesh: b.mesh, SolidVolume: b.volume}
	if p.SelectSurfaceParticles {
		res.SurfaceParticles = make([]bool, len(positions))
		for _, f := range b.mesh.Faces {
			for _, v := range f {
				res.SurfaceParticles[b.mesh.VertexParticle[v]] = true
			}
		}
	}

	t.NextSubStep()
	res.DuplicatedVertices = b.mesh.MakeManifold()
	if !t.SetValue(0) {
		return nil, canceled(t)
	}

	t.NextSubStep()
	b.mesh.Smooth(p.SmoothingLevel)
	if !t.SetValue(0) {
		return nil, canceled(t)
	}

	t.NextSubStep()
	res.SurfaceArea = b.mesh.Area()
	if !t.SetValue(0) {
		return nil, canceled(t)
	}
	cfg.log.Debug("surface constructed",
		zap.Int("faces", len(b.mesh.Faces)),
		zap.Int("vertices", len(b.mesh.Vertices)),
		zap.Int("duplicatedVertices", res.DuplicatedVertices),
		zap.Float64("solidVolume", res.SolidVolume),
		zap.Float64("surfaceArea", res.SurfaceArea),
	)
	return res, nil
}

func canceled(t *task.Task) error {
	return fmt.Errorf("%w: %w", ErrCanceled, t.Err())
}

func validate(positions []r3.Vec, cell simcell.Cell, selection []bool, p Params) error {
	if !(p.Radius > 0) {
		return ErrInvalidRadius
	}
	if cell.IsDegenerate() {
		return ErrDegenerateCell
	}
	ghost := ghostLayerScale * p.Radius
	for d := 0; d < 3; d++ {
		if cell.HasPBC(d) && int(math.Ceil(ghost/cell.FaceDistance(d))) > 1 {
			return fmt.Errorf("%w: ghost layer %g exceeds cell width %g along axis %d", ErrCellTooSmall, ghost, cell.FaceDistance(d), d)
		}
	}
	if selection != nil && len(selection) != len(positions) {
		return ErrSelectionSize
	}
	n := len(positions)
	if selection != nil {
		n = 0
		for _, s := range selection {
			if s {
				n++
			}
		}
	}
	if n < 4 {
		return ErrTooFewPoints
	}
	return nil
}

// facetRef identifies the face of tetrahedron tet opposite local vertex face.
type facetRef struct {
	tet, face int
}

type builder struct {
	tess   *delaunay.Tessellation
	alpha2 float64
	solid  []bool
	volume float64
	mesh   *Mesh
	facets []facetRef
	lookup map[delaunay.FaceKey]int
	vertex map[int]int // particle to mesh vertex
}

func newBuilder(tess *delaunay.Tessellation, radius float64) *builder {
	return &builder{
		tess:   tess,
		alpha2: radius * radius,
		mesh:   &Mesh{cell: tess.Cell()},
		lookup: make(map[delaunay.FaceKey]int),
		vertex: make(map[int]int),
	}
}

// classify flags solid tetrahedra and sums the volume of the primary ones.
func (b *builder) classify(t *task.Task) error {
	tets := b.tess.Tets()
	b.solid = make([]bool, len(tets))
	t.SetMaximum(2 * len(tets))
	for c := range tets {
		if !t.SetValueIntermittent(c, 1<<14) {
			return canceled(t)
		}
		b.solid[c] = b.tess.AlphaTest(c, b.alpha2)
		if b.solid[c] && b.tess.IsPrimaryTet(c) {
			b.volume += b.tess.Volume(c)
		}
	}
	return nil
}

func (b *builder) isSolid(c int) bool { return c >= 0 && b.solid[c] }

// createFacets adds one outward oriented triangle per face separating a
// primary solid tetrahedron from void or the outside.
func (b *builder) createFacets(t *task.Task) error {
	tets := b.tess.Tets()
	for c, tt := range tets {
		if !t.SetValueIntermittent(len(tets)+c, 1<<14) {
			return canceled(t)
		}
		if !b.solid[c] || !b.tess.IsPrimaryTet(c) {
			continue
		}
		for f, nb := range tt.N {
			if b.isSolid(nb) {
				continue
			}
			var face [3]int
			for i, lv := range delaunay.FaceVertices(f) {
				face[i] = b.meshVertex(tt.V[lv])
			}
			b.lookup[b.tess.FaceKey(c, f)] = len(b.mesh.Faces)
			b.mesh.Faces = append(b.mesh.Faces, face)
			b.facets = append(b.facets, facetRef{tet: c, face: f})
		}
	}
	return nil
}

func (b *builder) meshVertex(v int) int {
	particle := b.tess.Particle(v)
	if idx, ok := b.vertex[particle]; ok {
		return idx
	}
	idx := len(b.mesh.Vertices)
	b.vertex[particle] = idx
	b.mesh.Vertices = append(b.mesh.Vertices, b.tess.Position(b.tess.PrimaryVertex(v)))
	b.mesh.VertexParticle = append(b.mesh.VertexParticle, particle)
	return idx
}

// link pairs every half-edge with the half-edge of the adjacent facet
// reached by rotating around the tessellation edge through solid tetrahedra.
func (b *builder) link() error {
	b.mesh.opposite = make([]int, 3*len(b.mesh.Faces))
	tets := b.tess.Tets()
	for fi, ref := range b.facets {
		tv := tets[ref.tet].V
		lv := delaunay.FaceVertices(ref.face)
		for e := 0; e < 3; e++ {
			u, v, w := tv[lv[e]], tv[lv[(e+1)%3]], tv[lv[(e+2)%3]]
			adj, err := b.adjacentFacet(ref.tet, u, v, w, tv[ref.face])
			if err != nil {
				return err
			}
			opp := -1
			pu, pv := b.tess.Particle(u), b.tess.Particle(v)
			face := b.mesh.Faces[adj]
			for e2 := 0; e2 < 3; e2++ {
				if b.mesh.VertexParticle[face[e2]] == pv && b.mesh.VertexParticle[face[(e2+1)%3]] == pu {
					opp = 3*adj + e2
					break
				}
			}
			if opp < 0 {
				return fmt.Errorf("%w: adjacent facet %d lacks edge %d-%d", ErrMeshConstruction, adj, pv, pu)
			}
			b.mesh.opposite[3*fi+e] = opp
		}
	}
	for h, o := range b.mesh.opposite {
		if b.mesh.opposite[o] != h {
			return fmt.Errorf("%w: inconsistent half-edge pairing at %d", ErrMeshConstruction, h)
		}
	}
	return nil
}

// adjacentFacet returns the facet sharing edge (u,v) with the facet of cell c
// whose third vertex is w. x is the vertex of c opposite that facet.
func (b *builder) adjacentFacet(c, u, v, w, x int) (int, error) {
	tets := b.tess.Tets()
	p, q := w, x
	for i := 0; i < maxCirculation; i++ {
		ip := localIndex(tets[c].V, p)
		nb := tets[c].N[ip]
		if !b.isSolid(nb) {
			key := b.tess.FaceKey(c, ip)
			adj, ok := b.lookup[key]
			if !ok {
				return -1, fmt.Errorf("%w: no primary facet for face %v", ErrMeshConstruction, key.Particles)
			}
			return adj, nil
		}
		c = nb
		p, q = q, -1
		for _, y := range tets[c].V {
			if y != u && y != v && y != p {
				q = y
				break
			}
		}
	}
	return -1, fmt.Errorf("%w: edge circulation did not terminate", ErrMeshConstruction)
}

func localIndex(v [4]int, x int) int {
	for i, y := range v {
		if y == x {
			return i
		}
	}
	panic(fmt.Sprintf("bug: vertex %d not in tetrahedron %v", x, v))
}
