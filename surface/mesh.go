package surface

import (
	"fmt"

	"github.com/soypat/dxa/internal/d3"
	"github.com/soypat/dxa/render"
	"github.com/soypat/dxa/simcell"
	"gonum.org/v1/gonum/spatial/r3"
)

// Smoothing parameters of the Taubin lambda/mu scheme.
const (
	taubinKPB    = 0.1
	taubinLambda = 0.5
)

// Mesh is a closed triangle mesh embedded in a periodic cell. Half-edge
// 3*f+e runs from Faces[f][e] to Faces[f][(e+1)%3].
type Mesh struct {
	Vertices []r3.Vec
	// VertexParticle is the input particle each vertex was created for.
	VertexParticle []int
	Faces          [][3]int
	opposite       []int
	cell           simcell.Cell
}

// NewMesh creates a mesh from vertices and counter-clockwise faces and pairs
// its half-edges. Half-edges without partner are left open. Each particle
// index defaults to the vertex index.
func NewMesh(cell simcell.Cell, vertices []r3.Vec, faces [][3]int) (*Mesh, error) {
	m := &Mesh{
		Vertices:       vertices,
		VertexParticle: make([]int, len(vertices)),
		Faces:          faces,
		opposite:       make([]int, 3*len(faces)),
		cell:           cell,
	}
	for i := range m.VertexParticle {
		m.VertexParticle[i] = i
	}
	edges := make(map[[2]int]int, 3*len(faces))
	for h := range m.opposite {
		m.opposite[h] = -1
		from, to := m.Faces[h/3][h%3], m.Faces[h/3][(h%3+1)%3]
		if from < 0 || to < 0 || from >= len(vertices) || to >= len(vertices) {
			return nil, fmt.Errorf("%w: face %d references missing vertex", ErrMeshConstruction, h/3)
		}
		if _, dup := edges[[2]int{from, to}]; dup {
			return nil, fmt.Errorf("%w: edge %d-%d used twice", ErrMeshConstruction, from, to)
		}
		edges[[2]int{from, to}] = h
	}
	for h := range m.opposite {
		if o, ok := edges[[2]int{m.Dest(h), m.Origin(h)}]; ok {
			m.opposite[h] = o
		}
	}
	return m, nil
}

// Cell returns the simulation cell the mesh lives in.
func (m *Mesh) Cell() simcell.Cell { return m.cell }

// NumFaces returns the number of triangles.
func (m *Mesh) NumFaces() int { return len(m.Faces) }

// Opposite returns the half-edge running in the opposite direction of h
// in the adjacent face, or -1 if h lies on a hole.
func (m *Mesh) Opposite(h int) int { return m.opposite[h] }

// Origin returns the vertex half-edge h starts at.
func (m *Mesh) Origin(h int) int { return m.Faces[h/3][h%3] }

// Dest returns the vertex half-edge h points to.
func (m *Mesh) Dest(h int) int { return m.Faces[h/3][(h%3+1)%3] }

func prevEdge(h int) int { return 3*(h/3) + (h%3+2)%3 }

// IsClosed reports whether every half-edge has an opposite half-edge.
func (m *Mesh) IsClosed() bool {
	for h, o := range m.opposite {
		if o < 0 || m.opposite[o] != h {
			return false
		}
	}
	return true
}

// EulerCharacteristic returns V - E + F counting only referenced vertices.
// The mesh must be closed.
func (m *Mesh) EulerCharacteristic() int {
	used := make([]bool, len(m.Vertices))
	nv := 0
	for _, f := range m.Faces {
		for _, v := range f {
			if !used[v] {
				used[v] = true
				nv++
			}
		}
	}
	nf := len(m.Faces)
	return nv - 3*nf/2 + nf
}

// edgeVector returns the minimum image vector along half-edge h.
func (m *Mesh) edgeVector(from, to int) r3.Vec {
	return m.cell.WrapVector(r3.Sub(m.Vertices[to], m.Vertices[from]))
}

// Area returns the total area of the mesh.
func (m *Mesh) Area() float64 {
	var area float64
	for _, f := range m.Faces {
		e1 := m.edgeVector(f[0], f[1])
		e2 := m.edgeVector(f[0], f[2])
		area += r3.Norm(r3.Cross(e1, e2))
	}
	return area / 2
}

// MakeManifold duplicates every vertex whose incident faces form more than
// one fan, so that the neighbourhood of each vertex is a single disc. It
// returns the number of vertices added.
func (m *Mesh) MakeManifold() int {
	outgoing := make([][]int, len(m.Vertices))
	for h := range m.opposite {
		v := m.Origin(h)
		outgoing[v] = append(outgoing[v], h)
	}
	visited := make([]bool, len(m.opposite))
	added := 0
	for v, hs := range outgoing {
		fans := 0
		for _, h0 := range hs {
			if visited[h0] {
				continue
			}
			fans++
			target := v
			if fans > 1 {
				target = len(m.Vertices)
				m.Vertices = append(m.Vertices, m.Vertices[v])
				m.VertexParticle = append(m.VertexParticle, m.VertexParticle[v])
				added++
			}
			h := h0
			for {
				visited[h] = true
				m.Faces[h/3][h%3] = target
				h = m.opposite[prevEdge(h)]
				if h < 0 || h == h0 {
					break
				}
			}
		}
	}
	return added
}

// Smooth applies level iterations of Taubin lambda/mu smoothing to the
// vertex positions. Edge vectors use the minimum image convention and
// smoothed vertices are wrapped back into the cell.
func (m *Mesh) Smooth(level int) {
	if level <= 0 {
		return
	}
	mu := 1 / (taubinKPB - 1/taubinLambda)
	disp := make([]r3.Vec, len(m.Vertices))
	count := make([]int, len(m.Vertices))
	pass := func(prefactor float64) {
		for i := range disp {
			disp[i] = r3.Vec{}
			count[i] = 0
		}
		for h := range m.opposite {
			from, to := m.Origin(h), m.Dest(h)
			disp[from] = r3.Add(disp[from], m.edgeVector(from, to))
			count[from]++
		}
		for v := range m.Vertices {
			if count[v] == 0 {
				continue
			}
			m.Vertices[v] = r3.Add(m.Vertices[v], r3.Scale(prefactor/float64(count[v]), disp[v]))
		}
	}
	for i := 0; i < level; i++ {
		pass(taubinLambda)
		pass(mu)
	}
	for v := range m.Vertices {
		m.Vertices[v] = m.cell.WrapPoint(m.Vertices[v])
	}
}

// Triangles returns the mesh faces as triangles. Each triangle is unwrapped
// around its first vertex so faces crossing a periodic boundary stay intact.
func (m *Mesh) Triangles() []render.Triangle3 {
	out := make([]render.Triangle3, len(m.Faces))
	for i, f := range m.Faces {
		v0 := m.Vertices[f[0]]
		out[i].V = [3]r3.Vec{
			v0,
			r3.Add(v0, m.edgeVector(f[0], f[1])),
			r3.Add(v0, m.edgeVector(f[0], f[2])),
		}
	}
	return out
}

// Bounds returns the axis aligned bounding box of the mesh vertices.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	return r3.Box(d3.Set(m.Vertices).Bounds())
}
