// Command dxa runs the surface construction and dislocation line
// post-processing pipelines on synthetic crystals and reports the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"

	"github.com/soypat/dxa/cluster"
	"github.com/soypat/dxa/dislocation"
	"github.com/soypat/dxa/internal/config"
	"github.com/soypat/dxa/render"
	"github.com/soypat/dxa/simcell"
	"github.com/soypat/dxa/surface"
	"github.com/soypat/dxa/task"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// fccLatticeConstant is the lattice constant of the demo crystal (aluminium).
const fccLatticeConstant = 4.05

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	radius := flag.Float64("radius", 0, "probe sphere radius, overrides config")
	stl := flag.String("stl", "", "surface STL file name, overrides config")
	cells := flag.Int("cells", 8, "FCC unit cells per axis of the demo crystal")
	voidFrac := flag.Float64("void", 0.3, "radius of the spherical void relative to the crystal size")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFromPath(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *radius > 0 {
		cfg.Surface.ProbeRadius = *radius
	}
	if *stl != "" {
		cfg.Output.STL = *stl
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runSurface(ctx, log, cfg, *cells, *voidFrac); err != nil {
		log.Fatal("surface construction failed", zap.Error(err))
	}
	if err := runNetwork(ctx, log, cfg); err != nil {
		log.Fatal("line post-processing failed", zap.Error(err))
	}
}

func progressTask(ctx context.Context, log *zap.Logger, stage string) *task.Task {
	next := 0.1
	return task.New(ctx, task.WithProgress(func(f float64) {
		if f >= next {
			log.Debug("progress", zap.String("stage", stage), zap.Float64("fraction", f))
			next = math.Floor(f*10)/10 + 0.1
		}
	}))
}

// fccCrystal returns the atoms of a cubic FCC crystal with n unit cells per
// axis and its periodic cell. Atoms closer than voidRadius to the center are omitted.
func fccCrystal(n int, voidRadius float64) ([]r3.Vec, simcell.Cell) {
	a := fccLatticeConstant
	size := a * float64(n)
	center := r3.Vec{X: size / 2, Y: size / 2, Z: size / 2}
	basis := []r3.Vec{{}, {X: 0.5, Y: 0.5}, {X: 0.5, Z: 0.5}, {Y: 0.5, Z: 0.5}}
	var atoms []r3.Vec
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				for _, b := range basis {
					p := r3.Scale(a, r3.Add(r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)}, b))
					if r3.Norm(r3.Sub(p, center)) < voidRadius {
						continue
					}
					atoms = append(atoms, p)
				}
			}
		}
	}
	cell := simcell.Orthorhombic(r3.Vec{X: size, Y: size, Z: size}, [3]bool{true, true, true})
	return atoms, cell
}

func runSurface(ctx context.Context, log *zap.Logger, cfg *config.Config, cells int, voidFrac float64) error {
	atoms, cell := fccCrystal(cells, voidFrac*fccLatticeConstant*float64(cells))
	log.Info("constructing surface", zap.Int("atoms", len(atoms)), zap.Float64("cellVolume", cell.Volume()))
	params := surface.Params{
		Radius:                 cfg.Surface.ProbeRadius,
		SmoothingLevel:         cfg.Surface.SmoothingLevel,
		SelectSurfaceParticles: cfg.Surface.SelectSurfaceParticles,
	}
	res, err := surface.Construct(atoms, cell, nil, params, progressTask(ctx, log, "surface"), surface.WithLogger(log))
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.Int("faces", res.Mesh.NumFaces()),
		zap.Float64("solidVolume", res.SolidVolume),
		zap.Float64("voidVolume", cell.Volume()-res.SolidVolume),
		zap.Float64("surfaceArea", res.SurfaceArea),
		zap.Int("duplicatedVertices", res.DuplicatedVertices),
	}
	if res.SurfaceParticles != nil {
		n := 0
		for _, s := range res.SurfaceParticles {
			if s {
				n++
			}
		}
		fields = append(fields, zap.Int("surfaceAtoms", n))
	}
	log.Info("surface constructed", fields...)

	if path := cfg.STLPath(); path != "" && res.Mesh.NumFaces() > 0 {
		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return err
		}
		if err := render.CreateSTL(path, res.Mesh.Triangles()); err != nil {
			return fmt.Errorf("write STL: %w", err)
		}
		log.Info("wrote surface mesh", zap.String("path", path))
	}
	return nil
}

// noisyLoop returns the edge graph of a closed prismatic loop with jittered
// vertices, centred on a corner of cell so that it crosses the periodic boundaries.
func noisyLoop(cell simcell.Cell, radius float64, n int, rng *rand.Rand) dislocation.EdgeGraph {
	var g dislocation.EdgeGraph
	burgers := r3.Vec{X: fccLatticeConstant / 2, Y: fccLatticeConstant / 2}
	for i := 0; i < n; i++ {
		phi := 2 * math.Pi * float64(i) / float64(n)
		p := r3.Vec{
			X: radius*math.Cos(phi) + 0.3*rng.NormFloat64(),
			Y: radius*math.Sin(phi) + 0.3*rng.NormFloat64(),
			Z: 0.3 * rng.NormFloat64(),
		}
		g.Vertices = append(g.Vertices, cell.WrapPoint(p))
		g.Edges = append(g.Edges, dislocation.Edge{V1: i, V2: (i + 1) % n, Burgers: burgers, Cluster: 1})
	}
	return g
}

func runNetwork(ctx context.Context, log *zap.Logger, cfg *config.Config) error {
	cell := simcell.Orthorhombic(r3.Vec{X: 60, Y: 60, Z: 60}, [3]bool{true, true, true})
	graph := cluster.NewGraph()
	graph.CreateCluster(1, nil)
	edges := noisyLoop(cell, 20, 400, rand.New(rand.NewSource(1)))
	nw, err := dislocation.BuildFromEdges(cell, graph, edges, dislocation.WithLogger(log))
	if err != nil {
		return err
	}
	raw := dislocation.NewShared(nw)
	defer raw.Release()
	smoothed := raw.Share()
	defer smoothed.Release()

	work := smoothed.Modify()
	level, interval := cfg.EffectiveLineSmoothingLevel(), cfg.EffectiveLinePointInterval()
	if !work.SmoothDislocationLines(progressTask(ctx, log, "lines"), level, interval) {
		return ctx.Err()
	}
	for i, seg := range work.Segments() {
		before := raw.Read().Segments()[i]
		pieces := 0
		dislocation.WrapLine(cell, seg.Line, func(p1, p2 r3.Vec, initial bool) {
			if initial {
				pieces++
			}
		})
		log.Info("dislocation line",
			zap.Int("segment", seg.ID),
			zap.Bool("closedLoop", work.IsClosedLoop(seg.Ref())),
			zap.Int("pointsBefore", len(before.Line)),
			zap.Int("pointsAfter", len(seg.Line)),
			zap.Float64("lengthBefore", before.Length()),
			zap.Float64("lengthAfter", seg.Length()),
			zap.Float64s("burgers", []float64{seg.Burgers.Vec.X, seg.Burgers.Vec.Y, seg.Burgers.Vec.Z}),
			zap.Int("wrappedPieces", pieces),
		)
	}
	return nil
}
