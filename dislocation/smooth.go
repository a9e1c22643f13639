package dislocation

import (
	"github.com/soypat/dxa/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Taubin filter parameters: pass band frequency and positive scale factor.
const (
	taubinKPB    = 0.1
	taubinLambda = 0.5
)

// SmoothLine applies smoothingLevel iterations of Taubin lambda/mu smoothing
// to line in place.
//
// G. Taubin, A Signal Processing Approach To Fair Surface Design,
// SIGGRAPH 95 Conference Proceedings, pp. 351-358 (1995).
//
// End points of open lines do not move. For loops the first and last point
// receive the same displacement, computed from their neighbors on both sides
// of the seam. Lines with at most two points and loops of at most four
// points are left unchanged.
func SmoothLine(smoothingLevel int, line []r3.Vec, isLoop bool) {
	n := len(line)
	if smoothingLevel <= 0 || n <= 2 {
		return
	}
	if n <= 4 && d3.EqualWithin(line[0], line[n-1], AtomVectorEpsilon) {
		return
	}
	mu := 1 / (taubinKPB - 1/taubinLambda)
	prefactors := [2]float64{taubinLambda, mu}

	laplacians := make([]r3.Vec, n)
	for iteration := 0; iteration < smoothingLevel; iteration++ {
		for _, factor := range prefactors {
			if isLoop {
				laplacians[0] = r3.Scale(0.5, r3.Add(r3.Sub(line[n-2], line[n-1]), r3.Sub(line[1], line[0])))
			} else {
				laplacians[0] = r3.Vec{}
			}
			for i := 1; i < n-1; i++ {
				laplacians[i] = r3.Scale(0.5, r3.Add(r3.Sub(line[i-1], line[i]), r3.Sub(line[i+1], line[i])))
			}
			laplacians[n-1] = laplacians[0]
			for i := range line {
				line[i] = r3.Add(line[i], r3.Scale(factor, laplacians[i]))
			}
		}
	}
}
