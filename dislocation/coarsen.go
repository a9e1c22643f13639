package dislocation

import (
	"slices"

	"github.com/soypat/dxa/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// CoarsenLine reduces the point density of a line where the dislocation core
// is wide. Consecutive points are merged into their centroid while the squared
// number of merged points stays below linePointInterval times their summed core
// size. The end points of open lines are kept exactly; for closed loops the seam
// point is re-averaged from the windows at both ends.
//
// The inputs are not modified. A non-positive interval or a line with fewer than
// four points is copied through unchanged, except that an infinite line whose
// core is too wide for even two windows collapses to two points.
func CoarsenLine(linePointInterval float64, line []r3.Vec, coreSize []int, isClosedLoop, isInfiniteLine bool) ([]r3.Vec, []int) {
	if len(line) != len(coreSize) {
		panic("bug: line and core size length mismatch")
	}
	n := len(line)
	if linePointInterval <= 0 {
		return slices.Clone(line), slices.Clone(coreSize)
	}

	if isInfiniteLine && n >= 3 {
		count := n - 1
		sum := 0
		var com r3.Vec
		for i := 0; i < count; i++ {
			sum += coreSize[i]
			com = r3.Add(com, r3.Sub(line[i], line[0]))
		}
		if float64(sum)*linePointInterval > float64(count*count) {
			// Straight line through the center of mass.
			offset := r3.Scale(1/float64(count), com)
			return []r3.Vec{r3.Add(line[0], offset), r3.Add(line[n-1], offset)},
				[]int{sum / count, sum / count}
		}
	}

	if n < 4 {
		return slices.Clone(line), slices.Clone(coreSize)
	}

	out := make([]r3.Vec, 0, n)
	outCore := make([]int, 0, n)
	if !isClosedLoop {
		out = append(out, line[0])
		outCore = append(outCore, coreSize[0])
	}

	// Loops keep at least four points.
	minNumPoints := 2
	if d3.EqualWithin(line[0], line[n-1], AtomVectorEpsilon) {
		minNumPoints = 4
	}
	limit := func(sum int) int { return int(linePointInterval * float64(sum)) }

	// Half window at the start, positions relative to the first point.
	i := 0
	sum, count := 0, 0
	var com r3.Vec
	for {
		sum += coreSize[i]
		com = r3.Add(com, r3.Sub(line[i], line[0]))
		count++
		i++
		if !(2*count*count < limit(sum) && count+1 < n/minNumPoints/2) {
			break
		}
	}

	// Half window at the end, positions relative to the last point.
	j := n - 1
	for count*count < limit(sum) && count < n/minNumPoints {
		sum += coreSize[j]
		com = r3.Add(com, r3.Sub(line[j], line[n-1]))
		count++
		j--
	}

	if isClosedLoop {
		out = append(out, r3.Add(line[0], r3.Scale(1/float64(count), com)))
		outCore = append(outCore, sum/count)
	}

	for i < j {
		wsum, wcount := 0, 0
		var wcom r3.Vec
		for {
			wsum += coreSize[i]
			wcom = r3.Add(wcom, line[i])
			wcount++
			i++
			if !(wcount*wcount < limit(wsum) && wcount+1 < n/minNumPoints && i != j) {
				break
			}
		}
		out = append(out, r3.Scale(1/float64(wcount), wcom))
		outCore = append(outCore, wsum/wcount)
	}

	if !isClosedLoop {
		out = append(out, line[n-1])
		outCore = append(outCore, coreSize[n-1])
	} else {
		out = append(out, r3.Add(line[n-1], r3.Scale(1/float64(count), com)))
		outCore = append(outCore, sum/count)
	}
	return out, outCore
}
