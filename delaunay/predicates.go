package delaunay

import "gonum.org/v1/gonum/spatial/r3"

// orient returns six times the signed volume of the tetrahedron (a,b,c,d).
// It is positive when d lies on the side of the plane through a, b, c that
// the normal (b-a)x(c-a) points to.
func orient(a, b, c, d r3.Vec) float64 {
	return r3.Dot(r3.Sub(d, a), r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
}

func det3(x, y, z r3.Vec) float64 { return r3.Dot(x, r3.Cross(y, z)) }

// insphere is positive when e lies inside the circumsphere of the positively
// oriented tetrahedron (a,b,c,d), negative outside and zero on the sphere.
func insphere(a, b, c, d, e r3.Vec) float64 {
	ae, be, ce, de := r3.Sub(a, e), r3.Sub(b, e), r3.Sub(c, e), r3.Sub(d, e)
	al, bl, cl, dl := r3.Norm2(ae), r3.Norm2(be), r3.Norm2(ce), r3.Norm2(de)
	return al*det3(be, ce, de) - bl*det3(ae, ce, de) + cl*det3(ae, be, de) - dl*det3(ae, be, ce)
}

// circumradius2 returns the squared circumradius of tetrahedron (a,b,c,d).
// A flat tetrahedron has an infinite circumradius.
func circumradius2(a, b, c, d r3.Vec) float64 {
	b, c, d = r3.Sub(b, a), r3.Sub(c, a), r3.Sub(d, a)
	denom := 2 * det3(b, c, d)
	if denom == 0 {
		return inf
	}
	num := r3.Scale(r3.Norm2(b), r3.Cross(c, d))
	num = r3.Add(num, r3.Scale(r3.Norm2(c), r3.Cross(d, b)))
	num = r3.Add(num, r3.Scale(r3.Norm2(d), r3.Cross(b, c)))
	return r3.Norm2(num) / (denom * denom)
}
