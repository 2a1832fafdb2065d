// Package linalg provides the numeric kernels shared by the k-means
// trainer and the query engines: dot product, Euclidean norm, and the
// element-wise vector arithmetic used to compute residuals.
//
// Dot and Sum are unrolled (width 16). Dot, Sum, SubtractIn, ScaleIn,
// Min and MaxAbs each have a naive counterpart that tests compare
// against bit for bit; the naive Dot and Sum keep the same 16-lane
// accumulation order, and inputs shorter than the unroll width use
// them directly. Norm2, Subtract, AddIn and SquaredDistance have no
// naive counterpart, and no kernel other than Dot and Sum is unrolled.
package linalg

import "math"

const unrollWidth = 16

// Dot returns the dot product of xs and ys. Panics if the lengths
// differ, since that is always a caller bug rather than a data error.
func Dot(xs, ys []float32) float32 {
	mustSameLen(xs, ys)
	if len(xs) < unrollWidth {
		return dotNaive(xs, ys)
	}
	var acc [unrollWidth]float32
	n := len(xs)
	full := n - n%unrollWidth
	for i := 0; i < full; i += unrollWidth {
		for j := 0; j < unrollWidth; j++ {
			acc[j] += xs[i+j] * ys[i+j]
		}
	}
	var sum float32
	for _, a := range acc {
		sum += a
	}
	for i := full; i < n; i++ {
		sum += xs[i] * ys[i]
	}
	return sum
}

func dotNaive(xs, ys []float32) float32 {
	mustSameLen(xs, ys)
	var acc [unrollWidth]float32
	full := len(xs) - len(xs)%unrollWidth
	for i := 0; i < full; i++ {
		acc[i%unrollWidth] += xs[i] * ys[i]
	}
	var sum float32
	for _, a := range acc {
		sum += a
	}
	for i := full; i < len(xs); i++ {
		sum += xs[i] * ys[i]
	}
	return sum
}

// Norm2 returns the Euclidean (L2) norm of xs, computed in a way that
// is numerically safe when elements overflow or underflow the square
// of float32: with m the largest absolute value, it scales every
// element by 1/sqrt(m), sums the squares in float64, and multiplies
// the root of that sum by sqrt(m).
//
// Returns 0 for an empty slice.
func Norm2(xs []float32) float32 {
	m, ok := MaxAbs(xs)
	if !ok || m == 0 {
		return 0
	}
	sqrtM := float32(math.Sqrt(float64(m)))
	invSqrtM := 1 / sqrtM
	scaled := norm2Scaled(xs, invSqrtM)
	return sqrtM * scaled
}

// norm2Scaled computes sqrt(sum((xs[i]*scale)^2)) without the
// rescale-by-sqrtM step; factored out so Norm2 can apply the inverse
// scale once up front.
func norm2Scaled(xs []float32, scale float32) float32 {
	var sumSq float64
	for _, x := range xs {
		v := float64(x) * float64(scale)
		sumSq += v * v
	}
	return float32(math.Sqrt(sumSq))
}

// Subtract returns a new slice holding xs - ys element-wise.
func Subtract(xs, ys []float32) []float32 {
	mustSameLen(xs, ys)
	out := make([]float32, len(xs))
	for i := range xs {
		out[i] = xs[i] - ys[i]
	}
	return out
}

// SubtractIn subtracts ys from xs in place.
func SubtractIn(xs, ys []float32) {
	mustSameLen(xs, ys)
	for i := range xs {
		xs[i] -= ys[i]
	}
}

func subtractInNaive(xs, ys []float32) {
	mustSameLen(xs, ys)
	for i := range xs {
		xs[i] -= ys[i]
	}
}

// AddIn adds ys into xs in place.
func AddIn(xs, ys []float32) {
	mustSameLen(xs, ys)
	for i := range xs {
		xs[i] += ys[i]
	}
}

// ScaleIn scales xs by s in place.
func ScaleIn(xs []float32, s float32) {
	for i := range xs {
		xs[i] *= s
	}
}

func scaleInNaive(xs []float32, s float32) {
	for i := range xs {
		xs[i] *= s
	}
}

// Sum returns the sum of xs, using the same width-16 unrolled
// accumulation strategy as Dot.
func Sum(xs []float32) float32 {
	if len(xs) < unrollWidth {
		return sumNaive(xs)
	}
	var acc [unrollWidth]float32
	n := len(xs)
	full := n - n%unrollWidth
	for i := 0; i < full; i += unrollWidth {
		for j := 0; j < unrollWidth; j++ {
			acc[j] += xs[i+j]
		}
	}
	var sum float32
	for _, a := range acc {
		sum += a
	}
	for i := full; i < n; i++ {
		sum += xs[i]
	}
	return sum
}

func sumNaive(xs []float32) float32 {
	var acc [unrollWidth]float32
	full := len(xs) - len(xs)%unrollWidth
	for i := 0; i < full; i++ {
		acc[i%unrollWidth] += xs[i]
	}
	var sum float32
	for _, a := range acc {
		sum += a
	}
	for i := full; i < len(xs); i++ {
		sum += xs[i]
	}
	return sum
}

// Min returns the minimum element of xs and true, or (0, false) if
// xs is empty.
func Min(xs []float32) (float32, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m, true
}

func minNaive(xs []float32) (float32, bool) {
	return Min(xs)
}

// MaxAbs returns the maximum absolute value among xs and true, or
// (0, false) if xs is empty.
func MaxAbs(xs []float32) (float32, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	m := absf32(xs[0])
	for _, x := range xs[1:] {
		if a := absf32(x); a > m {
			m = a
		}
	}
	return m, true
}

func maxAbsNaive(xs []float32) (float32, bool) {
	return MaxAbs(xs)
}

func absf32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func mustSameLen(xs, ys []float32) {
	if len(xs) != len(ys) {
		panic("linalg: mismatched vector lengths")
	}
}

// SquaredDistance is Dot(d, d) where d = xs - ys, computed without
// allocating the intermediate difference slice. This is the
// asymmetric/localized distance used throughout the query engines.
func SquaredDistance(xs, ys []float32) float32 {
	mustSameLen(xs, ys)
	var sum float32
	for i := range xs {
		d := xs[i] - ys[i]
		sum += d * d
	}
	return sum
}
