package linalg

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestNorm2Overflow(t *testing.T) {
	xs := make([]float32, 16)
	for i := range xs {
		xs[i] = 1e36
	}
	got := Norm2(xs)
	want := float32(4e36)
	if math.Abs(float64(got-want)) > 1e31 {
		t.Fatalf("Norm2(1e36 x16) = %v, want ~%v", got, want)
	}
}

func TestNorm2Underflow(t *testing.T) {
	xs := make([]float32, 16)
	for i := range xs {
		xs[i] = 1e-30
	}
	got := Norm2(xs)
	want := float32(4e-30)
	if math.Abs(float64(got-want)) > 1e-35 {
		t.Fatalf("Norm2(1e-30 x16) = %v, want ~%v", got, want)
	}
}

func TestNorm2Zero(t *testing.T) {
	xs := make([]float32, 16)
	if got := Norm2(xs); got != 0 {
		t.Fatalf("Norm2(zero vector) = %v, want 0", got)
	}
}

func TestNorm2Empty(t *testing.T) {
	if got := Norm2(nil); got != 0 {
		t.Fatalf("Norm2(nil) = %v, want 0", got)
	}
}

func randomVec(n int, r *rand.Rand) []float32 {
	xs := make([]float32, n)
	for i := range xs {
		xs[i] = float32(r.NormFloat64())
	}
	return xs
}

func TestDotAgreesWithNaive(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, n := range []int{0, 1, 5, 15, 16, 17, 31, 32, 100} {
		xs := randomVec(n, r)
		ys := randomVec(n, r)
		if got, want := Dot(xs, ys), dotNaive(xs, ys); got != want {
			t.Fatalf("n=%d: Dot=%v dotNaive=%v", n, got, want)
		}
	}
}

func TestSumAgreesWithNaive(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for _, n := range []int{0, 1, 5, 16, 17, 100} {
		xs := randomVec(n, r)
		if got, want := Sum(xs), sumNaive(xs); got != want {
			t.Fatalf("n=%d: Sum=%v sumNaive=%v", n, got, want)
		}
	}
}

func TestMinAgreesWithNaive(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	for _, n := range []int{0, 1, 5, 16, 100} {
		xs := randomVec(n, r)
		got, gotOK := Min(xs)
		want, wantOK := minNaive(xs)
		if gotOK != wantOK || got != want {
			t.Fatalf("n=%d: Min=(%v,%v) minNaive=(%v,%v)", n, got, gotOK, want, wantOK)
		}
	}
}

func TestMaxAbsAgreesWithNaive(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	for _, n := range []int{0, 1, 5, 16, 100} {
		xs := randomVec(n, r)
		got, gotOK := MaxAbs(xs)
		want, wantOK := maxAbsNaive(xs)
		if gotOK != wantOK || got != want {
			t.Fatalf("n=%d: MaxAbs=(%v,%v) maxAbsNaive=(%v,%v)", n, got, gotOK, want, wantOK)
		}
	}
}

func TestSubtractInAgreesWithNaive(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 10))
	xs1 := randomVec(37, r)
	xs2 := append([]float32(nil), xs1...)
	ys := randomVec(37, r)
	SubtractIn(xs1, ys)
	subtractInNaive(xs2, ys)
	for i := range xs1 {
		if xs1[i] != xs2[i] {
			t.Fatalf("SubtractIn diverged from naive at %d", i)
		}
	}
}

func TestScaleInAgreesWithNaive(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	xs1 := randomVec(37, r)
	xs2 := append([]float32(nil), xs1...)
	ScaleIn(xs1, 3.5)
	scaleInNaive(xs2, 3.5)
	for i := range xs1 {
		if xs1[i] != xs2[i] {
			t.Fatalf("ScaleIn diverged from naive at %d", i)
		}
	}
}

func TestSquaredDistance(t *testing.T) {
	xs := []float32{1, 2, 3}
	ys := []float32{1, 0, 0}
	if got, want := SquaredDistance(xs, ys), float32(4+9); got != want {
		t.Fatalf("SquaredDistance = %v, want %v", got, want)
	}
}

func TestMismatchedLengthsPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched lengths")
		}
	}()
	Dot([]float32{1, 2}, []float32{1})
}
