package vectorset

import "testing"

func TestChunking(t *testing.T) {
	for _, tc := range []struct {
		l, m int
		ok   bool
	}{
		{0, 4, true},
		{4, 4, true},
		{8, 4, true},
		{5, 4, false},
	} {
		data := make([]float32, tc.l)
		for i := range data {
			data[i] = float32(i)
		}
		vs, err := NewBlockVectorSet(data, tc.m)
		if tc.ok && err != nil {
			t.Fatalf("L=%d M=%d: unexpected error: %v", tc.l, tc.m, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("L=%d M=%d: expected error", tc.l, tc.m)
		}
		if !tc.ok {
			continue
		}
		for i := 0; i < tc.l/tc.m; i++ {
			got := vs.Get(i)
			for j := 0; j < tc.m; j++ {
				if got[j] != float32(i*tc.m+j) {
					t.Fatalf("Get(%d)[%d] = %v, want %v", i, j, got[j], i*tc.m+j)
				}
			}
		}
	}
}

func TestDivideCoversAndPartitions(t *testing.T) {
	m := 8
	n := 3
	data := make([]float32, m*n)
	for i := range data {
		data[i] = float32(i)
	}
	vs, err := NewBlockVectorSet(data, m)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []int{1, 2, 4, 8} {
		subs, err := vs.Divide(d)
		if err != nil {
			t.Fatalf("d=%d: %v", d, err)
		}
		if len(subs) != d {
			t.Fatalf("d=%d: got %d subviews", d, len(subs))
		}
		for i := 0; i < n; i++ {
			covered := make([]float32, 0, m)
			for _, s := range subs {
				covered = append(covered, s.Get(i)...)
			}
			full := vs.Get(i)
			if len(covered) != len(full) {
				t.Fatalf("d=%d vector %d: coverage length mismatch", d, i)
			}
			for j := range full {
				if covered[j] != full[j] {
					t.Fatalf("d=%d vector %d coord %d: covered %v want %v", d, i, j, covered[j], full[j])
				}
			}
		}
	}
	if _, err := vs.Divide(3); err == nil {
		t.Fatal("expected error dividing 8 by 3")
	}
}

func TestSubVectorSetIsNonCopying(t *testing.T) {
	data := make([]float32, 8)
	vs, err := NewBlockVectorSet(data, 8)
	if err != nil {
		t.Fatal(err)
	}
	subs, err := vs.Divide(2)
	if err != nil {
		t.Fatal(err)
	}
	subs[0].Get(0)[0] = 42
	if vs.Get(0)[0] != 42 {
		t.Fatal("mutation through SubVectorSet did not alias the parent buffer")
	}
}
