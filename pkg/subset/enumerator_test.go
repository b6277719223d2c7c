package subset

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/stat/combin"
)

func key(s []int) string {
	return fmt.Sprint(s)
}

// symmetricDifference counts indices present in exactly one of a and b.
func symmetricDifference(a, b []int) int {
	in := make(map[int]int)
	for _, i := range a {
		in[i]++
	}
	for _, i := range b {
		in[i]--
	}
	n := 0
	for _, v := range in {
		if v != 0 {
			n++
		}
	}
	return n
}

func walk(e *Enumerator) [][]int {
	var visited [][]int
	e.First()
	for {
		visited = append(visited, append([]int(nil), e.Subset()...))
		if e.Next() == 0 {
			break
		}
	}
	return visited
}

func TestEnumeratorCompletenessAndAdjacency(t *testing.T) {
	tests := []struct {
		n, kmin, kmax int
	}{
		{1, 1, 1},
		{3, 1, 2},
		{4, 1, 4},
		{5, 2, 3},
		{6, 3, 3},
		{7, 1, 3},
		{8, 2, 6},
		{10, 1, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d k=%d..%d", tt.n, tt.kmin, tt.kmax), func(t *testing.T) {
			e := New(tt.n, tt.kmin, tt.kmax, nil)
			visited := walk(e)

			want := 0
			for k := tt.kmin; k <= tt.kmax; k++ {
				want += combin.Binomial(tt.n, k)
			}
			if len(visited) != want {
				t.Fatalf("visited %d subsets, want %d", len(visited), want)
			}

			seen := make(map[string]bool)
			for i, s := range visited {
				if seen[key(s)] {
					t.Fatalf("subset %v visited twice", s)
				}
				seen[key(s)] = true
				if len(s) < tt.kmin || len(s) > tt.kmax {
					t.Errorf("subset %v has size outside [%d, %d]", s, tt.kmin, tt.kmax)
				}
				for j := 1; j < len(s); j++ {
					if s[j] <= s[j-1] {
						t.Errorf("subset %v is not ascending", s)
					}
				}
				if i == 0 {
					continue
				}
				prev := visited[i-1]
				d := symmetricDifference(prev, s)
				switch len(s) - len(prev) {
				case 0:
					if d != 2 {
						t.Errorf("%v -> %v is not a single substitution", prev, s)
					}
				case 1, -1:
					if d != 1 {
						t.Errorf("%v -> %v is not a single insertion or removal", prev, s)
					}
				default:
					t.Errorf("%v -> %v changes size by more than one", prev, s)
				}
			}
		})
	}
}

func TestEnumeratorPrevReversesNext(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for kmin := 1; kmin <= n; kmin++ {
			for kmax := kmin; kmax <= n; kmax++ {
				e := New(n, kmin, kmax, nil)
				forward := walk(e)

				var backward [][]int
				e.Last()
				for {
					backward = append(backward, append([]int(nil), e.Subset()...))
					if e.Prev() == 0 {
						break
					}
				}
				for i, j := 0, len(backward)-1; i < j; i, j = i+1, j-1 {
					backward[i], backward[j] = backward[j], backward[i]
				}
				if diff := cmp.Diff(forward, backward); diff != "" {
					t.Errorf("n=%d k=%d..%d: Prev walk differs from Next walk (-next +prev):\n%s", n, kmin, kmax, diff)
				}
			}
		}
	}
}

func TestEnumeratorFirstAndLast(t *testing.T) {
	e := New(5, 2, 3, nil)
	if diff := cmp.Diff([]int{4, 5}, e.Subset()); diff != "" {
		t.Errorf("first subset mismatch (-want +got):\n%s", diff)
	}
	if e.K() != 2 {
		t.Errorf("K() = %d, want 2", e.K())
	}

	e.Last()
	if e.K() != 2 {
		t.Errorf("last subset %v should have size kmin", e.Subset())
	}

	// Walking backwards from the last subset retraces the forward walk.
	forward := walk(New(5, 2, 3, nil))
	e.Last()
	var backward [][]int
	for {
		backward = append(backward, append([]int(nil), e.Subset()...))
		if e.Prev() == 0 {
			break
		}
	}
	for i, j := 0, len(backward)-1; i < j; i, j = i+1, j-1 {
		backward[i], backward[j] = backward[j], backward[i]
	}
	if diff := cmp.Diff(forward, backward); diff != "" {
		t.Errorf("backward walk mismatch (-forward +backward):\n%s", diff)
	}

	// Prev from the first subset wraps to the last one.
	e.First()
	if k := e.Prev(); k != 0 {
		t.Errorf("Prev() at first = %d, want 0", k)
	}
	if diff := cmp.Diff(forward[len(forward)-1], e.Subset()); diff != "" {
		t.Errorf("wrap to last mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumeratorWrapsToFirst(t *testing.T) {
	e := New(4, 1, 2, nil)
	first := append([]int(nil), e.Subset()...)
	steps := 0
	for e.Next() != 0 {
		steps++
	}
	if steps != 4+6-1 {
		t.Errorf("steps before wraparound = %d, want %d", steps, 9)
	}
	if diff := cmp.Diff(first, e.Subset()); diff != "" {
		t.Errorf("after wraparound (-want +got):\n%s", diff)
	}
}

func TestEnumeratorClamping(t *testing.T) {
	tests := []struct {
		name          string
		n, kmin, kmax int
		wantMin       int
		wantMax       int
	}{
		{"kmax above n", 3, 1, 9, 1, 3},
		{"inverted bounds", 5, 4, 2, 2, 4},
		{"zero kmin", 4, 0, 2, 1, 2},
		{"negative kmin", 4, -3, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.n, tt.kmin, tt.kmax, nil)
			kmin, kmax := e.Bounds()
			if kmin != tt.wantMin || kmax != tt.wantMax {
				t.Errorf("Bounds() = %d, %d, want %d, %d", kmin, kmax, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestEnumeratorEmptyUniverse(t *testing.T) {
	e := New(0, 1, 2, nil)
	if len(e.Subset()) != 0 || e.K() != 0 {
		t.Errorf("empty universe produced subset %v", e.Subset())
	}
	if k := e.Next(); k != 0 {
		t.Errorf("Next() = %d, want 0", k)
	}
}

func TestEnumeratorFitness(t *testing.T) {
	// Indices 1 and 2 share group 7, indices 3 and 4 are distinct.
	groups := []int{7, 7, 1, 2}
	e := New(4, 1, 3, groups)

	unfit := make(map[string]bool)
	for {
		if !e.Fit() {
			unfit[key(e.Subset())] = true
		}
		if e.Next() == 0 {
			break
		}
	}

	want := map[string]bool{
		key([]int{1, 2}):    true,
		key([]int{1, 2, 3}): true,
		key([]int{1, 2, 4}): true,
	}
	if diff := cmp.Diff(want, unfit); diff != "" {
		t.Errorf("unfit subsets mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumeratorFitnessIsAdjacencyOnly(t *testing.T) {
	// Indices 1 and 3 share a group but are separated by index 2.
	groups := []int{5, 6, 5}
	e := New(3, 3, 3, groups)
	if diff := cmp.Diff([]int{1, 2, 3}, e.Subset()); diff != "" {
		t.Fatalf("subset mismatch (-want +got):\n%s", diff)
	}
	if !e.Fit() {
		t.Error("non-adjacent group collision should not make the subset unfit")
	}
}
