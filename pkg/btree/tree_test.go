package btree

import (
	"math/rand"
	"sort"
	"testing"
)

func newTestTree(t *testing.T, branch int) *Tree[int, int] {
	t.Helper()
	tr, err := NewEmpty[int, int](branch, nil)
	if err != nil {
		t.Fatalf("NewEmpty: %v", err)
	}
	return tr
}

func TestInsertAndGet(t *testing.T) {
	tr := newTestTree(t, 4)
	for i := 0; i < 20; i++ {
		if err := tr.Insert(i, i*i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < 20; i++ {
		v, ok, err := tr.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if !ok || v != i*i {
			t.Fatalf("Get(%d) = %d, %v, want %d, true", i, v, ok, i*i)
		}
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := tr.Count(); got != 20 {
		t.Fatalf("Count() = %d, want 20", got)
	}
}

func TestSplitPropagatesToNewRoot(t *testing.T) {
	tr := newTestTree(t, 4)
	for i := 1; i <= 64; i++ {
		if err := tr.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	root, err := tr.get(tr.Root())
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if root.IsLeaf() {
		t.Fatalf("expected root to have split into an internal node")
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := tr.Count(); got != 64 {
		t.Fatalf("Count() = %d, want 64", got)
	}
}

func TestReverseOrderInsert(t *testing.T) {
	tr := newTestTree(t, 4)
	for i := 50; i >= 1; i-- {
		if err := tr.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	for i := 1; i <= 50; i++ {
		if _, ok, _ := tr.Get(i); !ok {
			t.Fatalf("Get(%d) missing", i)
		}
	}
}

func TestDeleteMergeCollapsesRoot(t *testing.T) {
	tr := newTestTree(t, 4)
	for i := 1; i <= 8; i++ {
		if err := tr.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 1; i <= 7; i++ {
		if _, err := tr.Delete(i); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("Verify after deletes: %v", err)
	}
	root, err := tr.get(tr.Root())
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if !root.IsLeaf() {
		t.Fatalf("expected root to collapse back to a single leaf")
	}
	if got := tr.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestDeleteAbsentKeyReportsFalse(t *testing.T) {
	tr := newTestTree(t, 4)
	tr.Insert(1, 1)
	existed, err := tr.Delete(99)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if existed {
		t.Fatalf("expected Delete of absent key to report false")
	}
}

func TestRandomChurnStaysConsistent(t *testing.T) {
	tr := newTestTree(t, 5)
	rng := rand.New(rand.NewSource(42))
	present := make(map[int]int)

	for round := 0; round < 500; round++ {
		key := rng.Intn(100)
		if rng.Intn(3) == 0 {
			if _, err := tr.Delete(key); err != nil {
				t.Fatalf("Delete(%d): %v", key, err)
			}
			delete(present, key)
			continue
		}
		v := key * 7
		if err := tr.Insert(key, v); err != nil {
			t.Fatalf("Insert(%d): %v", key, err)
		}
		present[key] = v
	}

	if err := tr.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	for k, v := range present {
		got, ok, err := tr.Get(k)
		if err != nil {
			t.Fatalf("Get(%d): %v", k, err)
		}
		if !ok || got != v {
			t.Fatalf("Get(%d) = %d, %v, want %d, true", k, got, ok, v)
		}
	}
	if got, want := tr.Count(), len(present); got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}
}

func TestNeighbourWalksLeavesInOrder(t *testing.T) {
	tr := newTestTree(t, 4)
	input := []int{7, 8, 14, 20, 21, 27, 34, 42, 43, 47, 48, 52, 64, 72, 90, 91, 93, 94, 97}
	for _, k := range input {
		if err := tr.Insert(k, k); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	var ascending []int
	leaf, err := tr.FirstLeaf()
	if err != nil {
		t.Fatalf("FirstLeaf: %v", err)
	}
	for leaf != nil {
		ascending = append(ascending, leaf.Keys()...)
		leaf, err = tr.Neighbour(leaf.Index(), Ascending)
		if err != nil {
			t.Fatalf("Neighbour: %v", err)
		}
	}
	if !sort.IntsAreSorted(ascending) || len(ascending) != len(input) {
		t.Fatalf("ascending walk = %v, want sorted %v", ascending, input)
	}

	var descending []int
	leaf, err = tr.LastLeaf()
	if err != nil {
		t.Fatalf("LastLeaf: %v", err)
	}
	for leaf != nil {
		keys := leaf.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			descending = append(descending, keys[i])
		}
		leaf, err = tr.Neighbour(leaf.Index(), Descending)
		if err != nil {
			t.Fatalf("Neighbour: %v", err)
		}
	}
	for i, k := range descending {
		want := ascending[len(ascending)-1-i]
		if k != want {
			t.Fatalf("descending[%d] = %d, want %d", i, k, want)
		}
	}
}

func TestUtilization(t *testing.T) {
	tr := newTestTree(t, 4)
	if u := tr.Utilization(); u != 0 {
		t.Fatalf("empty tree utilization = %f, want 0", u)
	}
	for i := 1; i <= 4; i++ {
		tr.Insert(i, i)
	}
	if u := tr.Utilization(); u <= 0 || u > 1 {
		t.Fatalf("utilization out of range: %f", u)
	}
}

func TestClearResetsTree(t *testing.T) {
	tr := newTestTree(t, 4)
	for i := 1; i <= 20; i++ {
		tr.Insert(i, i)
	}
	tr.Reset()
	if got := tr.Count(); got != 0 {
		t.Fatalf("Count() after Reset = %d, want 0", got)
	}
	if tr.Root() != 1 || tr.NextIndex() != 2 {
		t.Fatalf("Reset did not restore fresh root/next: root=%d next=%d", tr.Root(), tr.NextIndex())
	}
}
