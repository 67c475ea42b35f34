package btree

import "testing"

func TestLeafSetAndGetValue(t *testing.T) {
	n := NewLeaf[int, string](1, 4, nil)
	if n.SetValue(5, "five") {
		t.Fatalf("expected insert, got update")
	}
	if !n.SetValue(5, "FIVE") {
		t.Fatalf("expected update, got insert")
	}
	v, ok := n.Value(5)
	if !ok || v != "FIVE" {
		t.Fatalf("Value(5) = %q, %v", v, ok)
	}
	if _, ok := n.Value(9); ok {
		t.Fatalf("expected miss for absent key")
	}
}

func TestLeafOrderPreserved(t *testing.T) {
	n := NewLeaf[int, int](1, 8, nil)
	for _, k := range []int{5, 1, 3, 4, 2} {
		n.SetValue(k, k*10)
	}
	got := n.Keys()
	want := []int{1, 2, 3, 4, 5}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}
}

func TestLeafRemoveValue(t *testing.T) {
	n := NewLeaf[int, string](1, 4, nil)
	n.SetValue(1, "a")
	n.SetValue(2, "b")
	v, ok := n.RemoveValue(1)
	if !ok || v != "a" {
		t.Fatalf("RemoveValue(1) = %q, %v", v, ok)
	}
	if n.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", n.Len())
	}
	if _, ok := n.RemoveValue(1); ok {
		t.Fatalf("expected second remove to miss")
	}
}

func TestInternalChildForKey(t *testing.T) {
	n := NewInternal[int, string](1, 4, nil, []Pair[int, int]{
		{Key: 10, Payload: 100},
		{Key: 20, Payload: 200},
		{Key: 30, Payload: 300},
	})
	cases := []struct {
		key  int
		want int
	}{
		{5, 100},
		{10, 100},
		{15, 200},
		{30, 300},
		{100, 300},
	}
	for _, c := range cases {
		if got := n.ChildForKey(c.key); got != c.want {
			t.Errorf("ChildForKey(%d) = %d, want %d", c.key, got, c.want)
		}
	}
}

func TestInternalSetAndRemoveChild(t *testing.T) {
	n := NewInternal[int, string](1, 4, nil, nil)
	n.SetChild(10, 100)
	n.SetChild(5, 50)
	if got := n.Keys(); got[0] != 5 || got[1] != 10 {
		t.Fatalf("Keys() = %v, want [5 10]", got)
	}
	n.SetChild(5, 51) // replace existing
	if v := n.ChildForKey(5); v != 51 {
		t.Fatalf("ChildForKey(5) = %d, want 51", v)
	}
	n.RemoveChild(51)
	if n.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", n.Len())
	}
}

func TestUpdateChildKey(t *testing.T) {
	n := NewInternal[int, string](1, 4, nil, []Pair[int, int]{{Key: 10, Payload: 100}})
	old := n.UpdateChildKey(100, 15)
	if old != 10 {
		t.Fatalf("UpdateChildKey returned %d, want 10", old)
	}
	if n.MaxKey() != 15 {
		t.Fatalf("MaxKey() = %d, want 15", n.MaxKey())
	}
}

func TestSplitLeaf(t *testing.T) {
	n := NewLeaf[int, int](1, 4, nil)
	for i := 1; i <= 5; i++ {
		n.SetValue(i, i)
	}
	sibling := n.Split(2)
	if n.Len()+sibling.Len() != 5 {
		t.Fatalf("split lost entries: %d + %d != 5", n.Len(), sibling.Len())
	}
	if n.MaxKey() >= sibling.MaxKey() {
		t.Fatalf("expected n's keys to precede sibling's: %v vs %v", n.Keys(), sibling.Keys())
	}
	if sibling.Index() != 2 {
		t.Fatalf("sibling.Index() = %d, want 2", sibling.Index())
	}
}

func TestMergeLeaves(t *testing.T) {
	a := NewLeaf[int, int](1, 8, nil)
	a.SetValue(1, 1)
	a.SetValue(2, 2)
	b := NewLeaf[int, int](2, 8, nil)
	b.SetValue(3, 3)
	b.SetValue(4, 4)

	a.Merge(b)
	got := a.Keys()
	want := []int{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}
}

func TestIsMinimumRootExemption(t *testing.T) {
	root := NewRoot[int, int](4)
	if !root.IsMinimum() {
		t.Fatalf("empty root should be minimum")
	}
	root.SetValue(1, 1)
	if root.IsMinimum() {
		t.Fatalf("non-empty root should never be minimum")
	}
}

func TestIsMinimumNonRoot(t *testing.T) {
	parent := 1
	n := NewLeaf[int, int](2, 4, &parent)
	if !n.IsMinimum() {
		t.Fatalf("empty non-root leaf should be minimum with branch 4")
	}
	n.SetValue(1, 1)
	if !n.IsMinimum() {
		t.Fatalf("leaf with 1 entry should be minimum with branch 4 (floor 2)")
	}
	n.SetValue(2, 2)
	if n.IsMinimum() {
		t.Fatalf("leaf with 2 entries should satisfy branch 4's floor of 2")
	}
}

func TestVerifyKeysDetectsDisorder(t *testing.T) {
	n := NewLeaf[int, int](1, 4, nil)
	n.SetValue(1, 1)
	n.SetValue(2, 2)
	if !n.VerifyKeys() {
		t.Fatalf("expected ordered keys to verify")
	}
	n.leaf[0].Key, n.leaf[1].Key = 2, 1
	if n.VerifyKeys() {
		t.Fatalf("expected out-of-order keys to fail verification")
	}
}
