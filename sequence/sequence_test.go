package sequence

import "testing"

func TestOrderedAppendAtRemove(t *testing.T) {
	o := NewOrdered[string]()
	o.Append("a")
	o.Append("b")
	o.Append("c")

	if got, ok := o.At(1); !ok || got != "b" {
		t.Fatalf("At(1): got %q, ok=%v", got, ok)
	}

	removed, ok := o.RemoveAt(0)
	if !ok || removed != "a" {
		t.Fatalf("RemoveAt(0): got %q, ok=%v", removed, ok)
	}
	if got, ok := o.At(0); !ok || got != "b" {
		t.Fatalf("expected b to shift into index 0, got %q", got)
	}
	if o.Len() != 2 {
		t.Fatalf("expected len 2, got %d", o.Len())
	}
}

func TestOrderedIndexFuncAndSnapshot(t *testing.T) {
	o := NewOrdered[int]()
	o.Append(10)
	o.Append(20)
	o.Append(30)

	if idx := o.IndexFunc(func(v int) bool { return v == 20 }); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if idx := o.IndexFunc(func(v int) bool { return v == 99 }); idx != -1 {
		t.Fatalf("expected -1 for no match, got %d", idx)
	}

	snap := o.Snapshot()
	o.Append(40)
	if len(snap) != 3 {
		t.Fatalf("snapshot should not observe later mutation, got %v", snap)
	}
}

func TestOrderedRemoveAll(t *testing.T) {
	o := NewOrdered[int]()
	o.Append(1)
	o.Append(2)

	removed := o.RemoveAll()
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %d", len(removed))
	}
	if o.Len() != 0 {
		t.Fatalf("expected empty after RemoveAll, got len %d", o.Len())
	}
}

func TestKeyedGetSetDelete(t *testing.T) {
	k := NewKeyed[string, int]()
	k.Set("a", 1)
	k.Set("b", 2)

	if v, ok := k.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a): got %d, ok=%v", v, ok)
	}
	if k.Len() != 2 {
		t.Fatalf("expected len 2, got %d", k.Len())
	}

	k.Delete("a")
	if _, ok := k.Get("a"); ok {
		t.Fatalf("expected a to be deleted")
	}
	if k.Len() != 1 {
		t.Fatalf("expected len 1 after delete, got %d", k.Len())
	}
}

func TestKeyedKeysPreservesInsertionOrder(t *testing.T) {
	k := NewKeyed[string, int]()
	k.Set("z", 1)
	k.Set("a", 2)
	k.Set("m", 3)

	keys := k.Keys()
	want := []string{"z", "a", "m"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, keys)
		}
	}
}
