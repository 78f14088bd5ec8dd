package engine

import "testing"

func TestRefGet(t *testing.T) {
	w := NewWorld()
	obj := w.New("Part", nil)

	found := obj.Ref().Get(w)
	if found != obj {
		t.Errorf("Get() failed: expected %v, got %v", obj, found)
	}
}

func TestRefGetNil(t *testing.T) {
	w := NewWorld()

	if (Ref{}).Get(w) != nil {
		t.Error("Get() on the zero Ref should return nil")
	}

	if (Ref{Index: 42, Gen: 1}).Get(w) != nil {
		t.Error("Get() with an out of range index should return nil")
	}

	obj := w.New("Part", nil)
	if obj.Ref().Get(nil) != nil {
		t.Error("Get() with nil world should return nil")
	}
}

func TestRefIsValid(t *testing.T) {
	if (Ref{}).IsValid() {
		t.Error("zero Ref should be invalid")
	}
	if !(Ref{Index: 0, Gen: 1}).IsValid() {
		t.Error("Ref with a generation should be valid")
	}
}

func TestRefStaleAfterDestroy(t *testing.T) {
	w := NewWorld()
	obj := w.New("Part", nil)
	ref := obj.Ref()

	obj.Destroy()

	if ref.Get(w) != nil {
		t.Error("Ref to a destroyed instance should not resolve")
	}

	// The slot is reused with a new generation.
	next := w.New("Part", nil)
	if next.Ref().Index != ref.Index {
		t.Errorf("expected slot %d to be reused, got %d", ref.Index, next.Ref().Index)
	}
	if ref.Get(w) != nil {
		t.Error("stale Ref must not resolve to the instance in the reused slot")
	}
	if next.Ref().Get(w) != next {
		t.Error("new Ref should resolve")
	}
}
