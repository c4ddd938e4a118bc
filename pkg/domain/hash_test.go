package domain

import "testing"

func TestHashContentOrderInsensitive(t *testing.T) {
	a := map[string]any{"sex": "f", "age": 34, "income": "medium"}
	b := map[string]any{"income": "medium", "age": 34, "sex": "f"}
	if HashContent(a, nil) != HashContent(b, nil) {
		t.Fatalf("hash should be insensitive to insertion order")
	}
	if HashContent(a, nil) == HashContent(b, map[string]any{RelAt: "home"}) {
		t.Fatalf("relations must participate in the hash")
	}
}

func TestHashContentValueTypes(t *testing.T) {
	if HashContent(map[string]any{"x": "1"}, nil) == HashContent(map[string]any{"x": 1}, nil) {
		t.Fatalf("string and numeric values must not collide")
	}
	if HashContent(map[string]any{"x": 1}, nil) != HashContent(map[string]any{"x": 1.0}, nil) {
		t.Fatalf("numeric kinds must fold together")
	}
	if HashContent(map[string]any{"x": true}, nil) == HashContent(map[string]any{"x": "true"}, nil) {
		t.Fatalf("bool and string values must not collide")
	}
}

func TestHashContentEntitySubstitution(t *testing.T) {
	home1 := NewSite("home", nil)
	home2 := NewSite("home", nil)
	work := NewSite("work", nil)

	byObject := HashContent(nil, map[string]any{RelAt: home1})
	byOtherObject := HashContent(nil, map[string]any{RelAt: home2})
	byHash := HashContent(nil, map[string]any{RelAt: home1.ContentHash()})

	if byObject != byOtherObject {
		t.Fatalf("structurally equal entities must hash equal regardless of object identity")
	}
	if byObject != byHash {
		t.Fatalf("an entity value and its resolved hash must digest identically")
	}
	if byObject == HashContent(nil, map[string]any{RelAt: work}) {
		t.Fatalf("different sites must produce different group hashes")
	}
}

func TestGroupHashCacheInvalidation(t *testing.T) {
	g := NewGroup("g", 10, map[string]any{"x": 1}, nil)
	h1 := g.ContentHash()
	if err := g.SetAttr("x", 2, false); err != nil {
		t.Fatalf("set attr: %v", err)
	}
	if g.ContentHash() == h1 {
		t.Fatalf("mutation must reset the cached hash")
	}
	if err := g.SetAttr("x", 1, false); err != nil {
		t.Fatalf("set attr: %v", err)
	}
	if g.ContentHash() != h1 {
		t.Fatalf("restoring content must restore the hash")
	}
}
