package domain

import "testing"

func TestQueryMatching(t *testing.T) {
	g := NewGroup("g", 1, map[string]any{"x": 1, "y": 2}, nil)

	cases := []struct {
		name string
		qry  *GroupQuery
		want bool
	}{
		{"nil query matches", nil, true},
		{"partial subset", NewQuery(map[string]any{"x": 1}, nil), true},
		{"partial mismatched value", NewQuery(map[string]any{"x": 2}, nil), false},
		{"partial absent key", NewQuery(map[string]any{"z": 3}, nil), false},
		{"full exact", NewFullQuery(map[string]any{"x": 1, "y": 2}, nil), true},
		{"full missing key in query", NewFullQuery(map[string]any{"x": 1}, nil), false},
		{"relation subset on empty rels", NewQuery(nil, map[string]any{RelAt: Hash(7)}), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.qry.Matches(g); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFullQueryRejectsExtraKeys(t *testing.T) {
	g := NewGroup("g", 1, map[string]any{"x": 1, "y": 2, "z": 3}, nil)
	if NewFullQuery(map[string]any{"x": 1, "y": 2}, nil).Matches(g) {
		t.Fatalf("full match must reject groups with extra keys")
	}
}

func TestQueryPredicates(t *testing.T) {
	g := NewGroup("g", 150, map[string]any{"x": 1}, nil)

	heavy := NewPredicateQuery(nil, nil, func(g *Group) bool { return g.Mass() > 100 })
	if !heavy.Matches(g) {
		t.Fatalf("predicate should pass for mass 150")
	}
	light := NewPredicateQuery(map[string]any{"x": 1}, nil, func(g *Group) bool { return g.Mass() < 100 })
	if light.Matches(g) {
		t.Fatalf("all predicates must hold")
	}
	if !heavy.HasPredicates() || NewQuery(nil, nil).HasPredicates() {
		t.Fatalf("HasPredicates misreported")
	}
}

func TestQueryHashExcludesPredicates(t *testing.T) {
	plain := NewQuery(map[string]any{"x": 1}, nil)
	withPred := NewPredicateQuery(map[string]any{"x": 1}, nil, func(*Group) bool { return true })
	if plain.ContentHash() != withPred.ContentHash() {
		t.Fatalf("predicates must not feed the query hash")
	}
	full := NewFullQuery(map[string]any{"x": 1}, nil)
	if plain.ContentHash() == full.ContentHash() {
		t.Fatalf("full flag must feed the query hash")
	}
}

func TestQueryNormalizesEntityRelations(t *testing.T) {
	home := NewSite("home", nil)
	g := NewGroup("g", 1, nil, map[string]any{RelAt: home.ContentHash()})
	q := NewQuery(nil, map[string]any{RelAt: home})
	if !q.Matches(g) {
		t.Fatalf("entity-valued query relation must match the registered hash")
	}
}
