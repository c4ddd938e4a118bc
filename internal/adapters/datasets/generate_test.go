package datasets

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"pramcore/pkg/domain"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE regions (name TEXT NOT NULL, pop INTEGER NOT NULL)`,
		`INSERT INTO regions VALUES ('north', 10), ('south', 20)`,
		`CREATE TABLE people (region TEXT, age_group TEXT, n INTEGER NOT NULL)`,
		`INSERT INTO people VALUES
			('north', 'adult', 60),
			('north', 'child', 40),
			('south', 'adult', 30)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return db
}

func TestGenSitesFromDB(t *testing.T) {
	db := openTestDB(t)

	sites, err := GenSitesFromDB(context.Background(), db, SiteGenSpec{
		Table:    "regions",
		NameCol:  "name",
		AttrCols: []string{"pop"},
	})
	if err != nil {
		t.Fatalf("gen sites: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(sites))
	}
	north, ok := sites["north"]
	if !ok {
		t.Fatalf("north site missing: %v", sites)
	}
	if north.Name() != "north" || north.RelName() != domain.RelAt {
		t.Fatalf("unexpected site: name=%q rel=%q", north.Name(), north.RelName())
	}
	if v, _ := north.Attr("pop"); v != int64(10) {
		t.Fatalf("site attribute pop = %v (%T), want 10", v, v)
	}
}

func TestGenGroupsFromDB(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sites, err := GenSitesFromDB(ctx, db, SiteGenSpec{Table: "regions", NameCol: "name"})
	if err != nil {
		t.Fatalf("gen sites: %v", err)
	}

	groups, err := GenGroupsFromDB(ctx, db, GroupGenSpec{
		Table:    "people",
		AttrCols: []string{"age_group"},
		RelCols:  []RelSpec{{Name: "region", Col: "region", Sites: sites}},
		AttrFix:  map[string]any{"species": "human"},
		RelAt:    "region",
		MassCol:  "n",
	})
	if err != nil {
		t.Fatalf("gen groups: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 aggregate groups, got %d", len(groups))
	}

	total := 0.0
	byKey := make(map[string]*domain.Group, len(groups))
	for _, g := range groups {
		total += g.Mass()
		age, _ := g.Attr("age_group")
		region, _ := g.Rel("region")
		site, ok := region.(*domain.Site)
		if !ok {
			t.Fatalf("region relation must carry the site, got %T", region)
		}
		byKey[site.Name()+"/"+age.(string)] = g
	}
	if total != 130 {
		t.Fatalf("aggregate mass = %g, want 130", total)
	}

	g, ok := byKey["north/adult"]
	if !ok {
		t.Fatalf("north adult group missing: %v", byKey)
	}
	if g.Mass() != 60 {
		t.Fatalf("north adult mass = %g, want 60", g.Mass())
	}
	if g.Name() != "people" {
		t.Fatalf("group name = %q, want table name", g.Name())
	}
	if v, _ := g.Attr("species"); v != "human" {
		t.Fatalf("fixed attribute missing: %v", g.Attrs())
	}
	at, _ := g.Rel(domain.RelAt)
	region, _ := g.Rel("region")
	if at != region {
		t.Fatalf("location relation must mirror the named relation")
	}
}

func TestGenGroupsFromDBCountsRowsWithoutMassCol(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sites, _ := GenSitesFromDB(ctx, db, SiteGenSpec{Table: "regions", NameCol: "name"})
	groups, err := GenGroupsFromDB(ctx, db, GroupGenSpec{
		Table:   "people",
		RelCols: []RelSpec{{Name: "region", Col: "region", Sites: sites}},
	})
	if err != nil {
		t.Fatalf("gen groups: %v", err)
	}
	total := 0.0
	for _, g := range groups {
		total += g.Mass()
	}
	if len(groups) != 2 || total != 3 {
		t.Fatalf("row counting wrong: %d groups, total %g", len(groups), total)
	}
}

func TestGenGroupsFromDBUnknownSite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO people VALUES ('west', 'adult', 5)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	sites, _ := GenSitesFromDB(ctx, db, SiteGenSpec{Table: "regions", NameCol: "name"})

	_, err := GenGroupsFromDB(ctx, db, GroupGenSpec{
		Table:   "people",
		RelCols: []RelSpec{{Name: "region", Col: "region", Sites: sites}},
	})
	if err == nil || !strings.Contains(err.Error(), `no site "west"`) {
		t.Fatalf("expected unknown-site error, got %v", err)
	}
}

func TestGenGroupsFromDBRequiresTable(t *testing.T) {
	if _, err := GenGroupsFromDB(context.Background(), nil, GroupGenSpec{}); err == nil {
		t.Fatalf("missing table must fail fast")
	}
	if _, err := GenSitesFromDB(context.Background(), nil, SiteGenSpec{Table: "x"}); err == nil {
		t.Fatalf("missing name column must fail fast")
	}
}
