// Package datasets bridges relational data and blob storage: it aggregates
// tabular populations into groups, generates sites from reference tables and
// exports probe series as stored artifacts.
package datasets

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pramcore/pkg/domain"
)

// RelSpec maps one table column to a relation on the generated groups. The
// column value selects the site from Sites.
type RelSpec struct {
	Name  string
	Col   string
	Sites map[string]*domain.Site
}

// GroupGenSpec describes how to aggregate a table into groups: rows are
// grouped by the selected attribute and relation columns, each aggregate row
// becoming one group.
type GroupGenSpec struct {
	Table    string
	AttrCols []string
	RelCols  []RelSpec
	// AttrFix and RelFix are applied to every generated group and mask
	// same-named columns.
	AttrFix map[string]any
	RelFix  map[string]any
	// RelAt names the relation whose site becomes every group's current
	// location.
	RelAt string
	// MassCol, when set, sums this column for group mass; the default counts
	// rows.
	MassCol string
	Limit   int
}

// GenGroupsFromDB aggregates a tabular population into groups. Rows with NULL
// in any selected column are skipped.
func GenGroupsFromDB(ctx context.Context, db *sql.DB, spec GroupGenSpec) ([]*domain.Group, error) {
	if spec.Table == "" {
		return nil, fmt.Errorf("gen groups: table required")
	}

	attrCols := make([]string, 0, len(spec.AttrCols))
	for _, c := range spec.AttrCols {
		if _, fixed := spec.AttrFix[c]; fixed {
			continue
		}
		attrCols = append(attrCols, c)
	}
	relCols := make([]RelSpec, 0, len(spec.RelCols))
	for _, r := range spec.RelCols {
		if _, fixed := spec.RelFix[r.Name]; fixed {
			continue
		}
		relCols = append(relCols, r)
	}

	cols := make([]string, 0, len(attrCols)+len(relCols))
	cols = append(cols, attrCols...)
	for _, r := range relCols {
		cols = append(cols, r.Col)
	}

	mass := "COUNT(*)"
	if spec.MassCol != "" {
		mass = fmt.Sprintf("SUM(%s)", spec.MassCol)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s AS m", mass)
	for _, c := range cols {
		fmt.Fprintf(&b, ", %s", c)
	}
	fmt.Fprintf(&b, " FROM %s", spec.Table)
	if len(cols) > 0 {
		notNull := make([]string, len(cols))
		for i, c := range cols {
			notNull[i] = c + " IS NOT NULL"
		}
		fmt.Fprintf(&b, " WHERE %s GROUP BY %s", strings.Join(notNull, " AND "), strings.Join(cols, ", "))
	}
	if spec.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", spec.Limit)
	}

	rows, err := db.QueryContext(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("gen groups: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []*domain.Group
	for rows.Next() {
		dest := make([]any, 1+len(cols))
		for i := range dest {
			var v any
			dest[i] = &v
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("gen groups: scan: %w", err)
		}
		m, err := toMass(*dest[0].(*any))
		if err != nil {
			return nil, fmt.Errorf("gen groups: %w", err)
		}

		attr := make(map[string]any, len(spec.AttrFix)+len(attrCols))
		for k, v := range spec.AttrFix {
			attr[k] = v
		}
		rel := make(map[string]any, len(spec.RelFix)+len(relCols)+1)
		for k, v := range spec.RelFix {
			rel[k] = v
		}

		i := 1
		for _, c := range attrCols {
			attr[c] = normalizeValue(*dest[i].(*any))
			i++
		}
		for _, r := range relCols {
			key := fmt.Sprintf("%v", normalizeValue(*dest[i].(*any)))
			site, ok := r.Sites[key]
			if !ok {
				return nil, fmt.Errorf("gen groups: no site %q for relation %q", key, r.Name)
			}
			rel[r.Name] = site
			i++
		}
		if spec.RelAt != "" {
			at, ok := rel[spec.RelAt]
			if !ok {
				return nil, fmt.Errorf("gen groups: location relation %q not present", spec.RelAt)
			}
			rel[domain.RelAt] = at
		}

		groups = append(groups, domain.NewGroup(spec.Table, m, attr, rel))
	}
	return groups, rows.Err()
}

// SiteGenSpec describes how to generate sites from a reference table, one
// site per row.
type SiteGenSpec struct {
	Table    string
	NameCol  string
	RelName  string
	AttrCols []string
	Limit    int
}

// GenSitesFromDB generates one site per table row, keyed by the name column's
// value.
func GenSitesFromDB(ctx context.Context, db *sql.DB, spec SiteGenSpec) (map[string]*domain.Site, error) {
	if spec.Table == "" || spec.NameCol == "" {
		return nil, fmt.Errorf("gen sites: table and name column required")
	}
	relName := spec.RelName
	if relName == "" {
		relName = domain.RelAt
	}

	cols := append(append([]string{}, spec.AttrCols...), spec.NameCol)
	qry := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), spec.Table)
	if spec.Limit > 0 {
		qry = fmt.Sprintf("%s LIMIT %d", qry, spec.Limit)
	}

	rows, err := db.QueryContext(ctx, qry)
	if err != nil {
		return nil, fmt.Errorf("gen sites: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sites := make(map[string]*domain.Site)
	for rows.Next() {
		dest := make([]any, len(cols))
		for i := range dest {
			var v any
			dest[i] = &v
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("gen sites: scan: %w", err)
		}
		attr := make(map[string]any, len(spec.AttrCols))
		for i, c := range spec.AttrCols {
			attr[c] = normalizeValue(*dest[i].(*any))
		}
		name := fmt.Sprintf("%v", normalizeValue(*dest[len(cols)-1].(*any)))
		sites[name] = domain.NewSiteCustom(name, attr, relName, 1)
	}
	return sites, rows.Err()
}

// normalizeValue folds driver-specific scan types into the attribute value
// vocabulary.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toMass(v any) (float64, error) {
	switch m := v.(type) {
	case int64:
		return float64(m), nil
	case float64:
		return m, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported mass type %T", v)
	}
}
