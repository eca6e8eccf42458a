package temporal

import (
	"context"
	"strings"
	"testing"
)

func TestTableStatementsWithActivity(t *testing.T) {
	typ := newTestType(t, true)
	stmts := typ.tableStatements()

	// Clock table plus table+index per tracked field.
	if len(stmts) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(stmts))
	}

	clock := stmts[0]
	if !strings.Contains(clock, "CREATE TABLE IF NOT EXISTS public.items_clock") {
		t.Fatalf("unexpected clock table statement: %q", clock)
	}
	if !strings.Contains(clock, "UNIQUE (entity_id, tick)") {
		t.Fatalf("clock table must be unique per (entity, tick): %q", clock)
	}
	if !strings.Contains(clock, "UNIQUE (entity_id, activity_id)") {
		t.Fatalf("clock table must forbid activity reuse per entity: %q", clock)
	}
	if !strings.Contains(clock, "activity_id uuid NOT NULL REFERENCES public.item_activity (id)") {
		t.Fatalf("clock table must reference the activity table: %q", clock)
	}

	title := stmts[1]
	if !strings.Contains(title, "public.items_history_title") ||
		!strings.Contains(title, "value text") ||
		!strings.Contains(title, "effective tstzrange NOT NULL") ||
		!strings.Contains(title, "vclock int4range NOT NULL") {
		t.Fatalf("unexpected title history statement: %q", title)
	}

	if !strings.Contains(stmts[2], "USING gist (effective)") {
		t.Fatalf("expected GiST index on effective: %q", stmts[2])
	}

	if !strings.Contains(stmts[3], "value integer") {
		t.Fatalf("num history should use the declared SQL type: %q", stmts[3])
	}
}

func TestTableStatementsWithoutActivity(t *testing.T) {
	typ := newTestType(t, false)
	clock := typ.tableStatements()[0]

	if strings.Contains(clock, "activity_id") {
		t.Fatalf("clock table must not carry an activity column: %q", clock)
	}
}

func TestExclusionConstraints(t *testing.T) {
	typ := newTestType(t, false)
	constraints := typ.exclusionConstraints()

	// Two per tracked field: wall-clock and tick ranges.
	if len(constraints) != 4 {
		t.Fatalf("expected 4 constraints, got %d", len(constraints))
	}

	byName := map[string]exclusionConstraint{}
	for _, c := range constraints {
		if len(c.name) > maxIdentifierLen {
			t.Fatalf("constraint name %q exceeds identifier limit", c.name)
		}
		byName[c.name] = c
	}

	eff, ok := byName["items_history_title_excl_effective"]
	if !ok || eff.clause != "(entity_id::text) WITH =, effective WITH &&" {
		t.Fatalf("unexpected effective constraint: %+v", eff)
	}
	vc, ok := byName["items_history_title_excl_vclock"]
	if !ok || vc.clause != "(entity_id::text) WITH =, vclock WITH &&" {
		t.Fatalf("unexpected vclock constraint: %+v", vc)
	}
}

func TestEnsureSchemaAddsMissingConstraints(t *testing.T) {
	typ := newTestType(t, false)
	fq := &fakeQuerier{rows: map[string][][]any{
		"pg_constraint": {{false}},
	}}

	if err := typ.EnsureSchema(context.Background(), fq); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var alters, creates int
	for _, call := range fq.execs {
		if strings.HasPrefix(call.sql, "ALTER TABLE ONLY") {
			alters++
			if !strings.Contains(call.sql, "EXCLUDE USING gist") {
				t.Fatalf("unexpected ALTER statement: %q", call.sql)
			}
		}
		if strings.HasPrefix(call.sql, "CREATE") {
			creates++
		}
	}
	if alters != 4 {
		t.Fatalf("expected 4 exclusion constraints to be added, got %d", alters)
	}
	// Extension, clock table, two history tables, two indexes.
	if creates != 6 {
		t.Fatalf("expected 6 CREATE statements, got %d", creates)
	}
}

func TestEnsureSchemaSkipsExistingConstraints(t *testing.T) {
	typ := newTestType(t, false)
	fq := &fakeQuerier{rows: map[string][][]any{
		"pg_constraint": {{true}},
	}}

	if err := typ.EnsureSchema(context.Background(), fq); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, call := range fq.execs {
		if strings.HasPrefix(call.sql, "ALTER TABLE") {
			t.Fatalf("existing constraints must not be re-added: %q", call.sql)
		}
	}
}
