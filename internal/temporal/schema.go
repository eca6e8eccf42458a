package temporal

import (
	"context"
	"fmt"
	"strings"
)

// exclusionConstraint is one GiST EXCLUDE constraint to be ensured on a
// history table. entity_id is cast to text because UUID columns cannot
// participate in a GiST index directly.
type exclusionConstraint struct {
	table  string
	name   string
	clause string
}

// tableStatements returns the CREATE TABLE / CREATE INDEX statements for
// this type's clock and history tables. Statements are idempotent.
func (t *Type) tableStatements() []string {
	var stmts []string

	var clock strings.Builder
	fmt.Fprintf(&clock, "CREATE TABLE IF NOT EXISTS %s (\n", t.ClockTable())
	clock.WriteString("\tid uuid PRIMARY KEY,\n")
	fmt.Fprintf(&clock, "\tentity_id uuid NOT NULL REFERENCES %s (id),\n", t.entityTable())
	clock.WriteString("\ttick integer NOT NULL,\n")
	clock.WriteString("\trecorded_at timestamptz NOT NULL,\n")
	if t.HasActivity() {
		fmt.Fprintf(&clock, "\tactivity_id uuid NOT NULL REFERENCES %s (id),\n", t.qualified(t.cfg.ActivityTable))
	}
	fmt.Fprintf(&clock, "\tCONSTRAINT %s UNIQUE (entity_id, tick)", truncateIdentifier("uq_"+t.clockTable+"_tick"))
	if t.HasActivity() {
		// One activity may serve many entities, but never two ticks of the
		// same entity.
		fmt.Fprintf(&clock, ",\n\tCONSTRAINT %s UNIQUE (entity_id, activity_id)", truncateIdentifier("uq_"+t.clockTable+"_activity"))
	}
	clock.WriteString("\n)")
	stmts = append(stmts, clock.String())

	for _, f := range t.cfg.Fields {
		table := t.historyTables[f.Name]
		stmts = append(stmts, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (\n"+
				"\tid uuid PRIMARY KEY,\n"+
				"\tentity_id uuid NOT NULL REFERENCES %s (id),\n"+
				"\tvalue %s,\n"+
				"\teffective tstzrange NOT NULL,\n"+
				"\tvclock int4range NOT NULL\n"+
				")",
			t.HistoryTable(f.Name), t.entityTable(), f.SQLType,
		))
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING gist (effective)",
			truncateIdentifier("ix_"+table+"_effective"), t.HistoryTable(f.Name),
		))
	}

	return stmts
}

// exclusionConstraints returns the non-overlap constraints for every
// history table: for a fixed entity, neither the wall-clock ranges nor the
// tick ranges of one field's history may intersect.
func (t *Type) exclusionConstraints() []exclusionConstraint {
	var out []exclusionConstraint
	for _, f := range t.cfg.Fields {
		table := t.historyTables[f.Name]
		out = append(out,
			exclusionConstraint{
				table:  t.HistoryTable(f.Name),
				name:   truncateIdentifier(table + "_excl_effective"),
				clause: "(entity_id::text) WITH =, effective WITH &&",
			},
			exclusionConstraint{
				table:  t.HistoryTable(f.Name),
				name:   truncateIdentifier(table + "_excl_vclock"),
				clause: "(entity_id::text) WITH =, vclock WITH &&",
			},
		)
	}
	return out
}

// EnsureSchema creates the clock and history tables, GiST indexes, and
// exclusion constraints for this type if they do not already exist. The
// btree_gist extension is required for the text-equality half of the
// exclusion constraints.
func (t *Type) EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS btree_gist"); err != nil {
		return fmt.Errorf("failed to ensure btree_gist extension: %w", err)
	}

	for _, stmt := range t.tableStatements() {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure temporal tables for %s: %w", t.cfg.EntityTable, err)
		}
	}

	for _, c := range t.exclusionConstraints() {
		var exists bool
		err := q.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = $1)", c.name,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check constraint %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE ONLY %s ADD CONSTRAINT %s EXCLUDE USING gist (%s)", c.table, c.name, c.clause)
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add constraint %s: %w", c.name, err)
		}
	}

	return nil
}
