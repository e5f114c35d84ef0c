package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/query"
	"github.com/artpar/datagate/domain/record"
	"github.com/artpar/datagate/ports"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = ports.ErrRecordNotFound

// RecordStore persists records in SQLite, one table per model. Declared
// fields live in a JSON column; secondary indexes become expression
// indexes over json_extract so planned queries stay indexed reads.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a record store on an open database.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Migrate creates a table and expression indexes for every registered
// model. Safe to run repeatedly.
func (s *RecordStore) Migrate(reg *registry.Registry) error {
	for _, model := range reg.Models() {
		table := tableName(model.Name)

		_, err := s.db.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				owner TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				fields TEXT NOT NULL
			)
		`, table))
		if err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}

		for _, ix := range model.Indexes {
			stmt := fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s_%s ON %s (%s",
				table, ix.Name, table, keyExpr(ix.PartitionKey),
			)
			if ix.HasSortKey() {
				stmt += ", " + keyExpr(ix.SortKey)
			}
			stmt += ")"

			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("create index %s on %s: %w", ix.Name, table, err)
			}
		}
	}

	return nil
}

// Get retrieves a record by primary id.
func (s *RecordStore) Get(ctx context.Context, model, id string) (record.Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, owner, created_at, updated_at, fields FROM %s WHERE id = ?", tableName(model)),
		id,
	)
	return scanRecord(row)
}

// Put stores a record (create or replace).
func (s *RecordStore) Put(ctx context.Context, model string, rec record.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`
			INSERT INTO %s (id, owner, created_at, updated_at, fields)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				updated_at = excluded.updated_at,
				fields = excluded.fields
		`, tableName(model)),
		rec.ID, rec.Owner, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(), string(fields),
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Delete removes a record by primary id.
func (s *RecordStore) Delete(ctx context.Context, model, id string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableName(model)), id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Query reads records through a planned access path.
func (s *RecordStore) Query(ctx context.Context, model string, plan query.Plan, limit int) ([]record.Record, error) {
	where := keyExpr(plan.PartitionKey) + " = ?"
	args := []any{bindValue(plan.PartitionValue)}

	order := "id"
	if plan.UsesSort() {
		order = keyExpr(plan.SortKey)

		if plan.SortRange != nil {
			cond, condArgs, err := rangeCond(keyExpr(plan.SortKey), *plan.SortRange)
			if err != nil {
				return nil, err
			}
			where += " AND " + cond
			args = append(args, condArgs...)
		} else {
			where += " AND " + keyExpr(plan.SortKey) + " = ?"
			args = append(args, bindValue(plan.SortValue))
		}
	}

	stmt := fmt.Sprintf(
		"SELECT id, owner, created_at, updated_at, fields FROM %s WHERE %s ORDER BY %s",
		tableName(model), where, order,
	)
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Scan reads every record of a model. The planner never falls back to
// this; callers opt in to an unindexed read explicitly by name.
func (s *RecordStore) Scan(ctx context.Context, model string, limit int) ([]record.Record, error) {
	stmt := fmt.Sprintf("SELECT id, owner, created_at, updated_at, fields FROM %s ORDER BY id", tableName(model))
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func rangeCond(expr string, r query.Range) (string, []any, error) {
	switch r.Op {
	case query.RangeGT:
		return expr + " > ?", []any{bindValue(r.Value)}, nil
	case query.RangeGTE:
		return expr + " >= ?", []any{bindValue(r.Value)}, nil
	case query.RangeLT:
		return expr + " < ?", []any{bindValue(r.Value)}, nil
	case query.RangeLTE:
		return expr + " <= ?", []any{bindValue(r.Value)}, nil
	case query.RangeBetween:
		return expr + " BETWEEN ? AND ?", []any{bindValue(r.Value), bindValue(r.Upper)}, nil
	case query.RangeBegins:
		prefix, ok := r.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("begins_with requires a string operand")
		}
		return expr + " LIKE ? ESCAPE '\\'", []any{escapeLike(prefix) + "%"}, nil
	}
	return "", nil, fmt.Errorf("unknown range operator %q", r.Op)
}

// keyExpr maps a key field to a column or a json_extract expression.
func keyExpr(field string) string {
	switch field {
	case schema.SystemFieldID, schema.SystemFieldOwner,
		schema.SystemFieldCreatedAt, schema.SystemFieldUpdatedAt:
		return field
	}
	return fmt.Sprintf("json_extract(fields, '$.%s')", field)
}

// bindValue normalizes values for SQLite comparison with json_extract
// output: booleans become 0/1 like JSON booleans do.
func bindValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// tableName derives the table for a model. Model names are validated
// identifiers, so interpolation is safe.
func tableName(model string) string {
	return "records_" + model
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (record.Record, error) {
	var rec record.Record
	var fields string
	var created, updated time.Time

	err := row.Scan(&rec.ID, &rec.Owner, &created, &updated, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, ErrNotFound
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("scan record: %w", err)
	}

	rec.CreatedAt = created
	rec.UpdatedAt = updated
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return record.Record{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	return rec, nil
}
