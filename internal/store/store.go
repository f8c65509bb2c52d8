package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"modelforge/internal/db"
	"modelforge/internal/dsl"
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrDuplicateName = errors.New("entity name or table already exists")
)

// SQLStore keeps entity descriptions and the field-type catalog in a relational database.
type SQLStore struct {
	conn    *sql.DB
	dialect db.Dialect
	log     *zap.Logger

	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, log *zap.Logger) *SQLStore {
	if log == nil {
		log = zap.NewNop()
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &SQLStore{
		conn:    conn,
		dialect: dialect,
		log:     log,
		entropy: ulid.Monotonic(src, 0),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLStore) q(query string) string { return s.dialect.Rebind(query) }

// Bootstrap creates the store tables and seeds the catalog. Existing catalog rows are kept.
func (s *SQLStore) Bootstrap(ctx context.Context, catalog []dsl.FieldType) error {
	if err := db.ApplyDDL(ctx, s.conn, s.log, db.Schema()); err != nil {
		return err
	}
	now := s.now()
	for i, ft := range catalog {
		res, err := s.conn.ExecContext(ctx, s.q(`insert into field_types (id, label, column_type, position, created_at, updated_at)
values (?, ?, ?, ?, ?, ?) on conflict do nothing`), s.newID(), ft.Label, ft.ColumnType, i, now, now)
		if err != nil {
			return fmt.Errorf("seed field type %q: %w", ft.ColumnType, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.log.Debug("field type seeded", zap.String("column_type", ft.ColumnType))
		}
	}
	return nil
}

// FieldTypes returns the catalog in seed order.
func (s *SQLStore) FieldTypes(ctx context.Context) ([]dsl.FieldType, error) {
	rows, err := s.conn.QueryContext(ctx, `select id, label, column_type from field_types order by position, label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dsl.FieldType
	for rows.Next() {
		var ft dsl.FieldType
		if err := rows.Scan(&ft.ID, &ft.Label, &ft.ColumnType); err != nil {
			return nil, err
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

// FieldTypeByToken looks up one catalog entry by its exact column-type token.
func (s *SQLStore) FieldTypeByToken(ctx context.Context, token string) (dsl.FieldType, error) {
	var ft dsl.FieldType
	err := s.conn.QueryRowContext(ctx, s.q(`select id, label, column_type from field_types where column_type = ?`), token).
		Scan(&ft.ID, &ft.Label, &ft.ColumnType)
	if errors.Is(err, sql.ErrNoRows) {
		return ft, ErrNotFound
	}
	return ft, err
}

// Catalog returns the catalog as a lookup table for dsl.Resolve.
func (s *SQLStore) Catalog(ctx context.Context) (dsl.CatalogList, error) {
	items, err := s.FieldTypes(ctx)
	if err != nil {
		return nil, err
	}
	return dsl.CatalogList(items), nil
}

// NameTaken reports whether another entity already claims name or table.
func (s *SQLStore) NameTaken(ctx context.Context, name, table, exceptID string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, s.q(`select count(*) from entities where (name = ? or table_name = ?) and id <> ?`),
		name, table, exceptID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create stores e and its fields in one transaction, assigning IDs and timestamps.
func (s *SQLStore) Create(ctx context.Context, e *dsl.Entity) error {
	taken, err := s.NameTaken(ctx, e.Name, e.Table, "")
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateName
	}

	cols, err := encodeLists(e)
	if err != nil {
		return err
	}
	e.ID = s.newID()
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`insert into entities (id, name, table_name, fillable, relations, appends, casts, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			e.ID, e.Name, e.Table, cols.fillable, cols.relations, cols.appends, cols.casts, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateName
			}
			return fmt.Errorf("insert entity: %w", err)
		}
		return s.insertFields(ctx, tx, e)
	})
}

// Update rewrites the entity row and replaces its whole field set.
func (s *SQLStore) Update(ctx context.Context, e *dsl.Entity) error {
	taken, err := s.NameTaken(ctx, e.Name, e.Table, e.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateName
	}
	cols, err := encodeLists(e)
	if err != nil {
		return err
	}
	e.UpdatedAt = s.now()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`update entities set name = ?, table_name = ?, fillable = ?, relations = ?, appends = ?, casts = ?, updated_at = ?
where id = ?`),
			e.Name, e.Table, cols.fillable, cols.relations, cols.appends, cols.casts, e.UpdatedAt, e.ID)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateName
			}
			return fmt.Errorf("update entity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, s.q(`delete from entity_fields where entity_id = ?`), e.ID); err != nil {
			return fmt.Errorf("delete fields: %w", err)
		}
		return s.insertFields(ctx, tx, e)
	})
}

// Delete removes the entity's fields, then the entity.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`delete from entity_fields where entity_id = ?`), id); err != nil {
			return fmt.Errorf("delete fields: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.q(`delete from entities where id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete entity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Get loads one entity with its fields joined to their catalog types.
func (s *SQLStore) Get(ctx context.Context, id string) (*dsl.Entity, error) {
	row := s.conn.QueryRowContext(ctx, s.q(`select id, name, table_name, relations, appends, casts, created_at, updated_at
from entities where id = ?`), id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadFields(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns every entity, by name.
func (s *SQLStore) List(ctx context.Context) ([]*dsl.Entity, error) {
	rows, err := s.conn.QueryContext(ctx, `select id, name, table_name, relations, appends, casts, created_at, updated_at
from entities order by name`)
	if err != nil {
		return nil, err
	}
	var out []*dsl.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, e := range out {
		if err := s.loadFields(ctx, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ===== helpers =====

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) insertFields(ctx context.Context, tx *sql.Tx, e *dsl.Entity) error {
	stmt := s.q(`insert into entity_fields (id, entity_id, field_type_id, position, name, label, default_value,
nullable, is_unique, is_index, is_primary, auto_increment, is_foreign, foreign_table, foreign_key, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i := range e.Fields {
		f := &e.Fields[i]
		f.ID = s.newID()
		_, err := tx.ExecContext(ctx, stmt,
			f.ID, e.ID, f.Type.ID, i, f.Name, f.Label, nullString(f.Default),
			f.Nullable, f.Unique, f.Index, f.Primary, f.AutoIncrement, f.Foreign,
			emptyAsNull(f.ForeignTable), emptyAsNull(f.ForeignKey), e.UpdatedAt, e.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("field %q: %w", f.Name, ErrDuplicateName)
			}
			return fmt.Errorf("insert field %q: %w", f.Name, err)
		}
	}
	return nil
}

func (s *SQLStore) loadFields(ctx context.Context, e *dsl.Entity) error {
	rows, err := s.conn.QueryContext(ctx, s.q(`select f.id, f.name, f.label, f.default_value, f.nullable, f.is_unique, f.is_index,
f.is_primary, f.auto_increment, f.is_foreign, f.foreign_table, f.foreign_key, t.id, t.label, t.column_type
from entity_fields f join field_types t on t.id = f.field_type_id
where f.entity_id = ? order by f.position`), e.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	e.Fields = e.Fields[:0]
	for rows.Next() {
		var f dsl.Field
		var def, ftable, fkey sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &f.Label, &def, &f.Nullable, &f.Unique, &f.Index,
			&f.Primary, &f.AutoIncrement, &f.Foreign, &ftable, &fkey,
			&f.Type.ID, &f.Type.Label, &f.Type.ColumnType); err != nil {
			return err
		}
		if def.Valid {
			v := def.String
			f.Default = &v
		}
		f.ForeignTable = ftable.String
		f.ForeignKey = fkey.String
		e.Fields = append(e.Fields, f)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(r rowScanner) (*dsl.Entity, error) {
	var e dsl.Entity
	var relations, appends, casts string
	if err := r.Scan(&e.ID, &e.Name, &e.Table, &relations, &appends, &casts, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(relations), &e.Relations); err != nil {
		return nil, fmt.Errorf("entity %s relations: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(appends), &e.Appends); err != nil {
		return nil, fmt.Errorf("entity %s appends: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(casts), &e.Casts); err != nil {
		return nil, fmt.Errorf("entity %s casts: %w", e.ID, err)
	}
	return &e, nil
}

type listColumns struct {
	fillable, relations, appends, casts string
}

func encodeLists(e *dsl.Entity) (listColumns, error) {
	var cols listColumns
	for _, p := range []struct {
		dst *string
		v   any
	}{
		{&cols.fillable, nonNil(e.FieldNames())},
		{&cols.relations, nonNil(e.Relations)},
		{&cols.appends, nonNil(e.Appends)},
		{&cols.casts, nonNil(e.Casts)},
	} {
		b, err := json.Marshal(p.v)
		if err != nil {
			return cols, err
		}
		*p.dst = string(b)
	}
	return cols, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func emptyAsNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
