package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/me/folio/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every pooled connection to ":memory:" would get its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Collection records ---

func (s *SQLiteStore) Select(ctx context.Context, c model.Collection, q Query) ([]model.Record, int, error) {
	if err := checkCollection(c); err != nil {
		return nil, 0, err
	}
	opts := model.ListOptions{Limit: q.Limit, Offset: q.Offset}
	opts.Clamp()
	s.logger.Debug("sql", "op", "select", "table", c.Name, "filters", len(q.Filters), "order", q.Order, "limit", opts.Limit, "offset", opts.Offset)

	where, args, err := whereClause(c, q.Filters)
	if err != nil {
		return nil, 0, err
	}
	orderBy, err := orderClause(c, q.Order)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.Name+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns(c)+` FROM `+c.Name+where+orderBy+` LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecord(c, rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// Get returns the record with the given id, or nil if it does not exist.
func (s *SQLiteStore) Get(ctx context.Context, c model.Collection, id string) (model.Record, error) {
	return s.GetBy(ctx, c, "id", id)
}

// GetBy returns the first record whose field equals value, or nil.
func (s *SQLiteStore) GetBy(ctx context.Context, c model.Collection, field string, value any) (model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	s.logger.Debug("sql", "op", "select_by", "table", c.Name, "field", field)

	where, args, err := whereClause(c, []Filter{{Field: field, Value: value}})
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns(c)+` FROM `+c.Name+where+` LIMIT 1`, args...)
	rec, err := scanRecord(c, row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert validates rec against the collection, assigns id and timestamps,
// and returns the stored record.
func (s *SQLiteStore) Insert(ctx context.Context, c model.Collection, rec model.Record) (model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	values, err := normalize(c, rec, true)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := s.now().Format(time.RFC3339Nano)
	s.logger.Debug("sql", "op", "insert", "table", c.Name, "id", id)

	cols := []string{"id"}
	args := []any{id}
	for _, f := range c.Fields {
		cols = append(cols, quoteIdent(f.Name))
		args = append(args, toDB(values[f.Name]))
	}
	cols = append(cols, "created_at", "updated_at")
	args = append(args, now, now)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+c.Name+` (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, wrapConstraint(err)
	}
	return s.Get(ctx, c, id)
}

// Update applies a partial patch to the record with the given id.
// Returns nil if the record does not exist.
func (s *SQLiteStore) Update(ctx context.Context, c model.Collection, id string, patch model.Record) (model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	values, err := normalize(c, patch, false)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("sql", "op", "update", "table", c.Name, "id", id, "fields", len(values))

	var sets []string
	var args []any
	for _, f := range c.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		sets = append(sets, quoteIdent(f.Name)+" = ?")
		args = append(args, toDB(v))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().Format(time.RFC3339Nano), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE `+c.Name+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, wrapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.Get(ctx, c, id)
}

// Delete removes a record. It reports whether a row was deleted.
func (s *SQLiteStore) Delete(ctx context.Context, c model.Collection, id string) (bool, error) {
	if err := checkCollection(c); err != nil {
		return false, err
	}
	s.logger.Debug("sql", "op", "delete", "table", c.Name, "id", id)

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+c.Name+` WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Count returns the number of records matching filters.
func (s *SQLiteStore) Count(ctx context.Context, c model.Collection, filters ...Filter) (int, error) {
	if err := checkCollection(c); err != nil {
		return 0, err
	}
	s.logger.Debug("sql", "op", "count", "table", c.Name)

	where, args, err := whereClause(c, filters)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.Name+where, args...).Scan(&n)
	return n, err
}

// --- Admin accounts ---

func (s *SQLiteStore) CreateAdmin(ctx context.Context, a *model.Admin) error {
	if a.ID == "" {
		a.ID = "adm_" + uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.Email = normalizeEmail(a.Email)
	s.logger.Debug("sql", "op", "insert", "table", "admins", "id", a.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, a.CreatedAt.Format(time.RFC3339Nano),
	)
	return wrapConstraint(err)
}

func (s *SQLiteStore) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	s.logger.Debug("sql", "op", "select_by_email", "table", "admins")

	var a model.Admin
	var createdAt, lastLogin string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at, last_login_at FROM admins WHERE email = ?`,
		normalizeEmail(email),
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &createdAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.LastLoginAt, _ = time.Parse(time.RFC3339Nano, lastLogin)
	return &a, nil
}

func (s *SQLiteStore) TouchAdminLogin(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "touch_login", "table", "admins", "id", id)
	_, err := s.db.ExecContext(ctx,
		`UPDATE admins SET last_login_at = ? WHERE id = ?`, s.now().Format(time.RFC3339Nano), id)
	return err
}

// --- helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func checkCollection(c model.Collection) error {
	known, ok := model.LookupCollection(c.Name)
	if !ok || len(known.Fields) != len(c.Fields) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c.Name)
	}
	return nil
}

func selectColumns(c model.Collection) string {
	cols := []string{"id"}
	for _, f := range c.Fields {
		cols = append(cols, quoteIdent(f.Name))
	}
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

func scanRecord(c model.Collection, row scanner) (model.Record, error) {
	var id, createdAt, updatedAt string
	dest := []any{&id}
	texts := make(map[string]*string)
	ints := make(map[string]*int64)
	for _, f := range c.Fields {
		switch f.Type {
		case model.FieldInt, model.FieldBool:
			v := new(int64)
			ints[f.Name] = v
			dest = append(dest, v)
		default:
			v := new(string)
			texts[f.Name] = v
			dest = append(dest, v)
		}
	}
	dest = append(dest, &createdAt, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec := model.Record{"id": id, "created_at": createdAt, "updated_at": updatedAt}
	for _, f := range c.Fields {
		switch f.Type {
		case model.FieldInt:
			rec[f.Name] = *ints[f.Name]
		case model.FieldBool:
			rec[f.Name] = *ints[f.Name] != 0
		default:
			rec[f.Name] = *texts[f.Name]
		}
	}
	return rec, nil
}

// normalize checks rec against the collection's allow-list and coerces
// values to their field types. With full set, required fields must be
// present and non-empty and absent fields take their zero value.
func normalize(c model.Collection, rec model.Record, full bool) (map[string]any, error) {
	for name := range rec {
		if name == "id" || name == "created_at" || name == "updated_at" {
			continue
		}
		if _, ok := c.Field(name); !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, c.Name, name)
		}
	}

	out := make(map[string]any, len(c.Fields))
	var details []model.FieldError
	for _, f := range c.Fields {
		raw, present := rec[f.Name]
		if !present && !full {
			continue
		}
		v, err := f.Coerce(raw)
		if err != nil {
			details = append(details, model.FieldError{Field: f.Name, Message: err.Error()})
			continue
		}
		if f.Required && (full || present) {
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				details = append(details, model.FieldError{Field: f.Name, Message: "required"})
				continue
			}
		}
		out[f.Name] = v
	}
	if len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}
	return out, nil
}

func whereClause(c model.Collection, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, flt := range filters {
		if !c.HasColumn(flt.Field) {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, c.Name, flt.Field)
		}
		v := flt.Value
		if f, ok := c.Field(flt.Field); ok {
			coerced, err := f.Coerce(v)
			if err != nil {
				return "", nil, &ValidationError{Details: []model.FieldError{{Field: f.Name, Message: err.Error()}}}
			}
			v = coerced
		}
		conds = append(conds, quoteIdent(flt.Field)+" = ?")
		args = append(args, toDB(v))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func orderClause(c model.Collection, order string) (string, error) {
	if order == "" {
		order = c.DefaultOrder
	}
	if order == "" {
		return " ORDER BY created_at DESC", nil
	}
	dir := "ASC"
	field := order
	if strings.HasPrefix(order, "-") {
		dir = "DESC"
		field = order[1:]
	}
	if !c.HasColumn(field) {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, c.Name, field)
	}
	return fmt.Sprintf(" ORDER BY %s %s, created_at DESC", quoteIdent(field), dir), nil
}

func toDB(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func wrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
