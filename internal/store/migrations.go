package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/me/folio/pkg/model"
)

// schema contains DDL that is not derived from the content collections.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		last_login_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_admins_email ON admins(email)`,
}

// indexes are created after every collection table exists.
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_slug ON posts(slug)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published, published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_read ON messages("read")`,
	`CREATE INDEX IF NOT EXISTS idx_projects_featured ON projects(featured)`,
}

// migrate creates the collection tables, adds any fields missing from
// tables created by an older build, then creates indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, c := range model.Collections() {
		if _, err := db.ExecContext(ctx, createTableSQL(c)); err != nil {
			return fmt.Errorf("create %s: %w", c.Name, err)
		}
		for _, f := range c.Fields {
			alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", c.Name, columnDef(f))
			if err := addColumnIfNotExists(ctx, db, c.Name, f.Name, alter); err != nil {
				return fmt.Errorf("alter %s.%s: %w", c.Name, f.Name, err)
			}
		}
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func createTableSQL(c model.Collection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\t\tid         TEXT PRIMARY KEY", c.Name)
	for _, f := range c.Fields {
		fmt.Fprintf(&b, ",\n\t\t%s", columnDef(f))
	}
	b.WriteString(",\n\t\tcreated_at TEXT NOT NULL,\n\t\tupdated_at TEXT NOT NULL\n\t)")
	return b.String()
}

func columnDef(f model.Field) string {
	switch f.Type {
	case model.FieldInt, model.FieldBool:
		return fmt.Sprintf("%s INTEGER NOT NULL DEFAULT 0", quoteIdent(f.Name))
	default:
		return fmt.Sprintf("%s TEXT NOT NULL DEFAULT ''", quoteIdent(f.Name))
	}
}

// quoteIdent quotes a column name. Some field names ("read", "current")
// collide with SQL keywords.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}

	exists := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			rows.Close()
			return err
		}
		if strings.EqualFold(name, column) {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
