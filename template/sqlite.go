package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS templates (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'draft',
	files       TEXT NOT NULL DEFAULT '[]',
	fields      TEXT NOT NULL DEFAULT '[]',
	body        TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_templates_status ON templates(status);

CREATE TABLE IF NOT EXISTS sources (
	document_id TEXT PRIMARY KEY,
	data        BLOB NOT NULL
);
`

// SQLite is a Repository and SourceStore backed by a SQLite database.
// Files and fields are stored as JSON columns.
type SQLite struct {
	conn *sql.DB
}

var (
	_ Repository  = (*SQLite)(nil)
	_ SourceStore = (*SQLite)(nil)
)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("template: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("template: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("template: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// Save validates t and inserts or replaces it.
func (db *SQLite) Save(ctx context.Context, t Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("template: %w", err)
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}

	files, err := json.Marshal(t.Files)
	if err != nil {
		return fmt.Errorf("template: encode files: %w", err)
	}
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("template: encode fields: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO templates (id, name, category, description, status, files, fields, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			category    = excluded.category,
			description = excluded.description,
			status      = excluded.status,
			files       = excluded.files,
			fields      = excluded.fields,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, t.ID, t.Name, t.Category, t.Description, string(t.Status), string(files), string(fields), t.Body, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("template: upsert %s: %w", t.ID, err)
	}
	return nil
}

// Load returns one template.
func (db *SQLite) Load(ctx context.Context, id string) (Template, error) {
	var (
		t             Template
		status        string
		files, fields string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, category, description, status, files, fields, body, updated_at
		FROM templates WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Category, &t.Description, &status, &files, &fields, &t.Body, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	if err != nil {
		return Template{}, fmt.Errorf("template: load %s: %w", id, err)
	}

	t.Status = Status(status)
	if err := json.Unmarshal([]byte(files), &t.Files); err != nil {
		return Template{}, fmt.Errorf("template: decode files of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(fields), &t.Fields); err != nil {
		return Template{}, fmt.Errorf("template: decode fields of %s: %w", id, err)
	}
	return t, nil
}

// List returns template summaries, most recently updated first. An empty
// status lists every template.
func (db *SQLite) List(ctx context.Context, status Status) ([]Summary, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, category, status, json_array_length(files), json_array_length(fields), updated_at
		FROM templates
		WHERE ? = '' OR status = ?
		ORDER BY updated_at DESC, id`, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("template: list: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var st string
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &st, &s.Files, &s.Fields, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Status = Status(st)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a template. Its source documents are removed as well unless
// another template still references them.
func (db *SQLite) Delete(ctx context.Context, id string) error {
	t, err := db.Load(ctx, id)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("template: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("template: delete %s: %w", id, err)
	}
	for _, d := range t.Files {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM sources WHERE document_id = ?
			AND NOT EXISTS (
				SELECT 1 FROM templates, json_each(templates.files)
				WHERE json_extract(json_each.value, '$.id') = ?
			)`, d.ID, d.ID)
		if err != nil {
			return fmt.Errorf("template: delete source %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// PutSource stores the original bytes of a document.
func (db *SQLite) PutSource(ctx context.Context, documentID string, data []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (document_id, data) VALUES (?, ?)
		ON CONFLICT(document_id) DO UPDATE SET data = excluded.data`, documentID, data)
	if err != nil {
		return fmt.Errorf("template: put source %s: %w", documentID, err)
	}
	return nil
}

// GetSource returns the stored bytes of a document.
func (db *SQLite) GetSource(ctx context.Context, documentID string) ([]byte, error) {
	var data []byte
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM sources WHERE document_id = ?`, documentID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("template: get source %s: %w", documentID, err)
	}
	return data, nil
}
