package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/jcdickinson/ferrisdoc/internal/index"
	"github.com/jcdickinson/ferrisdoc/internal/model"
)

type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_scan_id START 1;`,

		`CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY,
			root TEXT NOT NULL,
			files INTEGER NOT NULL,
			symbols INTEGER NOT NULL,
			diagnostics INTEGER NOT NULL,
			scanned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS symbols (
			id INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			module TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			visibility TEXT NOT NULL,
			file TEXT NOT NULL,
			line INTEGER NOT NULL,
			signature TEXT,
			summary TEXT,
			details TEXT,
			record TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_path ON symbols (path)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_module ON symbols (module)`,

		`CREATE TABLE IF NOT EXISTS module_docs (
			path TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS diagnostics (
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			file TEXT NOT NULL,
			line INTEGER NOT NULL,
			path TEXT,
			message TEXT NOT NULL,
			diagnostic TEXT NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// --- Scan operations ---

type Scan struct {
	ID          int
	Root        string
	Files       int
	Symbols     int
	Diagnostics int
	ScannedAt   time.Time
}

// SaveIndex replaces the stored index with ix and records the scan.
func (db *DB) SaveIndex(root string, files int, ix *index.Index, diags []model.Diagnostic) (err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, q := range []string{`DELETE FROM symbols`, `DELETE FROM module_docs`, `DELETE FROM diagnostics`} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}
	}

	id := 0
	for rec := range ix.All() {
		id++
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", rec.Path(), err)
		}
		d := rec.Declaration
		if _, err := tx.Exec(
			`INSERT INTO symbols (id, path, module, name, kind, visibility, file, line, signature, summary, details, record)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, rec.Path(), rec.Module, d.Name, string(d.Kind), string(d.Visibility), rec.File, d.Line,
			d.Signature, rec.Summary, rec.Details, string(data),
		); err != nil {
			return fmt.Errorf("inserting symbol %s: %w", rec.Path(), err)
		}
	}
	symbols := id

	for n := range ix.Nodes() {
		doc := n.Doc()
		if doc.Empty() {
			continue
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding module doc %s: %w", n.Path, err)
		}
		if _, err := tx.Exec(`INSERT INTO module_docs (path, doc) VALUES (?, ?)`, n.Path, string(data)); err != nil {
			return fmt.Errorf("inserting module doc %s: %w", n.Path, err)
		}
	}

	for i, d := range diags {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encoding diagnostic: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO diagnostics (id, kind, file, line, path, message, diagnostic) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i+1, string(d.Kind), d.File, d.Line, d.Path, d.Message, string(data),
		); err != nil {
			return fmt.Errorf("inserting diagnostic: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO scans (id, root, files, symbols, diagnostics) VALUES (nextval('seq_scan_id'), ?, ?, ?, ?)`,
		root, files, symbols, len(diags),
	); err != nil {
		return fmt.Errorf("recording scan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

// LastScan returns the most recent scan, or nil when nothing was stored yet.
func (db *DB) LastScan() (*Scan, error) {
	var s Scan
	err := db.conn.QueryRow(
		`SELECT id, root, files, symbols, diagnostics, scanned_at FROM scans ORDER BY id DESC LIMIT 1`,
	).Scan(&s.ID, &s.Root, &s.Files, &s.Symbols, &s.Diagnostics, &s.ScannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Symbol queries ---

func (db *DB) querySymbols(query string, args ...interface{}) ([]model.SymbolRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	defer rows.Close()

	var out []model.SymbolRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		var rec model.SymbolRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decoding symbol: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Lookup returns the records stored for a fully qualified path.
func (db *DB) Lookup(path string) ([]model.SymbolRecord, error) {
	return db.querySymbols(`SELECT record FROM symbols WHERE path = ? ORDER BY id`, path)
}

// Children returns the records under a module path, depth first.
func (db *DB) Children(module string) ([]model.SymbolRecord, error) {
	if module == "" {
		return db.querySymbols(`SELECT record FROM symbols ORDER BY id`)
	}
	return db.querySymbols(
		`SELECT record FROM symbols WHERE module = ? OR starts_with(module, ?) ORDER BY id`,
		module, module+model.PathSep,
	)
}

// Search returns records whose name, path or documentation contains term.
func (db *DB) Search(term string, limit int) ([]model.SymbolRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(term) + "%"
	return db.querySymbols(
		`SELECT record FROM symbols
		 WHERE name ILIKE ? ESCAPE '\' OR path ILIKE ? ESCAPE '\' OR summary ILIKE ? ESCAPE '\' OR details ILIKE ? ESCAPE '\'
		 ORDER BY id
		 LIMIT ?`,
		pattern, pattern, pattern, pattern, limit,
	)
}

// Find returns records of the given kinds whose name matches the regular
// expression pattern. No kinds selects every kind and an empty pattern every
// name; limit <= 0 means no limit.
func (db *DB) Find(kinds []model.DeclKind, pattern string, limit int) ([]model.SymbolRecord, error) {
	query := `SELECT record FROM symbols WHERE true`
	var args []interface{}
	if len(kinds) > 0 {
		query += ` AND kind IN (?` + strings.Repeat(`, ?`, len(kinds)-1) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	if pattern != "" {
		query += ` AND regexp_matches(name, ?)`
		args = append(args, pattern)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.querySymbols(query, args...)
}

// ModuleDoc returns the stored documentation of a module.
func (db *DB) ModuleDoc(path string) (*model.Doc, error) {
	var data string
	err := db.conn.QueryRow(`SELECT doc FROM module_docs WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc model.Doc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decoding module doc: %w", err)
	}
	return &doc, nil
}

// Diagnostics returns the diagnostics of the last scan in report order.
func (db *DB) Diagnostics() ([]model.Diagnostic, error) {
	rows, err := db.conn.Query(`SELECT diagnostic FROM diagnostics ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostics: %w", err)
	}
	defer rows.Close()

	var out []model.Diagnostic
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var d model.Diagnostic
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("decoding diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
