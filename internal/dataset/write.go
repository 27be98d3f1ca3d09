package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/climq/internal/querysql"
	"github.com/roach88/climq/internal/vocab"
)

// Writer creates and fills the database files of one domain. Every table
// gets the domain's full column list.
type Writer struct {
	dir    string
	domain *vocab.Domain
}

// NewWriter creates a Writer for d rooted at dir.
func NewWriter(dir string, d *vocab.Domain) *Writer {
	return &Writer{dir: dir, domain: d}
}

// Create creates missing database files and tables. It is idempotent.
func (w *Writer) Create(ctx context.Context) error {
	for _, t := range w.domain.Tables {
		if err := w.withDB(ctx, t.Database, func(db *sql.DB) error {
			_, err := db.ExecContext(ctx, w.ddl(t))
			return err
		}); err != nil {
			return fmt.Errorf("create %s: %w", t.ID(), err)
		}
	}
	return nil
}

func (w *Writer) ddl(t vocab.Table) string {
	cols := w.domain.AllColumns()
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = querysql.QuoteIdent(c.Name) + " " + sqlType(c.Type)
	}
	return "CREATE TABLE IF NOT EXISTS " + querysql.QuoteIdent(t.Name) + " (" + strings.Join(defs, ", ") + ")"
}

func sqlType(typ string) string {
	switch typ {
	case "integer":
		return "INTEGER"
	case "real":
		return "REAL"
	default:
		return "TEXT"
	}
}

// Insert appends rows to a table. Row keys must be domain columns; missing
// columns are stored as NULL.
func (w *Writer) Insert(ctx context.Context, t vocab.Table, rows []map[string]any) error {
	cols := w.domain.AllColumns()
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = querysql.QuoteIdent(c.Name)
		marks[i] = "?"
	}
	stmt := "INSERT INTO " + querysql.QuoteIdent(t.Name) + " (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"

	return w.withDB(ctx, t.Database, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		ins, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("prepare insert into %s: %w", t.ID(), err)
		}
		defer ins.Close()

		for i, row := range rows {
			for k := range row {
				if !w.domain.HasColumn(k) {
					return fmt.Errorf("row %d: unknown column %q", i, k)
				}
			}
			args := make([]any, len(cols))
			for j, c := range cols {
				args[j] = row[c.Name]
			}
			if _, err := ins.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert row %d into %s: %w", i, t.ID(), err)
			}
		}
		return tx.Commit()
	})
}

// LoadCSV inserts the rows of a CSV file with a header line naming domain
// columns. Values convert by column type; empty cells are NULL. It returns
// the number of rows loaded.
func (w *Writer) LoadCSV(ctx context.Context, t vocab.Table, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	cols := make([]vocab.Column, len(header))
	for i, h := range header {
		c, ok := w.domain.Column(strings.TrimSpace(h))
		if !ok {
			return 0, fmt.Errorf("header: unknown column %q", h)
		}
		cols[i] = c
	}

	var rows []map[string]any
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			v, err := convert(c, rec[i])
			if err != nil {
				return 0, fmt.Errorf("line %d column %q: %w", line, c.Name, err)
			}
			row[c.Name] = v
		}
		rows = append(rows, row)
	}

	if err := w.Insert(ctx, t, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func convert(c vocab.Column, s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	switch c.Type {
	case "integer":
		return strconv.ParseInt(s, 10, 64)
	case "real":
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

// withDB opens a writable connection to database for the duration of fn.
func (w *Writer) withDB(ctx context.Context, database string, fn func(*sql.DB) error) error {
	db, err := sql.Open("sqlite3", Path(w.dir, database))
	if err != nil {
		return fmt.Errorf("open %s: %w", database, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return fn(db)
}
