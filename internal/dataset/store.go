package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/climq/internal/querysql"
)

// ErrUnknownDatabase is returned for a database the store does not serve.
var ErrUnknownDatabase = errors.New("unknown database")

// Store serves read-only SQLite databases from one directory. Database
// "co2" lives in <dir>/co2.db. Connections open on first use.
type Store struct {
	dir       string
	databases []string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// Open creates a Store over dir serving the given databases. Files are not
// touched until a database is first used.
func Open(dir string, databases []string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset directory %s: not a directory", dir)
	}
	return &Store{dir: dir, databases: slices.Clone(databases), dbs: map[string]*sql.DB{}}, nil
}

// Path returns the file backing a database.
func Path(dir, database string) string {
	return filepath.Join(dir, database+".db")
}

// Databases lists the databases the store serves.
func (s *Store) Databases() []string {
	return slices.Clone(s.databases)
}

// Close closes every open connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	s.dbs = map[string]*sql.DB{}
	return errors.Join(errs...)
}

// db returns the read-only connection pool for database.
func (s *Store) db(database string) (*sql.DB, error) {
	if !slices.Contains(s.databases, database) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatabase, database)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[database]; ok {
		return db, nil
	}

	path := Path(s.dir, database)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", database, err)
	}
	db, err := sql.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", database, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", database, err)
	}
	s.dbs[database] = db
	return db, nil
}

// readOnlyDSN applies the read-only settings to every pooled connection.
func readOnlyDSN(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("_query_only", "true")
	q.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + q.Encode()
}

// Execute runs one read-only statement. An empty result is a reply with
// NoData set, not an error.
func (s *Store) Execute(ctx context.Context, database, statement string) (Reply, error) {
	return s.ExecuteArgs(ctx, database, statement)
}

// ExecuteArgs is Execute with args bound to the statement's ? placeholders.
func (s *Store) ExecuteArgs(ctx context.Context, database, statement string, args ...any) (Reply, error) {
	if err := querysql.Guard(statement); err != nil {
		return Reply{}, err
	}
	db, err := s.db(database)
	if err != nil {
		return Reply{}, err
	}

	rows, err := db.QueryContext(ctx, statement, args...)
	if err != nil {
		return Reply{}, fmt.Errorf("execute on %s: %w", database, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Reply{}, fmt.Errorf("columns: %w", err)
	}

	var records [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Reply{}, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		records = append(records, vals)
	}
	if err := rows.Err(); err != nil {
		return Reply{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Reply{Columns: cols, Records: records, NoData: len(records) == 0}, nil
}

// Tables lists user tables in name order.
func (s *Store) Tables(ctx context.Context, database string) ([]string, error) {
	reply, err := s.Execute(ctx, database,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(reply.Records))
	for _, rec := range reply.Records {
		if name, ok := rec[0].(string); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// Schema introspects every table with PRAGMA table_info.
func (s *Store) Schema(ctx context.Context, database string) ([]TableSchema, error) {
	tables, err := s.Tables(ctx, database)
	if err != nil {
		return nil, err
	}
	out := make([]TableSchema, 0, len(tables))
	for _, t := range tables {
		reply, err := s.Execute(ctx, database, "PRAGMA table_info("+querysql.QuoteIdent(t)+")")
		if err != nil {
			return nil, fmt.Errorf("schema of %s: %w", t, err)
		}
		ts := TableSchema{Name: t}
		// cid, name, type, notnull, dflt_value, pk
		for _, rec := range reply.Records {
			if len(rec) < 6 {
				continue
			}
			name, _ := rec[1].(string)
			typ, _ := rec[2].(string)
			notNull, _ := rec[3].(int64)
			pk, _ := rec[5].(int64)
			ts.Columns = append(ts.Columns, ColumnInfo{Name: name, Type: typ, NotNull: notNull != 0, Primary: pk != 0})
		}
		out = append(out, ts)
	}
	return out, nil
}
