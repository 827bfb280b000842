// Package history persists recognition results in SQLite.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/recognition"
)

// DefaultMaxEntries is how many results are kept.
const DefaultMaxEntries = 50

const schema = `
CREATE TABLE IF NOT EXISTS results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT    NOT NULL,
	text        TEXT    NOT NULL DEFAULT '',
	reason      TEXT    NOT NULL DEFAULT '',
	captured_at INTEGER NOT NULL,
	sequence    INTEGER NOT NULL,
	session_id  TEXT    NOT NULL DEFAULT '',
	engine      TEXT    NOT NULL DEFAULT '',
	latency_ns  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_results_captured_at ON results(captured_at);
`

// DB is a bounded result log.
type DB struct {
	conn       *sql.DB
	path       string
	maxEntries int
}

// Open opens or creates the database at path.
func Open(path string, maxEntries int) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "history dir %s", dir)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "open history %s", path)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperrors.Wrapf(err, apperrors.CodeUnavailable, "ping history %s", path)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "create history schema")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &DB{conn: conn, path: path, maxEntries: maxEntries}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Save appends r and prunes entries beyond the limit.
func (db *DB) Save(ctx context.Context, r recognition.Result) error {
	_, err := db.SaveBatch(ctx, []recognition.Result{r})
	return err
}

// SaveBatch appends rs in one transaction and prunes entries beyond the
// limit. It returns the number of rows written.
func (db *DB) SaveBatch(ctx context.Context, rs []recognition.Result) (int, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "begin history tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (kind, text, reason, captured_at, sequence, session_id, engine, latency_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "prepare history insert")
	}
	defer stmt.Close()

	for _, r := range rs {
		if _, err := stmt.ExecContext(ctx,
			r.Kind.String(), r.Text, r.Reason, r.CapturedAt.UnixNano(), int64(r.Sequence), r.SessionID, r.Engine, int64(r.Latency),
		); err != nil {
			return 0, apperrors.Wrap(err, apperrors.CodeInternal, "insert history")
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM results WHERE id NOT IN (SELECT id FROM results ORDER BY id DESC LIMIT ?)`,
		db.maxEntries,
	); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "prune history")
	}
	if err := tx.Commit(); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "commit history")
	}
	return len(rs), nil
}

// Recent returns up to n results, newest first.
func (db *DB) Recent(ctx context.Context, n int) ([]recognition.Result, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT kind, text, reason, captured_at, sequence, session_id, engine, latency_ns
		 FROM results ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "query history")
	}
	defer rows.Close()

	var out []recognition.Result
	for rows.Next() {
		var (
			kind         string
			r            recognition.Result
			capturedAt   int64
			seq, latency int64
		)
		if err := rows.Scan(&kind, &r.Text, &r.Reason, &capturedAt, &seq, &r.SessionID, &r.Engine, &latency); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "scan history")
		}
		r.Kind = parseKind(kind)
		r.CapturedAt = time.Unix(0, capturedAt)
		r.Sequence = uint64(seq)
		r.Latency = time.Duration(latency)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "read history")
	}
	return out, nil
}

func parseKind(s string) recognition.Kind {
	switch s {
	case "text":
		return recognition.KindText
	case "empty":
		return recognition.KindEmpty
	default:
		return recognition.KindFailure
	}
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}
