package positions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS positions_open (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	ts_open       REAL NOT NULL DEFAULT 0,
	chain         TEXT NOT NULL DEFAULT '',
	base          TEXT NOT NULL DEFAULT '',
	quote         TEXT NOT NULL DEFAULT '',
	entry_base    REAL NOT NULL DEFAULT 0,
	entry_out_raw REAL NOT NULL DEFAULT 0,
	note          TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS positions_closed (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL,
	ts_open       REAL NOT NULL DEFAULT 0,
	chain         TEXT NOT NULL DEFAULT '',
	base          TEXT NOT NULL DEFAULT '',
	quote         TEXT NOT NULL DEFAULT '',
	entry_base    REAL NOT NULL DEFAULT 0,
	entry_out_raw REAL NOT NULL DEFAULT 0,
	note          TEXT NOT NULL DEFAULT '',
	ts_close      REAL NOT NULL DEFAULT 0,
	exit_base     REAL NOT NULL DEFAULT 0,
	pnl_base      REAL NOT NULL DEFAULT 0,
	reason        TEXT NOT NULL DEFAULT ''
);`

// sqlitePragmas apply to every pooled connection.
const sqlitePragmas = "_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"

// SQLiteTables keeps both tables in a SQLite database. Update holds a write transaction,
// started with BEGIN IMMEDIATE, across the load and the rewrite, so concurrent writers in
// other processes wait instead of interleaving.
type SQLiteTables struct {
	db *sql.DB
}

// sqlQuerier is satisfied by *sql.DB and *sql.Conn.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// NewSQLiteTables opens (or creates) the database at path. ":memory:" is accepted for tests.
func NewSQLiteTables(path string) (*SQLiteTables, error) {
	dsn := path
	memory := strings.Contains(path, ":memory:")
	if !memory {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + sqlitePragmas
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create position tables: %w", err)
	}
	return &SQLiteTables{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteTables) Close() error { return s.db.Close() }

// Load implements Tables.
func (s *SQLiteTables) Load(ctx context.Context) ([]Open, []Closed, error) {
	return loadSQLite(ctx, s.db)
}

// Update implements Tables.
func (s *SQLiteTables) Update(ctx context.Context, fn UpdateFunc) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire sqlite connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() {
		if err != nil {
			conn.ExecContext(context.WithoutCancel(ctx), `ROLLBACK`)
		}
	}()

	open, closed, err := loadSQLite(ctx, conn)
	if err != nil {
		return err
	}
	open, closed, err = fn(open, closed)
	if err != nil {
		return err
	}
	if err = writeSQLite(ctx, conn, open, closed); err != nil {
		return err
	}
	if _, err = conn.ExecContext(ctx, `COMMIT`); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func loadSQLite(ctx context.Context, q sqlQuerier) ([]Open, []Closed, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, ts_open, chain, base, quote, entry_base, entry_out_raw, note FROM positions_open ORDER BY seq`)
	if err != nil {
		return nil, nil, fmt.Errorf("query open positions: %w", err)
	}
	var open []Open
	for rows.Next() {
		var (
			p      Open
			tsOpen float64
			note   string
		)
		if err := rows.Scan(&p.ID, &tsOpen, &p.Chain, &p.Base, &p.Quote, &p.EntryBase, &p.EntryOutRaw, &note); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan open position: %w", err)
		}
		p.OpenedAt = fromEpoch(tsOpen)
		p.Note, p.Peak, p.HasPeak = decodeNote(note)
		open = append(open, p)
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = q.QueryContext(ctx, `SELECT id, ts_open, chain, base, quote, entry_base, entry_out_raw, note, ts_close, exit_base, pnl_base, reason FROM positions_closed ORDER BY seq`)
	if err != nil {
		return nil, nil, fmt.Errorf("query closed positions: %w", err)
	}
	defer rows.Close()
	var closed []Closed
	for rows.Next() {
		var (
			p               Closed
			tsOpen, tsClose float64
			note            string
		)
		if err := rows.Scan(&p.ID, &tsOpen, &p.Chain, &p.Base, &p.Quote, &p.EntryBase, &p.EntryOutRaw, &note, &tsClose, &p.ExitBase, &p.PnLBase, &p.Reason); err != nil {
			return nil, nil, fmt.Errorf("scan closed position: %w", err)
		}
		p.OpenedAt = fromEpoch(tsOpen)
		p.ClosedAt = fromEpoch(tsClose)
		p.Note, p.Peak, p.HasPeak = decodeNote(note)
		closed = append(closed, p)
	}
	return open, closed, rows.Err()
}

func writeSQLite(ctx context.Context, q sqlQuerier, open []Open, closed []Closed) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM positions_open`); err != nil {
		return fmt.Errorf("clear open positions: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM positions_closed`); err != nil {
		return fmt.Errorf("clear closed positions: %w", err)
	}

	insOpen, err := q.PrepareContext(ctx, `INSERT INTO positions_open (id, ts_open, chain, base, quote, entry_base, entry_out_raw, note) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare open insert: %w", err)
	}
	defer insOpen.Close()
	for _, p := range open {
		if _, err := insOpen.ExecContext(ctx, p.ID, epoch(p.OpenedAt), p.Chain, p.Base, p.Quote, p.EntryBase, p.EntryOutRaw, encodeNote(p.Note, p.Peak, p.HasPeak)); err != nil {
			return fmt.Errorf("insert open position %s: %w", p.ID, err)
		}
	}

	insClosed, err := q.PrepareContext(ctx, `INSERT INTO positions_closed (id, ts_open, chain, base, quote, entry_base, entry_out_raw, note, ts_close, exit_base, pnl_base, reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare closed insert: %w", err)
	}
	defer insClosed.Close()
	for _, p := range closed {
		if _, err := insClosed.ExecContext(ctx, p.ID, epoch(p.OpenedAt), p.Chain, p.Base, p.Quote, p.EntryBase, p.EntryOutRaw, encodeNote(p.Note, p.Peak, p.HasPeak), epoch(p.ClosedAt), p.ExitBase, p.PnLBase, p.Reason); err != nil {
			return fmt.Errorf("insert closed position %s: %w", p.ID, err)
		}
	}
	return nil
}
