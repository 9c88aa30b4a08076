package positions

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	OpenFile   = "positions_open.csv"
	ClosedFile = "positions_closed.csv"
	LockFile   = "positions.lock"
)

const (
	lockWait  = 10 * time.Second
	lockRetry = 10 * time.Millisecond
)

var (
	openHeader   = []string{"id", "ts_open", "chain", "base", "quote", "entry_base", "entry_out_raw", "note"}
	closedHeader = append(append([]string(nil), openHeader...), "ts_close", "exit_base", "pnl_base", "reason")
)

// CSVTables stores the tables as two CSV files under a data directory.
// Columns are matched by header name, so older files without an id column still load.
// Reads take a shared lock and updates an exclusive lock on LockFile in the same directory,
// so a bot and a separate exit process can share the tables.
type CSVTables struct {
	dir string
}

// NewCSVTables creates the data directory if needed.
func NewCSVTables(dir string) (*CSVTables, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &CSVTables{dir: dir}, nil
}

// OpenPath returns the open table's file path.
func (c *CSVTables) OpenPath() string { return filepath.Join(c.dir, OpenFile) }

// ClosedPath returns the closed table's file path.
func (c *CSVTables) ClosedPath() string { return filepath.Join(c.dir, ClosedFile) }

// Load implements Tables. Missing files read as empty tables.
func (c *CSVTables) Load(ctx context.Context) ([]Open, []Closed, error) {
	unlock, err := c.lock(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()
	return c.read()
}

// Update implements Tables.
func (c *CSVTables) Update(ctx context.Context, fn UpdateFunc) error {
	unlock, err := c.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()
	open, closed, err := c.read()
	if err != nil {
		return err
	}
	open, closed, err = fn(open, closed)
	if err != nil {
		return err
	}
	return c.write(open, closed)
}

// LockPath returns the lock file guarding both tables.
func (c *CSVTables) LockPath() string { return filepath.Join(c.dir, LockFile) }

// lock opens a fresh handle per call, so goroutines and processes exclude each other alike.
func (c *CSVTables) lock(ctx context.Context, exclusive bool) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	fl := flock.New(c.LockPath())
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, lockRetry)
	} else {
		ok, err = fl.TryRLockContext(ctx, lockRetry)
	}
	if err != nil {
		fl.Close()
		return nil, fmt.Errorf("lock position tables: %w", err)
	}
	if !ok {
		fl.Close()
		return nil, fmt.Errorf("lock position tables: %s busy", c.LockPath())
	}
	return func() { fl.Close() }, nil
}

func (c *CSVTables) read() ([]Open, []Closed, error) {
	openRows, err := readRows(c.OpenPath())
	if err != nil {
		return nil, nil, err
	}
	closedRows, err := readRows(c.ClosedPath())
	if err != nil {
		return nil, nil, err
	}
	open := make([]Open, 0, len(openRows))
	for i, r := range openRows {
		open = append(open, openFromRow(r, "open", i))
	}
	closed := make([]Closed, 0, len(closedRows))
	for i, r := range closedRows {
		closed = append(closed, Closed{
			Open:     openFromRow(r, "closed", i),
			ClosedAt: parseTs(r["ts_close"]),
			ExitBase: parseFloat(r["exit_base"]),
			PnLBase:  parseFloat(r["pnl_base"]),
			Reason:   r["reason"],
		})
	}
	return dropSettled(open, closed), closed, nil
}

// write replaces both files via temporaries. The closed table is renamed first: an interrupted
// write leaves a row in both tables, which read drops from the open side.
func (c *CSVTables) write(open []Open, closed []Closed) error {
	openRecords := make([][]string, 0, len(open))
	for _, p := range open {
		openRecords = append(openRecords, openRecord(p))
	}
	closedRecords := make([][]string, 0, len(closed))
	for _, p := range closed {
		closedRecords = append(closedRecords, append(openRecord(p.Open),
			formatTs(p.ClosedAt),
			formatFloat(p.ExitBase),
			formatFloat(p.PnLBase),
			p.Reason,
		))
	}

	openTmp, err := writeTemp(c.OpenPath(), openHeader, openRecords)
	if err != nil {
		return err
	}
	closedTmp, err := writeTemp(c.ClosedPath(), closedHeader, closedRecords)
	if err != nil {
		os.Remove(openTmp)
		return err
	}
	if err := os.Rename(closedTmp, c.ClosedPath()); err != nil {
		os.Remove(openTmp)
		os.Remove(closedTmp)
		return fmt.Errorf("replace closed table: %w", err)
	}
	if err := os.Rename(openTmp, c.OpenPath()); err != nil {
		os.Remove(openTmp)
		return fmt.Errorf("replace open table: %w", err)
	}
	return nil
}

func openFromRow(r map[string]string, table string, index int) Open {
	id := r["id"]
	if id == "" {
		id = legacyID(r, table, index)
	}
	note, peak, hasPeak := decodeNote(r["note"])
	return Open{
		ID:          id,
		OpenedAt:    parseTs(r["ts_open"]),
		Chain:       r["chain"],
		Base:        r["base"],
		Quote:       r["quote"],
		EntryBase:   parseFloat(r["entry_base"]),
		EntryOutRaw: parseFloat(r["entry_out_raw"]),
		Note:        note,
		Peak:        peak,
		HasPeak:     hasPeak,
	}
}

// legacyID derives a stable id for rows written before the id column existed,
// so repeated loads agree on identity until the row is rewritten with its id.
// The table and row index keep identical rows apart.
func legacyID(r map[string]string, table string, index int) string {
	key := table + "|" + strconv.Itoa(index) + "|" + r["ts_open"] + "|" + r["chain"] + "|" + r["quote"] + "|" + r["entry_base"] + "|" + r["entry_out_raw"]
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func openRecord(p Open) []string {
	return []string{
		p.ID,
		formatTs(p.OpenedAt),
		p.Chain,
		p.Base,
		p.Quote,
		formatFloat(p.EntryBase),
		formatFloat(p.EntryOutRaw),
		encodeNote(p.Note, p.Peak, p.HasPeak),
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", filepath.Base(path), err)
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A torn or malformed line is skipped; the rest of the table is still usable.
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeTemp(path string, header []string, records [][]string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp table: %w", err)
	}
	w := csv.NewWriter(tmp)
	if err := w.Write(header); err == nil {
		err = w.WriteAll(records)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return tmp.Name(), nil
}
