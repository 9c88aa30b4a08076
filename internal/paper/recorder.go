package paper

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// JSONLRecorder appends trades as JSON lines for later analysis.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	file, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{file: file, enc: json.NewEncoder(file)}, nil
}

// Record writes a single trade.
func (r *JSONLRecorder) Record(tr Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	return r.enc.Encode(tr)
}

// Close closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// CSVHeader is the column order of trades.csv.
var CSVHeader = []string{
	"id", "ts", "chain", "side", "base", "quote", "size_base",
	"out_amount", "price_impact_bps", "slippage_bps", "reason", "entry_value",
}

// CSVRecorder appends trades to a CSV file, writing the header only when the file is new.
type CSVRecorder struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVRecorder opens path for appending.
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	file, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	r := &CSVRecorder{file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := r.write(CSVHeader); err != nil {
			file.Close()
			return nil, err
		}
	}
	return r, nil
}

// Record writes one row and flushes it.
func (r *CSVRecorder) Record(tr Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	return r.write([]string{
		tr.ID,
		tr.Ts.UTC().Format(time.RFC3339),
		tr.Chain,
		string(tr.Side),
		tr.Base,
		tr.Quote,
		strconv.FormatFloat(tr.SizeBase, 'f', -1, 64),
		strconv.FormatUint(tr.OutAmount, 10),
		strconv.Itoa(tr.PriceImpactBps),
		strconv.Itoa(tr.SlippageBps),
		tr.Reason,
		strconv.FormatFloat(tr.EntryValue, 'f', -1, 64),
	})
}

func (r *CSVRecorder) write(record []string) error {
	if err := r.w.Write(record); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

// Close flushes and closes the file handle.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	r.w.Flush()
	err := errors.Join(r.w.Error(), r.file.Close())
	r.file = nil
	return err
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
