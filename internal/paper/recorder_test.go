package paper

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleTrade() Trade {
	return Trade{
		ID: "t-1", Ts: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Chain: "solana", Side: Buy,
		Base: "SOL", Quote: "MEME", SizeBase: 0.1, OutAmount: 12_000_000, PriceImpactBps: 30,
		SlippageBps: 300, Reason: "rule_pass", EntryValue: 12_000_000,
	}
}

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trades.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	trade := sampleTrade()
	if err := recorder.Record(trade); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := recorder.Record(trade); err == nil {
		t.Fatalf("expected error after close")
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected one line in recorder output")
	}
	var decoded Trade
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if decoded.ID != trade.ID || decoded.Side != trade.Side || decoded.OutAmount != trade.OutAmount {
		t.Fatalf("unexpected decoded trade %+v", decoded)
	}
}

func TestCSVRecorderWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	for i := 0; i < 2; i++ {
		rec, err := NewCSVRecorder(path)
		if err != nil {
			t.Fatalf("NewCSVRecorder error: %v", err)
		}
		if err := rec.Record(sampleTrade()); err != nil {
			t.Fatalf("Record error: %v", err)
		}
		if err := rec.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[1][0] != "t-1" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[1][1] != "2024-05-01T12:00:00Z" || rows[1][7] != "12000000" {
		t.Fatalf("unexpected formatting %v", rows[1])
	}
}
