package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"signaltrader/internal/models"
)

func TestTradeLedger_Record(t *testing.T) {
	dir := t.TempDir()
	ledger := NewTradeLedger(dir, zap.NewNop())

	ts := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	rec := &models.TradeRecord{
		Timestamp:    ts,
		Symbol:       "BTCUSDT",
		Direction:    models.SideLong,
		Entry:        50000,
		StopLoss:     48000,
		TakeProfit:   "51000(50%);52000(50%)",
		PositionSize: 0.5,
		OrderID:      "order-123",
		Status:       models.TradeStatusExecuted,
	}

	if err := ledger.Record(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "trades_2025-06-15.csv"))
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row", len(lines))
	}

	wantHeader := "Timestamp,Symbol,Direction,Entry,Stop Loss,Take Profit,Position Size,Order ID,Status"
	if lines[0] != wantHeader {
		t.Errorf("header = %q, want %q", lines[0], wantHeader)
	}

	wantRow := "2025-06-15 10:30:00,BTCUSDT,LONG,50000,48000,51000(50%);52000(50%),0.5,order-123,EXECUTED"
	if lines[1] != wantRow {
		t.Errorf("row = %q, want %q", lines[1], wantRow)
	}
}

func TestTradeLedger_AppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	ledger := NewTradeLedger(dir, zap.NewNop())

	ts := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	rec := &models.TradeRecord{Timestamp: ts, Symbol: "BTCUSDT", Direction: models.SideLong, Status: models.TradeStatusExecuted}

	if err := ledger.Record(rec); err != nil {
		t.Fatalf("first record: %v", err)
	}
	rec.Symbol = "ETHUSDT"
	if err := ledger.Record(rec); err != nil {
		t.Fatalf("second record: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "trades_2025-06-15.csv"))
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if !strings.Contains(lines[2], "ETHUSDT") {
		t.Errorf("second row = %q, want ETHUSDT", lines[2])
	}
}
