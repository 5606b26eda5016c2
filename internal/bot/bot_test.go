package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"signaltrader/internal/config"
	"signaltrader/internal/exchange"
	"signaltrader/internal/signal"
	"signaltrader/internal/symbols"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeTransport) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func newTestBot(t *testing.T, fake *fakeExchange, mapperFile string) (*Bot, *PositionEngine, *fakeTransport) {
	t.Helper()

	log := zap.NewNop()
	if mapperFile == "" {
		mapperFile = filepath.Join(t.TempDir(), "missing.json")
	}
	mapper, err := symbols.NewMapper(mapperFile, log)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}

	cfg := &config.Config{
		Notify:  config.Notify{ProfitNotifications: true, FailureNotifications: true},
		Trading: config.Trading{OrderTimeout: time.Second},
	}

	engine := newTestEngine(fake)
	transport := &fakeTransport{}
	b := NewBot(signal.NewParser(log), signal.NewFormatter(false), mapper, engine, transport, cfg, log)
	return b, engine, transport
}

const entryMessage = "BTC/USDT Long x10\nEntry - 100\nSL - 95\nTP1 - 105 (50%)\nTP2 - 110 (50%)"

func TestHandleMessage_EntrySignal(t *testing.T) {
	fake := newFakeExchange()
	b, engine, transport := newTestBot(t, fake, "")

	b.HandleMessage(context.Background(), entryMessage, false)

	if len(fake.marketOrders) != 1 {
		t.Fatalf("market orders = %d, want 1", len(fake.marketOrders))
	}
	if !engine.IsTracked("BTCUSDT") {
		t.Error("position must be tracked after entry message")
	}

	sent := transport.messages()
	if len(sent) != 1 || !strings.Contains(sent[0], "BYBIT SIGNAL") {
		t.Errorf("sent = %v, want one relayed entry message", sent)
	}
}

func TestHandleMessage_EntryReplySkipped(t *testing.T) {
	fake := newFakeExchange()
	b, engine, transport := newTestBot(t, fake, "")

	b.HandleMessage(context.Background(), entryMessage, true)

	if len(fake.marketOrders) != 0 {
		t.Error("reply message must not trigger trade execution")
	}
	if engine.IsTracked("BTCUSDT") {
		t.Error("no position expected for skipped reply")
	}
	if len(transport.messages()) != 0 {
		t.Error("skipped reply must not be relayed")
	}
}

func TestHandleMessage_NotASignal(t *testing.T) {
	fake := newFakeExchange()
	b, _, transport := newTestBot(t, fake, "")

	b.HandleMessage(context.Background(), "gm, market looks slow today", false)

	if len(fake.marketOrders) != 0 || len(transport.messages()) != 0 {
		t.Error("non-signal message must be dropped silently")
	}
}

func TestHandleMessage_ProfitTargetFullExit(t *testing.T) {
	fake := newFakeExchange()
	b, engine, transport := newTestBot(t, fake, "")

	engine.ExecuteSignal(context.Background(), testEntrySignal())

	raw := "#BTC/USDT (Long📈, x10)\n✅ Price - 100\n🔝 Profit - 100%"
	b.HandleMessage(context.Background(), raw, true)

	if engine.IsTracked("BTCUSDT") {
		t.Error("position must be closed at 100% profit target")
	}
	if len(fake.closes) != 1 {
		t.Errorf("closes = %v, want 1", fake.closes)
	}

	sent := transport.messages()
	if len(sent) != 1 || !strings.Contains(sent[0], "Position closed at 100% profit target") {
		t.Errorf("sent = %v, want relayed close confirmation", sent)
	}
}

func TestHandleMessage_ProfitTargetAdjustsStop(t *testing.T) {
	fake := newFakeExchange()
	b, engine, transport := newTestBot(t, fake, "")

	engine.ExecuteSignal(context.Background(), testEntrySignal())
	stopsBefore := len(fake.stops)

	raw := "#BTC/USDT (Long📈, x10)\n✅ Price - 100\n🔝 Profit - 50%"
	b.HandleMessage(context.Background(), raw, false)

	if len(fake.stops) != stopsBefore+1 {
		t.Fatalf("stops = %v, want one trail adjustment", fake.stops)
	}
	if !engine.IsTracked("BTCUSDT") {
		t.Error("position must stay tracked after stop adjustment")
	}

	sent := transport.messages()
	if len(sent) != 1 || !strings.Contains(sent[0], "Stop Loss adjusted") {
		t.Errorf("sent = %v, want relayed adjustment confirmation", sent)
	}
}

func TestHandleMessage_ProfitUpdateWithMappedSymbol(t *testing.T) {
	fake := newFakeExchange()

	dir := t.TempDir()
	mapperFile := filepath.Join(dir, "mappings.json")
	data := `{"BTCUSDT": {"symbol": "BTC2USDT", "ratio": 2.0}}`
	if err := os.WriteFile(mapperFile, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	b, engine, transport := newTestBot(t, fake, mapperFile)

	// Позиция уже живёт под новым тикером
	engine.adoptPosition(&exchange.Position{
		Symbol: "BTC2USDT", Side: exchange.SideLong, Size: 1, EntryPrice: 200, Leverage: 10,
	})

	raw := "#BTC/USDT (Long📈, x10)\n✅ Price - 100\n🔝 Profit - 100%"
	b.HandleMessage(context.Background(), raw, false)

	if engine.IsTracked("BTC2USDT") {
		t.Error("mapped position must be closed")
	}
	if len(fake.closes) != 1 || fake.closes[0] != "BTC2USDT" {
		t.Errorf("closes = %v, want close of BTC2USDT", fake.closes)
	}

	sent := transport.messages()
	if len(sent) != 1 || !strings.Contains(sent[0], "#BTC2USDT") {
		t.Errorf("sent = %v, want hashtag replaced with mapped symbol", sent)
	}
}
