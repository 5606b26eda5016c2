package signal

import (
	"testing"

	"go.uber.org/zap"

	"signaltrader/internal/models"
)

func newTestParser() *Parser {
	return NewParser(zap.NewNop())
}

// TestParse_EntrySignal проверяет разбор стандартного входного сигнала
func TestParse_EntrySignal(t *testing.T) {
	raw := "BTC/USDT Long x10\nEntry - 50000\nSL - 49000\nTP1 - 51000 (50%)\nTP2 - 52000 (50%)"

	sig, ok := newTestParser().Parse(raw)
	if !ok {
		t.Fatal("expected signal, got none")
	}

	entry, ok := sig.(*models.EntrySignal)
	if !ok {
		t.Fatalf("expected *models.EntrySignal, got %T", sig)
	}

	if entry.Symbol != "BTC/USDT" {
		t.Errorf("Symbol = %q, want BTC/USDT", entry.Symbol)
	}
	if entry.TradeSymbol != "BTCUSDT" {
		t.Errorf("TradeSymbol = %q, want BTCUSDT", entry.TradeSymbol)
	}
	if entry.Side != models.SideLong {
		t.Errorf("Side = %q, want LONG", entry.Side)
	}
	if entry.Leverage != 10 {
		t.Errorf("Leverage = %d, want 10", entry.Leverage)
	}
	if entry.EntryPrice != 50000.0 {
		t.Errorf("EntryPrice = %v, want 50000", entry.EntryPrice)
	}
	if entry.StopLoss != 49000.0 {
		t.Errorf("StopLoss = %v, want 49000", entry.StopLoss)
	}
	if !entry.HasStopLoss() {
		t.Error("HasStopLoss() = false, want true")
	}

	want := []models.TakeProfitLevel{
		{Price: 51000.0, Percent: 50},
		{Price: 52000.0, Percent: 50},
	}
	if len(entry.TakeProfits) != len(want) {
		t.Fatalf("len(TakeProfits) = %d, want %d", len(entry.TakeProfits), len(want))
	}
	for i, tp := range entry.TakeProfits {
		if tp != want[i] {
			t.Errorf("TakeProfits[%d] = %+v, want %+v", i, tp, want[i])
		}
	}
}

// TestParse_ProfitUpdateSignal проверяет разбор профит-сообщения
func TestParse_ProfitUpdateSignal(t *testing.T) {
	raw := "#PLUME/USDT (Short📉, x20)\n✅ Price - 0.1724\n🔝 Profit - 60%"

	sig, ok := newTestParser().Parse(raw)
	if !ok {
		t.Fatal("expected signal, got none")
	}

	update, ok := sig.(*models.ProfitUpdateSignal)
	if !ok {
		t.Fatalf("expected *models.ProfitUpdateSignal, got %T", sig)
	}

	if update.Symbol != "PLUME/USDT" {
		t.Errorf("Symbol = %q, want PLUME/USDT", update.Symbol)
	}
	if update.TradeSymbol != "PLUMEUSDT" {
		t.Errorf("TradeSymbol = %q, want PLUMEUSDT", update.TradeSymbol)
	}
	if update.Side != models.SideShort {
		t.Errorf("Side = %q, want SHORT", update.Side)
	}
	if update.Leverage != 20 {
		t.Errorf("Leverage = %d, want 20", update.Leverage)
	}
	if update.EntryPrice != 0.1724 {
		t.Errorf("EntryPrice = %v, want 0.1724", update.EntryPrice)
	}
	if update.ProfitTargetPercent != 60 {
		t.Errorf("ProfitTargetPercent = %d, want 60", update.ProfitTargetPercent)
	}
}

// TestParse_NotASignal проверяет, что мусорные сообщения дают "нет сигнала"
func TestParse_NotASignal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "empty message",
			raw:  "",
		},
		{
			name: "whitespace only",
			raw:  "  \n\n  \t",
		},
		{
			name: "plain chat message",
			raw:  "Good morning everyone, market looks choppy today",
		},
		{
			name: "no pair token on first line",
			raw:  "Long x10\nEntry - 50000\nSL - 49000\nTP1 - 51000 (50%)",
		},
		{
			name: "entry without side literal",
			raw:  "BTC/USDT x10\nEntry - 50000\nSL - 49000\nTP1 - 51000 (50%)",
		},
		{
			name: "entry without leverage",
			raw:  "BTC/USDT Long\nEntry - 50000\nSL - 49000\nTP1 - 51000 (50%)",
		},
		{
			name: "entry without take profits",
			raw:  "BTC/USDT Long x10\nEntry - 50000\nSL - 49000",
		},
		{
			name: "entry with unparsable entry price",
			raw:  "BTC/USDT Long x10\nEntry\nSL - 49000\nTP1 - 51000 (50%)",
		},
		{
			name: "profit message without price",
			raw:  "#PLUME/USDT (Short📉, x20)\n🔝 Profit - 60%\nfiller line",
		},
		{
			name: "profit message without profit percent",
			raw:  "#PLUME/USDT (Short📉, x20)\n✅ Price - 0.1724\nfiller line",
		},
		{
			name: "profit message without leverage",
			raw:  "#PLUME/USDT (Short📉)\n✅ Price - 0.1724\n🔝 Profit - 60%",
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sig, ok := p.Parse(tt.raw); ok {
				t.Errorf("Parse() = %+v, want no signal", sig)
			}
		})
	}
}

// TestParse_MarkdownDecoration проверяет очистку маркеров форматирования
func TestParse_MarkdownDecoration(t *testing.T) {
	raw := "**BTC/USDT** __Long__ x10\nEntry - 50000\nSL - 49000\nTP1 - 51000 (50%)"

	sig, ok := newTestParser().Parse(raw)
	if !ok {
		t.Fatal("expected signal, got none")
	}

	entry := sig.(*models.EntrySignal)
	if entry.Symbol != "BTC/USDT" || entry.Side != models.SideLong || entry.Leverage != 10 {
		t.Errorf("got %s %s x%d, want BTC/USDT LONG x10",
			entry.Symbol, entry.Side, entry.Leverage)
	}
}

// TestParse_ProfitGrammarPriority: сообщение, подходящее под обе грамматики,
// разбирается как профит-сообщение
func TestParse_ProfitGrammarPriority(t *testing.T) {
	raw := "BTC/USDT Long x10\nPrice - 50000\nProfit - 100%\nTP1 - 51000 (50%)"

	sig, ok := newTestParser().Parse(raw)
	if !ok {
		t.Fatal("expected signal, got none")
	}
	if _, isUpdate := sig.(*models.ProfitUpdateSignal); !isUpdate {
		t.Errorf("expected *models.ProfitUpdateSignal, got %T", sig)
	}
}

// TestParse_EntryWithoutStopLoss: стоп не обязателен, HasStopLoss = false
func TestParse_EntryWithoutStopLoss(t *testing.T) {
	raw := "ETH/USDT Short x5\nEntry - 3000\nfiller\nTP1 - 2900 (100%)"

	sig, ok := newTestParser().Parse(raw)
	if !ok {
		t.Fatal("expected signal, got none")
	}

	entry := sig.(*models.EntrySignal)
	if entry.HasStopLoss() {
		t.Errorf("HasStopLoss() = true, StopLoss = %v, want no stop loss", entry.StopLoss)
	}
	if entry.Side != models.SideShort {
		t.Errorf("Side = %q, want SHORT", entry.Side)
	}
}

// TestParse_BrokenTakeProfitLinesSkipped: непригодные строки TP
// пропускаются, сигнал валиден пока остался хотя бы один уровень
func TestParse_BrokenTakeProfitLinesSkipped(t *testing.T) {
	raw := "BTC/USDT Long x10\nEntry - 50000\nSL - 49000\nTP1 - 51000 (50%)\nTP2 no price here\nTP3 - 53000 (50%)"

	sig, ok := newTestParser().Parse(raw)
	if !ok {
		t.Fatal("expected signal, got none")
	}

	entry := sig.(*models.EntrySignal)
	if len(entry.TakeProfits) != 2 {
		t.Fatalf("len(TakeProfits) = %d, want 2", len(entry.TakeProfits))
	}
	if entry.TakeProfits[0].Price != 51000.0 || entry.TakeProfits[1].Price != 53000.0 {
		t.Errorf("TakeProfits = %+v, want prices 51000 and 53000", entry.TakeProfits)
	}
}

// TestParse_LeverageVariants проверяет обе формы записи плеча
func TestParse_LeverageVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{
			name: "x before digits",
			raw:  "#SOL/USDT (Long📈, x25)\n✅ Price - 145.5\n🔝 Profit - 30%",
			want: 25,
		},
		{
			name: "digits before x",
			raw:  "#SOL/USDT (Long📈, 25x)\n✅ Price - 145.5\n🔝 Profit - 30%",
			want: 25,
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := p.Parse(tt.raw)
			if !ok {
				t.Fatal("expected signal, got none")
			}
			update := sig.(*models.ProfitUpdateSignal)
			if update.Leverage != tt.want {
				t.Errorf("Leverage = %d, want %d", update.Leverage, tt.want)
			}
		})
	}
}
