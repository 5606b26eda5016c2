package signal

import (
	"fmt"
	"strconv"
	"strings"

	"signaltrader/internal/models"
)

// Formatter строит человекочитаемый текст для ретрансляции сигнала
// в целевой канал
//
// Формат предназначен для чтения людьми и намеренно не обязан обратно
// парситься этим же ботом.
type Formatter struct {
	// при включённых entry-уведомлениях бот сам шлёт сообщение об
	// открытии, и ретрансляция входа дала бы дубль
	entryNotifications bool
}

// NewFormatter создаёт форматтер
func NewFormatter(entryNotifications bool) *Formatter {
	return &Formatter{entryNotifications: entryNotifications}
}

// Format форматирует сигнал; пустая строка = не ретранслировать
func (f *Formatter) Format(sig models.Signal) string {
	switch s := sig.(type) {
	case *models.ProfitUpdateSignal:
		return f.formatProfitUpdate(s)
	case *models.EntrySignal:
		if f.entryNotifications {
			return ""
		}
		return f.formatEntry(s)
	default:
		return ""
	}
}

func (f *Formatter) formatEntry(s *models.EntrySignal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 BYBIT SIGNAL\n\n")
	fmt.Fprintf(&b, "Pair: %s\n", s.Symbol)
	fmt.Fprintf(&b, "Position: %s\n", positionDisplay(s.Side))
	fmt.Fprintf(&b, "Leverage: %dx\n", s.Leverage)
	fmt.Fprintf(&b, "Entry: %s\n", formatPrice(s.EntryPrice))

	if s.HasStopLoss() {
		fmt.Fprintf(&b, "Stop Loss: %s\n", formatPrice(s.StopLoss))
	}

	b.WriteString("\nTake Profit Targets:\n")
	totalProfit := 0
	for i, tp := range s.TakeProfits {
		fmt.Fprintf(&b, "TP%d: %s (%d%%)\n", i+1, formatPrice(tp.Price), tp.Percent)
		totalProfit += tp.Percent
	}

	fmt.Fprintf(&b, "\nTotal Profit: %d%%\n", totalProfit)
	fmt.Fprintf(&b, "\n#Bybit #%s", s.TradeSymbol)

	return b.String()
}

func (f *Formatter) formatProfitUpdate(s *models.ProfitUpdateSignal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 PROFIT TARGET\n\n")
	fmt.Fprintf(&b, "Pair: %s\n", s.Symbol)
	fmt.Fprintf(&b, "Position: %s\n", positionDisplay(s.Side))
	fmt.Fprintf(&b, "Leverage: %dx\n", s.Leverage)
	fmt.Fprintf(&b, "Entry Price: %s\n", formatPrice(s.EntryPrice))
	fmt.Fprintf(&b, "Target Profit: %d%%\n\n", s.ProfitTargetPercent)
	fmt.Fprintf(&b, "#Bybit #%s", s.TradeSymbol)

	return b.String()
}

func positionDisplay(side string) string {
	if side == models.SideLong {
		return "🟢 " + models.SideLong
	}
	return "🔴 " + models.SideShort
}

// formatPrice печатает цену без хвостовых нулей (0.1724, 50000)
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
