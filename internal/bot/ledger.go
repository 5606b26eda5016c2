package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"signaltrader/internal/models"
)

// Заголовок CSV журнала сделок
var ledgerHeader = []string{
	"Timestamp", "Symbol", "Direction", "Entry", "Stop Loss",
	"Take Profit", "Position Size", "Order ID", "Status",
}

// TradeLedger - append-only CSV журнал исполненных сделок
//
// Один файл на день (trades_2006-01-02.csv) в каталоге журнала.
// Журнал вспомогательный: состояние позиций из него не восстанавливается,
// источник истины всегда биржа.
type TradeLedger struct {
	dir string
	log *zap.Logger
	mu  sync.Mutex
}

// NewTradeLedger создаёт журнал сделок в каталоге dir
func NewTradeLedger(dir string, log *zap.Logger) *TradeLedger {
	return &TradeLedger{dir: dir, log: log}
}

// Record дописывает строку журнала
func (l *TradeLedger) Record(rec *models.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path, err := l.ensureFile(rec.Timestamp)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer f.Close()

	row := strings.Join([]string{
		rec.Timestamp.Format("2006-01-02 15:04:05"),
		rec.Symbol,
		rec.Direction,
		strconv.FormatFloat(rec.Entry, 'f', -1, 64),
		strconv.FormatFloat(rec.StopLoss, 'f', -1, 64),
		rec.TakeProfit,
		strconv.FormatFloat(rec.PositionSize, 'f', -1, 64),
		rec.OrderID,
		rec.Status,
	}, ",")

	if _, err := f.WriteString(row + "\n"); err != nil {
		return fmt.Errorf("failed to write ledger row: %w", err)
	}
	return nil
}

// ensureFile создаёт файл дня с заголовком, если его ещё нет
func (l *TradeLedger) ensureFile(ts time.Time) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create ledger dir: %w", err)
	}

	path := filepath.Join(l.dir, "trades_"+ts.Format("2006-01-02")+".csv")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create ledger file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(ledgerHeader, ",") + "\n"); err != nil {
		return "", fmt.Errorf("failed to write ledger header: %w", err)
	}

	l.log.Info("trade ledger file created", zap.String("path", path))
	return path, nil
}
