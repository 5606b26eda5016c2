package models

import "time"

// Состояния позиции (state machine)
const (
	StateOpening = "OPENING" // вход в процессе, ордера размещаются
	StateOpen    = "OPEN"    // позиция открыта, мониторинг активен
	StateClosing = "CLOSING" // закрытие в процессе
	StateClosed  = "CLOSED"  // терминальное состояние, запись удаляется
)

// Position представляет отслеживаемую позицию на бирже
//
// Владеет записью и мутирует её только PositionEngine. Биржа остаётся
// единственным источником истины: запись - это самовосстанавливающийся
// кэш, который сверяется с биржей при старте и по таймеру.
type Position struct {
	Symbol     string    `json:"symbol"`      // BTCUSDT (формат биржи)
	Side       string    `json:"side"`        // LONG, SHORT
	Size       float64   `json:"size"`        // объём в базовой валюте
	EntryPrice float64   `json:"entry_price"` // средняя цена входа
	StopLoss   float64   `json:"stop_loss"`   // текущий стоп, 0 = не установлен
	Leverage   int       `json:"leverage"`
	Status     string    `json:"status"` // OPENING, OPEN, CLOSING, CLOSED
	OpenedAt   time.Time `json:"opened_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TradeRecord - строка журнала сделок (CSV и опциональная таблица trades)
type TradeRecord struct {
	ID           int       `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Symbol       string    `json:"symbol" db:"symbol"`
	Direction    string    `json:"direction" db:"direction"` // LONG, SHORT
	Entry        float64   `json:"entry" db:"entry"`
	StopLoss     float64   `json:"stop_loss" db:"stop_loss"`
	TakeProfit   string    `json:"take_profit" db:"take_profit"` // список уровней через ;
	PositionSize float64   `json:"position_size" db:"position_size"`
	OrderID      string    `json:"order_id" db:"order_id"`
	Status       string    `json:"status" db:"status"` // EXECUTED, CLOSED, FAILED
}

// Статусы записей журнала
const (
	TradeStatusExecuted = "EXECUTED"
	TradeStatusClosed   = "CLOSED"
	TradeStatusFailed   = "FAILED"
)
