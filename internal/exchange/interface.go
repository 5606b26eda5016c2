package exchange

import (
	"context"
	"time"
)

// Exchange определяет интерфейс исполнения сделок на бирже деривативов
//
// Единственная реализация - Bybit, но движок позиций работает только
// через этот интерфейс: в тестах его подменяет fake без сети.
type Exchange interface {
	// Connect устанавливает соединение с биржей и проверяет ключи
	Connect(ctx context.Context, apiKey, secret string) error

	// GetName возвращает имя биржи
	GetName() string

	// GetBalance получает баланс фьючерсного аккаунта в USDT
	GetBalance(ctx context.Context) (float64, error)

	// GetSymbolInfo получает торговые ограничения символа
	// Снимок не кэшируется: запрашивается заново перед каждым расчётом размера
	GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)

	// SetLeverage устанавливает плечо для символа
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// PlaceMarketOrder размещает рыночный ордер
	// reduceOnly = true для ордеров, которые могут только уменьшать позицию
	PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64, reduceOnly bool) (*Order, error)

	// PlaceTakeProfitOrder размещает reduce-only лимитный ордер фиксации прибыли
	PlaceTakeProfitOrder(ctx context.Context, symbol, side string, qty, price float64) (*Order, error)

	// SetTradingStop устанавливает стоп-лосс на открытую позицию
	// stopLoss = 0 снимает стоп
	SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error

	// GetOpenPositions получает список открытых позиций
	GetOpenPositions(ctx context.Context) ([]*Position, error)

	// ClosePosition закрывает позицию рыночным reduce-only ордером
	ClosePosition(ctx context.Context, symbol, side string, qty float64) error

	// SubscribePositions подписывается на обновления позиций через WebSocket
	// (обнаружение внешних закрытий и ликвидаций)
	SubscribePositions(callback func(*Position)) error

	// Close закрывает соединения с биржей
	Close() error
}

// SymbolInfo содержит торговые ограничения символа
type SymbolInfo struct {
	Symbol      string  `json:"symbol"`
	MinOrderQty float64 `json:"min_order_qty"` // минимальный размер ордера
	MaxOrderQty float64 `json:"max_order_qty"` // максимальный размер ордера
	QtyStep     float64 `json:"qty_step"`      // шаг изменения количества (lot size)
	MinNotional float64 `json:"min_notional"`  // минимальная сумма сделки в USDT
	MaxLeverage int     `json:"max_leverage"`  // максимальное плечо
}

// Order представляет ордер
type Order struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"` // "buy" или "sell"
	Type         string    `json:"type"` // "market" или "limit"
	Quantity     float64   `json:"quantity"`
	FilledQty    float64   `json:"filled_qty"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	Price        float64   `json:"price,omitempty"` // для лимитных ордеров
	ReduceOnly   bool      `json:"reduce_only"`
	Status       string    `json:"status"` // "filled", "new", "cancelled"
	CreatedAt    time.Time `json:"created_at"`
}

// Position представляет открытую позицию на бирже
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"` // "LONG" или "SHORT"
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	MarkPrice     float64   `json:"mark_price"`
	StopLoss      float64   `json:"stop_loss"` // 0 = стоп не установлен
	Leverage      int       `json:"leverage"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	Liquidation   bool      `json:"liquidation"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Retryable сообщает retry-слою, имеет ли смысл повторять запрос
//
// Rate limit и серверные сбои временные; ошибки параметров и
// недостаток средств повторять бессмысленно.
func (e *ExchangeError) Retryable() bool {
	switch e.Code {
	case "10006", "10016", "10002": // rate limit, server error, timestamp drift
		return true
	default:
		return false
	}
}

// Side constants for orders (используются при размещении ордеров)
const (
	SideBuy  = "buy"  // покупка (открытие long или закрытие short)
	SideSell = "sell" // продажа (открытие short или закрытие long)
)

// Side constants for positions
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// Order status constants
const (
	OrderStatusFilled    = "filled"
	OrderStatusNew       = "new"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

// OrderSideForEntry возвращает сторону ордера для открытия позиции
func OrderSideForEntry(positionSide string) string {
	if positionSide == SideShort {
		return SideSell
	}
	return SideBuy
}

// OrderSideForExit возвращает сторону ордера для закрытия позиции
func OrderSideForExit(positionSide string) string {
	if positionSide == SideShort {
		return SideBuy
	}
	return SideSell
}
