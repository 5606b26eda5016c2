package models

// Направления позиции
const (
	SideLong  = "LONG"  // длинная позиция (ставка на рост)
	SideShort = "SHORT" // короткая позиция (ставка на падение)
)

// Signal - распознанный торговый сигнал (tagged union)
//
// Ровно один вариант на успешно распарсенное сообщение:
// - EntrySignal: открытие новой позиции
// - ProfitUpdateSignal: обновление по уже открытой позиции
//
// Интерфейс запечатан (sealed): варианты определены только в этом пакете.
// Нераспознанное сообщение даёт "нет сигнала", никогда не частично
// заполненную структуру.
type Signal interface {
	// Pair возвращает торговую пару в виде X/Y
	Pair() string

	// TradePair возвращает символ без слеша для API биржи (BTCUSDT)
	TradePair() string

	signal()
}

// TakeProfitLevel - один уровень фиксации прибыли
type TakeProfitLevel struct {
	Price   float64 `json:"price"`   // целевая цена
	Percent int     `json:"percent"` // доля позиции в процентах (0, 100]
}

// EntrySignal - сигнал на открытие новой позиции с плечом
type EntrySignal struct {
	Symbol      string            `json:"symbol"`       // BTC/USDT
	TradeSymbol string            `json:"trade_symbol"` // BTCUSDT
	Side        string            `json:"side"`         // LONG, SHORT
	Leverage    int               `json:"leverage"`
	EntryPrice  float64           `json:"entry_price"`
	StopLoss    float64           `json:"stop_loss,omitempty"` // 0 = стоп не указан
	TakeProfits []TakeProfitLevel `json:"take_profits"`
	RawText     string            `json:"-"`
}

func (s *EntrySignal) Pair() string      { return s.Symbol }
func (s *EntrySignal) TradePair() string { return s.TradeSymbol }
func (s *EntrySignal) signal()           {}

// HasStopLoss возвращает true если в сигнале задан стоп-лосс
func (s *EntrySignal) HasStopLoss() bool { return s.StopLoss > 0 }

// ProfitUpdateSignal - сигнал по существующей позиции
//
// 100% таргет означает полный выход, меньший - подтяжку стоп-лосса
// для фиксации части прибыли.
type ProfitUpdateSignal struct {
	Symbol              string  `json:"symbol"`
	TradeSymbol         string  `json:"trade_symbol"`
	Side                string  `json:"side"`
	Leverage            int     `json:"leverage"`
	EntryPrice          float64 `json:"entry_price"`
	ProfitTargetPercent int     `json:"profit_target_percent"` // (0, 100]
	RawText             string  `json:"-"`
}

func (s *ProfitUpdateSignal) Pair() string      { return s.Symbol }
func (s *ProfitUpdateSignal) TradePair() string { return s.TradeSymbol }
func (s *ProfitUpdateSignal) signal()           {}
