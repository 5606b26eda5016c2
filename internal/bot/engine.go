package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"signaltrader/internal/exchange"
	"signaltrader/internal/models"
	"signaltrader/pkg/retry"
	"signaltrader/pkg/utils"
)

// ExecuteResult - результат исполнения входа или закрытия
type ExecuteResult struct {
	Success    bool
	Message    string
	Symbol     string
	Size       float64
	EntryPrice float64
	OrderID    string
}

// AdjustResult - результат подтяжки стоп-лосса
//
// Проценты выражены в прибыли на маржу с учётом плеча и используются
// в ретранслируемом сообщении.
type AdjustResult struct {
	Success           bool
	Message           string
	OriginalSLPercent float64
	NewSLPercent      float64
}

// trackedPosition - отслеживаемая позиция с собственным мьютексом
//
// Мьютекс сериализует изменяющие операции по одному символу:
// открытие, подтяжку стопа и закрытие нельзя выполнять одновременно.
// Разные символы не блокируют друг друга.
type trackedPosition struct {
	mu  sync.Mutex
	pos models.Position
}

// PositionEngine - движок жизненного цикла позиций
//
// Владеет реестром отслеживаемых позиций (symbol → state machine
// OPENING/OPEN/CLOSING/CLOSED). Биржа - единственный источник истины:
// реестр это кэш, который сверяется с биржей при старте и по таймеру
// (см. recovery.go).
//
// Гарантия: символ никогда не остаётся отслеживаемым без живой позиции
// на бирже - при сбое дочерних ордеров вход откатывается компенсирующим
// закрытием.
type PositionEngine struct {
	exch exchange.Exchange
	risk *RiskManager
	log  *zap.Logger

	positions map[string]*trackedPosition
	mu        sync.RWMutex

	// Канал уведомлений для ретрансляции (может быть nil)
	notificationChan chan<- *models.Notification

	// Callback журнала сделок: CSV и опционально Postgres (может быть nil)
	onTradeExecuted func(*models.TradeRecord)
}

// NewPositionEngine создаёт движок позиций
func NewPositionEngine(exch exchange.Exchange, risk *RiskManager, log *zap.Logger) *PositionEngine {
	return &PositionEngine{
		exch:      exch,
		risk:      risk,
		log:       log,
		positions: make(map[string]*trackedPosition),
	}
}

// SetNotificationChannel устанавливает канал уведомлений
func (e *PositionEngine) SetNotificationChannel(ch chan<- *models.Notification) {
	e.notificationChan = ch
}

// SetTradeRecorder устанавливает callback журнала сделок
func (e *PositionEngine) SetTradeRecorder(fn func(*models.TradeRecord)) {
	e.onTradeExecuted = fn
}

// ============================================================
// Открытие позиции
// ============================================================

// ExecuteSignal исполняет сигнал на вход
//
// Последовательность: баланс → валидация риска → регистрация OPENING →
// плечо → метаданные символа → размер → рыночный ордер → стоп →
// take-profit ордера → OPEN. Любой сбой после исполненного входа
// откатывается компенсирующим закрытием.
func (e *PositionEngine) ExecuteSignal(ctx context.Context, sig *models.EntrySignal) *ExecuteResult {
	symbol := sig.TradeSymbol

	balance, err := e.exch.GetBalance(ctx)
	if err != nil {
		RecordTrade(symbol, "failed")
		return e.failEntry(symbol, fmt.Sprintf("Failed to get account balance: %v", err))
	}

	ok, riskMsg := e.risk.ValidateRiskParameters(sig, balance)
	if !ok {
		reason := "loss_pct"
		if strings.Contains(riskMsg, "Leverage") {
			reason = "leverage"
		}
		SignalsRejected.WithLabelValues(reason).Inc()
		e.notify(models.NotificationTypeRejected, models.SeverityWarn, symbol, riskMsg)
		e.log.Warn("signal rejected", zap.String("symbol", symbol), zap.String("reason", riskMsg))
		return &ExecuteResult{Success: false, Message: riskMsg, Symbol: symbol}
	}
	if riskMsg != "" {
		e.log.Info("risk validation", zap.String("symbol", symbol), zap.String("detail", riskMsg))
	}

	// Регистрируем символ до размещения ордеров: пока запись в OPENING,
	// конкурирующие операции по символу отклоняются
	tracked, err := e.register(symbol, sig)
	if err != nil {
		return e.failEntry(symbol, err.Error())
	}
	tracked.mu.Lock()
	defer tracked.mu.Unlock()

	if err := e.exch.SetLeverage(ctx, symbol, sig.Leverage); err != nil {
		e.deregister(symbol)
		RecordTrade(symbol, "failed")
		return e.failEntry(symbol, fmt.Sprintf("Failed to set leverage: %v", err))
	}

	// Метаданные нужны для размера; их отсутствие не блокирует вход,
	// сайзинг переключается на безопасные дефолты
	symbolInfo, err := e.exch.GetSymbolInfo(ctx, symbol)
	if err != nil {
		e.log.Warn("symbol info unavailable, sizing with defaults",
			zap.String("symbol", symbol), zap.Error(err))
		symbolInfo = nil
	}

	size, sizeMsg := e.risk.CalculatePositionSize(balance, sig.EntryPrice, sig.StopLoss, sig.Leverage, symbolInfo)
	e.log.Info("position size calculated",
		zap.String("symbol", symbol),
		zap.Float64("size", size),
		zap.Float64("balance", balance),
		zap.String("detail", sizeMsg))

	start := time.Now()
	order, err := e.exch.PlaceMarketOrder(ctx, symbol, exchange.OrderSideForEntry(sig.Side), size, false)
	OrderExecutionLatency.WithLabelValues("entry").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		e.deregister(symbol)
		RecordTrade(symbol, "failed")
		return e.failEntry(symbol, fmt.Sprintf("Failed to place entry order: %v", err))
	}

	filled := order.FilledQty
	if filled <= 0 {
		filled = size
	}
	entryPrice := order.AvgFillPrice
	if entryPrice <= 0 {
		entryPrice = sig.EntryPrice
	}

	// Вход исполнен - дальше любой сбой требует отката
	if sig.HasStopLoss() {
		if err := e.exch.SetTradingStop(ctx, symbol, sig.StopLoss); err != nil {
			return e.rollbackEntry(ctx, sig, filled, fmt.Errorf("failed to set stop loss: %w", err))
		}
	}

	exitSide := exchange.OrderSideForExit(sig.Side)
	for i, tp := range sig.TakeProfits {
		qty := filled * float64(tp.Percent) / 100.0
		if symbolInfo != nil && symbolInfo.QtyStep > 0 {
			qty = utils.RoundToLotSize(qty, symbolInfo.QtyStep)
		}
		if qty <= 0 {
			continue
		}

		tpStart := time.Now()
		_, err := e.exch.PlaceTakeProfitOrder(ctx, symbol, exitSide, qty, tp.Price)
		OrderExecutionLatency.WithLabelValues("take_profit").Observe(float64(time.Since(tpStart).Milliseconds()))
		if err != nil {
			return e.rollbackEntry(ctx, sig, filled, fmt.Errorf("failed to place take profit %d: %w", i+1, err))
		}
	}

	now := time.Now()
	tracked.pos = models.Position{
		Symbol:     symbol,
		Side:       sig.Side,
		Size:       filled,
		EntryPrice: entryPrice,
		StopLoss:   sig.StopLoss,
		Leverage:   sig.Leverage,
		Status:     models.StateOpen,
		OpenedAt:   now,
		UpdatedAt:  now,
	}

	RecordTrade(symbol, "success")
	UpdateActivePositions(e.liveCount())
	e.notify(models.NotificationTypeOpen, models.SeverityInfo, symbol,
		fmt.Sprintf("Opened %s %s, size %v @ %v", sig.Side, symbol, filled, entryPrice))
	e.recordTrade(sig, filled, order.ID, models.TradeStatusExecuted)

	e.log.Info("position opened",
		zap.String("symbol", symbol),
		zap.String("side", sig.Side),
		zap.Float64("size", filled),
		zap.Float64("entry_price", entryPrice),
		zap.String("order_id", order.ID))

	return &ExecuteResult{
		Success:    true,
		Message:    "Trade executed successfully",
		Symbol:     symbol,
		Size:       filled,
		EntryPrice: entryPrice,
		OrderID:    order.ID,
	}
}

// rollbackEntry закрывает только что исполненный вход после сбоя дочерних ордеров
//
// Символ не должен остаться отслеживаемым без живой позиции на бирже.
// Закрытие критично, поэтому выполняется с агрессивным retry.
func (e *PositionEngine) rollbackEntry(ctx context.Context, sig *models.EntrySignal, qty float64, cause error) *ExecuteResult {
	symbol := sig.TradeSymbol
	e.log.Error("rolling back entry", zap.String("symbol", symbol), zap.Error(cause))

	closeErr := retry.Do(ctx, func() error {
		return e.exch.ClosePosition(ctx, symbol, sig.Side, qty)
	}, retry.AggressiveConfig())

	e.deregister(symbol)
	RecordTrade(symbol, "rollback")
	e.recordTrade(sig, qty, "", models.TradeStatusFailed)

	msg := fmt.Sprintf("Trade failed: %v. Entry order rolled back", cause)
	if closeErr != nil {
		msg = fmt.Sprintf("Trade failed: %v. ROLLBACK FAILED: %v. Close %s manually", cause, closeErr, symbol)
		e.log.Error("rollback failed", zap.String("symbol", symbol), zap.Error(closeErr))
	}
	e.notify(models.NotificationTypeError, models.SeverityError, symbol, msg)

	return &ExecuteResult{Success: false, Message: msg, Symbol: symbol}
}

// ============================================================
// Закрытие позиции
// ============================================================

// ClosePosition полностью закрывает отслеживаемую позицию
//
// Идемпотентна: закрытие неизвестного или уже закрытого символа -
// успешный no-op. При сбое биржи запись остаётся в CLOSING, повторная
// команда или фоновая сверка доводят закрытие до конца.
func (e *PositionEngine) ClosePosition(ctx context.Context, symbol string) *ExecuteResult {
	e.mu.RLock()
	tracked, ok := e.positions[symbol]
	e.mu.RUnlock()

	if !ok {
		return &ExecuteResult{
			Success: true,
			Message: fmt.Sprintf("No tracked position for %s, nothing to close", symbol),
			Symbol:  symbol,
		}
	}

	tracked.mu.Lock()
	defer tracked.mu.Unlock()

	switch tracked.pos.Status {
	case models.StateClosed:
		return &ExecuteResult{Success: true, Message: "Position already closed", Symbol: symbol}
	case models.StateOpening:
		return &ExecuteResult{Success: false, Message: "Position is still opening", Symbol: symbol}
	}

	if tracked.pos.Status == models.StateOpen {
		tracked.pos.Status = models.StateClosing
		tracked.pos.UpdatedAt = time.Now()
	}

	start := time.Now()
	err := e.exch.ClosePosition(ctx, symbol, tracked.pos.Side, tracked.pos.Size)
	OrderExecutionLatency.WithLabelValues("close").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		msg := fmt.Sprintf("Failed to close position for %s: %v", symbol, err)
		e.notify(models.NotificationTypeError, models.SeverityError, symbol, msg)
		e.log.Error("close failed", zap.String("symbol", symbol), zap.Error(err))
		return &ExecuteResult{Success: false, Message: msg, Symbol: symbol}
	}

	tracked.pos.Status = models.StateClosed
	size := tracked.pos.Size
	e.deregister(symbol)
	UpdateActivePositions(e.liveCount())
	RecordTrade(symbol, "closed")
	e.notify(models.NotificationTypeClose, models.SeverityInfo, symbol,
		fmt.Sprintf("Closed position %s, size %v", symbol, size))

	e.log.Info("position closed", zap.String("symbol", symbol), zap.Float64("size", size))

	return &ExecuteResult{Success: true, Message: "Position closed", Symbol: symbol, Size: size}
}

// ============================================================
// Подтяжка стоп-лосса
// ============================================================

// AdjustStopLossForProfitTarget переносит стоп для фиксации части прибыли
//
// Новый стоп рассчитывается от цены входа: движение цены, дающее
// profitTargetPercent прибыли на маржу при данном плече. Подтяжка
// строго монотонна - стоп двигается только в пользу позиции.
func (e *PositionEngine) AdjustStopLossForProfitTarget(ctx context.Context, symbol string, profitTargetPercent int) *AdjustResult {
	e.mu.RLock()
	tracked, ok := e.positions[symbol]
	e.mu.RUnlock()

	if !ok {
		return &AdjustResult{Success: false, Message: fmt.Sprintf("No tracked position for %s", symbol)}
	}

	tracked.mu.Lock()
	defer tracked.mu.Unlock()

	if tracked.pos.Status != models.StateOpen {
		return &AdjustResult{
			Success: false,
			Message: fmt.Sprintf("Position for %s is not open (state: %s)", symbol, tracked.pos.Status),
		}
	}

	pos := &tracked.pos
	lev := pos.Leverage
	if lev < 1 {
		lev = 1
	}

	// Движение цены, соответствующее целевой прибыли на маржу
	move := float64(profitTargetPercent) / (100.0 * float64(lev))
	var newSL float64
	if pos.Side == models.SideLong {
		newSL = pos.EntryPrice * (1 + move)
	} else {
		newSL = pos.EntryPrice * (1 - move)
	}

	// Монотонность: новый стоп не может ослабить защиту
	if pos.StopLoss > 0 {
		loosens := (pos.Side == models.SideLong && newSL <= pos.StopLoss) ||
			(pos.Side == models.SideShort && newSL >= pos.StopLoss)
		if loosens {
			return &AdjustResult{
				Success: false,
				Message: fmt.Sprintf("New stop loss %v would not improve current %v", newSL, pos.StopLoss),
			}
		}
	}

	originalPct := stopLossPercent(pos.Side, pos.EntryPrice, pos.StopLoss, lev)

	if err := e.exch.SetTradingStop(ctx, symbol, newSL); err != nil {
		msg := fmt.Sprintf("Failed to adjust stop loss for %s: %v", symbol, err)
		e.log.Error("stop loss adjustment failed", zap.String("symbol", symbol), zap.Error(err))
		return &AdjustResult{Success: false, Message: msg}
	}

	pos.StopLoss = newSL
	pos.UpdatedAt = time.Now()

	newPct := stopLossPercent(pos.Side, pos.EntryPrice, newSL, lev)
	RecordStopLossAdjustment(symbol)
	e.notify(models.NotificationTypeSLAdjust, models.SeverityInfo, symbol,
		fmt.Sprintf("Stop loss for %s moved to %v (locks %d%% target)", symbol, newSL, profitTargetPercent))

	e.log.Info("stop loss adjusted",
		zap.String("symbol", symbol),
		zap.Float64("new_stop_loss", newSL),
		zap.Int("profit_target_percent", profitTargetPercent))

	return &AdjustResult{
		Success:           true,
		Message:           fmt.Sprintf("Stop loss moved to %v", newSL),
		OriginalSLPercent: originalPct,
		NewSLPercent:      newPct,
	}
}

// stopLossPercent выражает уровень стопа в процентах прибыли на маржу
// Отрицательное значение - стоп ниже входа (фиксирует убыток)
func stopLossPercent(side string, entry, stopLoss float64, leverage int) float64 {
	if stopLoss <= 0 || entry <= 0 {
		return 0
	}
	if side == models.SideLong {
		return (stopLoss - entry) / entry * 100.0 * float64(leverage)
	}
	return (entry - stopLoss) / entry * 100.0 * float64(leverage)
}

// ============================================================
// Реестр позиций
// ============================================================

// register добавляет запись в состоянии OPENING
// Ошибка если по символу уже есть отслеживаемая позиция
func (e *PositionEngine) register(symbol string, sig *models.EntrySignal) (*trackedPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.positions[symbol]; exists {
		return nil, fmt.Errorf("position for %s is already tracked", symbol)
	}

	now := time.Now()
	tracked := &trackedPosition{
		pos: models.Position{
			Symbol:     symbol,
			Side:       sig.Side,
			EntryPrice: sig.EntryPrice,
			StopLoss:   sig.StopLoss,
			Leverage:   sig.Leverage,
			Status:     models.StateOpening,
			OpenedAt:   now,
			UpdatedAt:  now,
		},
	}
	e.positions[symbol] = tracked
	return tracked, nil
}

// deregister удаляет запись из реестра
func (e *PositionEngine) deregister(symbol string) {
	e.mu.Lock()
	delete(e.positions, symbol)
	e.mu.Unlock()
}

// liveCount возвращает число отслеживаемых позиций
func (e *PositionEngine) liveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.positions)
}

// IsTracked сообщает, отслеживается ли символ
func (e *PositionEngine) IsTracked(symbol string) bool {
	e.mu.RLock()
	_, ok := e.positions[symbol]
	e.mu.RUnlock()
	return ok
}

// Snapshot возвращает копии всех отслеживаемых позиций
// Используется HTTP эндпоинтом /positions и фоновой сверкой
func (e *PositionEngine) Snapshot() []models.Position {
	e.mu.RLock()
	list := make([]*trackedPosition, 0, len(e.positions))
	for _, tracked := range e.positions {
		list = append(list, tracked)
	}
	e.mu.RUnlock()

	// Позиции читаются под их собственными мьютексами уже без e.mu:
	// иначе возможен deadlock с операциями, удаляющими запись
	out := make([]models.Position, 0, len(list))
	for _, tracked := range list {
		tracked.mu.Lock()
		out = append(out, tracked.pos)
		tracked.mu.Unlock()
	}
	return out
}

// ============================================================
// Вспомогательные методы
// ============================================================

// failEntry формирует результат отказа и пишет его в лог
func (e *PositionEngine) failEntry(symbol, msg string) *ExecuteResult {
	e.log.Error("trade execution failed", zap.String("symbol", symbol), zap.String("reason", msg))
	e.notify(models.NotificationTypeError, models.SeverityError, symbol, msg)
	return &ExecuteResult{Success: false, Message: msg, Symbol: symbol}
}

// notify отправляет уведомление без блокировки
func (e *PositionEngine) notify(notifType, severity, symbol, message string) {
	if e.notificationChan == nil {
		return
	}
	notif := &models.Notification{
		Timestamp: time.Now(),
		Type:      notifType,
		Severity:  severity,
		Symbol:    symbol,
		Message:   message,
	}
	select {
	case e.notificationChan <- notif:
	default:
		// Канал заполнен
	}
}

// recordTrade пишет строку в журнал сделок
func (e *PositionEngine) recordTrade(sig *models.EntrySignal, size float64, orderID, status string) {
	if e.onTradeExecuted == nil {
		return
	}

	levels := make([]string, 0, len(sig.TakeProfits))
	for _, tp := range sig.TakeProfits {
		levels = append(levels, fmt.Sprintf("%v(%d%%)", tp.Price, tp.Percent))
	}

	e.onTradeExecuted(&models.TradeRecord{
		Timestamp:    time.Now(),
		Symbol:       sig.TradeSymbol,
		Direction:    sig.Side,
		Entry:        sig.EntryPrice,
		StopLoss:     sig.StopLoss,
		TakeProfit:   strings.Join(levels, ";"),
		PositionSize: size,
		OrderID:      orderID,
		Status:       status,
	})
}
