package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signaltrader/internal/exchange"
	"signaltrader/internal/models"
)

// RecoveryManager сверяет реестр движка с фактическим состоянием биржи
//
// Функциональность:
// - Стартовая сверка: принятие позиций, открытых вне бота, в трекинг
// - Фоновая сверка по таймеру: обнаружение внешних закрытий
// - Подписка на приватный поток позиций: ликвидации и закрытия в реальном времени
//
// Биржа всегда побеждает: запись без живой позиции удаляется, живая
// позиция без записи принимается в трекинг.
type RecoveryManager struct {
	engine *PositionEngine
	exch   exchange.Exchange
	log    *zap.Logger

	notificationChan chan<- *models.Notification

	monitorInterval time.Duration // период фоновой сверки
	recoveryTimeout time.Duration // таймаут одного прохода сверки

	stopCh chan struct{}
}

// NewRecoveryManager создаёт менеджер сверки
func NewRecoveryManager(
	engine *PositionEngine,
	exch exchange.Exchange,
	monitorInterval time.Duration,
	recoveryTimeout time.Duration,
	log *zap.Logger,
) *RecoveryManager {
	return &RecoveryManager{
		engine:          engine,
		exch:            exch,
		log:             log,
		monitorInterval: monitorInterval,
		recoveryTimeout: recoveryTimeout,
		stopCh:          make(chan struct{}),
	}
}

// SetNotificationChannel устанавливает канал уведомлений
func (rm *RecoveryManager) SetNotificationChannel(ch chan<- *models.Notification) {
	rm.notificationChan = ch
}

// ReconcileResult - итоги одного прохода сверки
type ReconcileResult struct {
	Adopted int // позиций принято в трекинг
	Dropped int // записей удалено (нет живой позиции)
	Live    int // живых позиций на бирже
}

// Reconcile выполняет один проход сверки реестра с биржей
//
// Вызывается при старте (до обработки сигналов) и затем по таймеру.
func (rm *RecoveryManager) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	positions, err := rm.exch.GetOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open positions: %w", err)
	}

	live := make(map[string]*exchange.Position, len(positions))
	for _, p := range positions {
		if p.Size > 0 {
			live[p.Symbol] = p
		}
	}

	result := &ReconcileResult{Live: len(live)}

	// Записи без живой позиции: внешнее закрытие или ликвидация
	for _, tracked := range rm.engine.Snapshot() {
		if IsMutating(tracked.Status) {
			// Операция в полёте, следующий проход разберётся
			continue
		}
		if _, ok := live[tracked.Symbol]; ok {
			continue
		}
		if rm.engine.dropPosition(tracked.Symbol) {
			result.Dropped++
			ReconciliationDrops.WithLabelValues(tracked.Symbol).Inc()
			rm.notify(models.NotificationTypeClose, models.SeverityWarn, tracked.Symbol,
				fmt.Sprintf("Position %s closed externally, removed from tracking", tracked.Symbol))
			rm.log.Warn("tracked position has no live match, dropped",
				zap.String("symbol", tracked.Symbol))
		}
	}

	// Живые позиции без записи: открыты вне бота, принимаем в трекинг
	for symbol, p := range live {
		if rm.engine.IsTracked(symbol) {
			continue
		}
		if rm.engine.adoptPosition(p) {
			result.Adopted++
			rm.log.Info("adopted external position",
				zap.String("symbol", symbol),
				zap.String("side", p.Side),
				zap.Float64("size", p.Size),
				zap.Float64("entry_price", p.EntryPrice))
		}
	}

	UpdateActivePositions(rm.engine.liveCount())
	return result, nil
}

// Start запускает фоновую сверку и подписку на поток позиций
//
// Блокируется до отмены контекста или Stop.
func (rm *RecoveryManager) Start(ctx context.Context) {
	// Поток позиций best effort: при недоступности WebSocket внешние
	// закрытия обнаружит сверка по таймеру
	if err := rm.exch.SubscribePositions(rm.onPositionUpdate); err != nil {
		rm.log.Warn("position stream unavailable, relying on periodic reconciliation",
			zap.Error(err))
	}

	ticker := time.NewTicker(rm.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rm.stopCh:
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, rm.recoveryTimeout)
			result, err := rm.Reconcile(tickCtx)
			cancel()

			if err != nil {
				rm.log.Error("reconciliation failed", zap.Error(err))
				continue
			}
			if result.Adopted > 0 || result.Dropped > 0 {
				rm.log.Info("reconciliation",
					zap.Int("adopted", result.Adopted),
					zap.Int("dropped", result.Dropped),
					zap.Int("live", result.Live))
			}
		}
	}
}

// Stop останавливает фоновую сверку
func (rm *RecoveryManager) Stop() {
	close(rm.stopCh)
}

// onPositionUpdate обрабатывает событие приватного потока позиций
func (rm *RecoveryManager) onPositionUpdate(p *exchange.Position) {
	if p.Liquidation {
		LiquidationsDetected.WithLabelValues(p.Symbol).Inc()
		if rm.engine.dropPosition(p.Symbol) {
			UpdateActivePositions(rm.engine.liveCount())
		}
		rm.notify(models.NotificationTypeError, models.SeverityError, p.Symbol,
			fmt.Sprintf("💥 Position %s LIQUIDATED", p.Symbol))
		rm.log.Error("liquidation detected", zap.String("symbol", p.Symbol))
		return
	}

	// Нулевой размер - позиция закрыта (стоп, take-profit или вручную)
	if p.Size == 0 {
		if rm.engine.dropPosition(p.Symbol) {
			UpdateActivePositions(rm.engine.liveCount())
			ReconciliationDrops.WithLabelValues(p.Symbol).Inc()
			rm.notify(models.NotificationTypeClose, models.SeverityInfo, p.Symbol,
				fmt.Sprintf("Position %s closed on exchange, removed from tracking", p.Symbol))
			rm.log.Info("position closed externally", zap.String("symbol", p.Symbol))
		}
	}
}

// notify отправляет уведомление без блокировки
func (rm *RecoveryManager) notify(notifType, severity, symbol, message string) {
	if rm.notificationChan == nil {
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
	case rm.notificationChan <- notif:
	default:
	}
}

// ============================================================
// Операции сверки над реестром движка
// ============================================================

// adoptPosition принимает позицию с биржи в трекинг в состоянии OPEN
// Возвращает false если символ уже отслеживается
func (e *PositionEngine) adoptPosition(p *exchange.Position) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.positions[p.Symbol]; exists {
		return false
	}

	now := time.Now()
	e.positions[p.Symbol] = &trackedPosition{
		pos: models.Position{
			Symbol:     p.Symbol,
			Side:       p.Side,
			Size:       p.Size,
			EntryPrice: p.EntryPrice,
			StopLoss:   p.StopLoss,
			Leverage:   p.Leverage,
			Status:     models.StateOpen,
			OpenedAt:   now,
			UpdatedAt:  now,
		},
	}
	return true
}

// dropPosition убирает запись, которой больше нет на бирже
//
// Удаляет только стабильные записи (OPEN): операции в полёте
// (OPENING/CLOSING) завершаются своим ходом и сами чистят реестр.
func (e *PositionEngine) dropPosition(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	tracked, ok := e.positions[symbol]
	if !ok {
		return false
	}
	if !tracked.mu.TryLock() {
		// Изменяющая операция в полёте
		return false
	}
	defer tracked.mu.Unlock()

	if tracked.pos.Status != models.StateOpen {
		return false
	}
	tracked.pos.Status = models.StateClosed
	delete(e.positions, symbol)
	return true
}
