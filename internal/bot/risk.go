package bot

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"signaltrader/internal/exchange"
	"signaltrader/internal/models"
	"signaltrader/pkg/utils"
)

// ============================================================
// Риск-менеджмент: валидация сигналов и расчёт размера позиции
// ============================================================

const (
	// Дефолты при отсутствии/битых метаданных символа
	defaultMinNotional  = 10.0 // минимальный notional в котируемой валюте
	defaultQtyPrecision = 3    // знаков после запятой в объёме

	// Безопасный размер при любой ошибке расчёта
	fallbackPositionSize = 0.01

	// Доли баланса для fallback-сайзинга
	degenerateStopFraction = 0.10 // стоп совпадает с ценой входа
	noStopFraction         = 0.05 // стоп не указан, консервативный вход

	// Пороги потенциального убытка (% от маржи)
	rejectLossPct = 80.0
	warnLossPct   = 50.0
)

// RiskManager рассчитывает размер позиции и проверяет параметры сигнала
//
// Расчёт размера никогда не падает: при любой ошибке возвращается
// безопасный минимальный размер с пояснением. Отказ возможен только
// на этапе валидации (плечо выше лимита, убыток до стопа слишком велик).
type RiskManager struct {
	riskPercent float64 // процент баланса, рискуемый на сделку
	maxLeverage int
	log         *zap.Logger
}

// NewRiskManager создаёт риск-менеджер
func NewRiskManager(riskPercent float64, maxLeverage int, log *zap.Logger) *RiskManager {
	return &RiskManager{
		riskPercent: riskPercent,
		maxLeverage: maxLeverage,
		log:         log,
	}
}

// CalculatePositionSize рассчитывает объём позиции в базовой валюте
//
// stopLoss = 0 означает отсутствие стопа. symbolInfo может быть nil -
// тогда используются дефолтные minNotional и точность. Возвращает
// размер и сообщение о применённых корректировках.
func (rm *RiskManager) CalculatePositionSize(
	balance float64,
	entryPrice float64,
	stopLoss float64,
	leverage int,
	symbolInfo *exchange.SymbolInfo,
) (float64, string) {
	if balance <= 0 || entryPrice <= 0 {
		rm.log.Error("invalid sizing inputs",
			zap.Float64("balance", balance),
			zap.Float64("entry_price", entryPrice))
		return fallbackPositionSize, "Error in position sizing: invalid balance or entry price"
	}

	// Ограничиваем плечо сверху
	effectiveLeverage := leverage
	if effectiveLeverage > rm.maxLeverage {
		effectiveLeverage = rm.maxLeverage
	}
	if effectiveLeverage < 1 {
		effectiveLeverage = 1
	}

	riskAmount := balance * rm.riskPercent / 100.0

	// Метаданные символа; битые значения не роняют расчёт
	minNotional := defaultMinNotional
	precision := defaultQtyPrecision
	if symbolInfo != nil {
		if symbolInfo.QtyStep > 0 {
			precision = utils.PrecisionFromStep(symbolInfo.QtyStep)
		}
		if symbolInfo.MinOrderQty > 0 {
			minNotional = symbolInfo.MinOrderQty * entryPrice
		}
	}

	var size float64
	message := "Position size calculated successfully"

	switch {
	case stopLoss > 0 && stopLoss != entryPrice:
		// Размер от рискуемой суммы и расстояния до стопа
		riskPerUnit := math.Abs(entryPrice - stopLoss)
		size = riskAmount * float64(effectiveLeverage) / riskPerUnit

	case stopLoss > 0:
		// Стоп совпадает с входом - расстояние нулевое
		rm.log.Warn("stop loss too close to entry, using default sizing",
			zap.Float64("entry_price", entryPrice))
		size = balance * degenerateStopFraction * float64(effectiveLeverage) / entryPrice
		message = "Stop loss too close to entry; using default sizing"

	default:
		size = balance * noStopFraction * float64(effectiveLeverage) / entryPrice
		message = "No stop loss provided; using conservative position sizing"
	}

	// Дотягиваем до минимального notional биржи
	if size*entryPrice < minNotional {
		size = minNotional / entryPrice
		message = fmt.Sprintf("Increased position size to meet minimum notional value of %.2f", minNotional)
	}

	size = utils.RoundToPrecision(size, precision)

	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		rm.log.Error("position sizing produced unusable value", zap.Float64("size", size))
		return fallbackPositionSize, "Error in position sizing: degenerate result"
	}

	return size, message
}

// ValidateRiskParameters проверяет приемлемость риска сигнала
//
// Возвращает (false, причина) если сделку нужно отклонить,
// (true, предупреждение) если исполнять можно.
func (rm *RiskManager) ValidateRiskParameters(signal *models.EntrySignal, balance float64) (bool, string) {
	if signal.Leverage > rm.maxLeverage {
		return false, fmt.Sprintf("Leverage %dx exceeds maximum allowed (%dx)", signal.Leverage, rm.maxLeverage)
	}

	// Отсутствие стопа - повышенный риск, но не отказ
	if !signal.HasStopLoss() {
		return true, "Warning: No stop loss provided. Trade executed with default protection."
	}

	// Потенциальный убыток в процентах от маржи при срабатывании стопа
	priceMovePct := math.Abs(signal.EntryPrice-signal.StopLoss) / signal.EntryPrice * 100.0
	potentialLossPct := priceMovePct * float64(signal.Leverage)

	if potentialLossPct > rejectLossPct {
		return false, fmt.Sprintf("Potential loss of %.2f%% is too high", potentialLossPct)
	}

	if potentialLossPct > warnLossPct {
		return true, fmt.Sprintf("Warning: High risk trade with potential %.2f%% loss", potentialLossPct)
	}

	return true, "Risk parameters acceptable"
}
