package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах

// ============ Метрики сигналов ============

// SignalsParsed - количество распознанных сигналов по типам
var SignalsParsed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signaltrader",
		Subsystem: "signals",
		Name:      "parsed_total",
		Help:      "Total number of parsed signals",
	},
	[]string{"type"}, // entry, profit_update, none
)

// SignalsRejected - сигналы, отклонённые риск-менеджером
var SignalsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signaltrader",
		Subsystem: "signals",
		Name:      "rejected_total",
		Help:      "Signals rejected by risk validation",
	},
	[]string{"reason"}, // leverage, loss_pct
)

// ============ Метрики сделок ============

// TradesTotal - общее количество сделок
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signaltrader",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of trades",
	},
	[]string{"symbol", "result"}, // result: success, failed, rollback
)

// StopLossAdjustments - подтяжки стоп-лосса
var StopLossAdjustments = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signaltrader",
		Subsystem: "trading",
		Name:      "stop_loss_adjustments_total",
		Help:      "Number of stop loss trail adjustments",
	},
	[]string{"symbol"},
)

// OrderExecutionLatency - время исполнения ордера на бирже
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "signaltrader",
		Subsystem: "trading",
		Name:      "order_execution_latency_ms",
		Help:      "Time to execute order on exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"operation"}, // entry, take_profit, stop, close
)

// ============ Метрики состояния ============

// ActivePositions - текущее количество отслеживаемых позиций
var ActivePositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "signaltrader",
		Subsystem: "trading",
		Name:      "active_positions",
		Help:      "Current number of tracked positions",
	},
)

// ExchangeConnection - статус подключения к бирже
var ExchangeConnection = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "signaltrader",
		Subsystem: "exchange",
		Name:      "connection_status",
		Help:      "Exchange connection status (1=connected, 0=disconnected)",
	},
)

// AccountBalance - баланс фьючерсного аккаунта
var AccountBalance = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "signaltrader",
		Subsystem: "exchange",
		Name:      "balance_usdt",
		Help:      "Futures account balance in USDT",
	},
)

// ReconciliationDrops - позиции, убранные из трекинга при сверке
var ReconciliationDrops = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signaltrader",
		Subsystem: "trading",
		Name:      "reconciliation_drops_total",
		Help:      "Tracked positions dropped because exchange shows no match",
	},
	[]string{"symbol"},
)

// LiquidationsDetected - обнаруженные ликвидации
var LiquidationsDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signaltrader",
		Subsystem: "risk",
		Name:      "liquidations_detected_total",
		Help:      "Number of liquidations detected",
	},
	[]string{"symbol"},
)

// ============ Вспомогательные функции ============

// RecordSignal записывает распознанный сигнал
func RecordSignal(signalType string) {
	SignalsParsed.WithLabelValues(signalType).Inc()
}

// RecordTrade записывает результат сделки
func RecordTrade(symbol, result string) {
	TradesTotal.WithLabelValues(symbol, result).Inc()
}

// RecordStopLossAdjustment записывает подтяжку стопа
func RecordStopLossAdjustment(symbol string) {
	StopLossAdjustments.WithLabelValues(symbol).Inc()
}

// UpdateActivePositions обновляет счётчик отслеживаемых позиций
func UpdateActivePositions(count int) {
	ActivePositions.Set(float64(count))
}

// UpdateExchangeStatus обновляет статус биржи и баланс
func UpdateExchangeStatus(connected bool, balance float64) {
	if connected {
		ExchangeConnection.Set(1)
	} else {
		ExchangeConnection.Set(0)
	}
	AccountBalance.Set(balance)
}
