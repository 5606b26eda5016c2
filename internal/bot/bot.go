package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"signaltrader/internal/config"
	"signaltrader/internal/models"
	"signaltrader/internal/signal"
	"signaltrader/internal/symbols"
)

// Transport - канал ретрансляции сообщений (реализуется internal/telegram)
type Transport interface {
	// Send отправляет текст в целевой канал
	Send(ctx context.Context, text string) error
}

// Bot - оркестратор: связывает парсер, риск-движок и транспорт
//
// Входящие алерты обрабатываются строго последовательно в порядке
// прихода (транспорт вызывает HandleMessage из одной горутины).
// Движок позиций при этом может конкурентно дёргать фоновая сверка -
// по другим символам операции идут параллельно.
type Bot struct {
	parser    *signal.Parser
	formatter *signal.Formatter
	mapper    *symbols.Mapper
	engine    *PositionEngine
	transport Transport
	log       *zap.Logger

	notify       config.Notify
	orderTimeout time.Duration

	// Уведомления движка и сверки; ретранслируются согласно Notify
	notifications chan *models.Notification
}

// NewBot создаёт оркестратор
func NewBot(
	parser *signal.Parser,
	formatter *signal.Formatter,
	mapper *symbols.Mapper,
	engine *PositionEngine,
	transport Transport,
	cfg *config.Config,
	log *zap.Logger,
) *Bot {
	b := &Bot{
		parser:        parser,
		formatter:     formatter,
		mapper:        mapper,
		engine:        engine,
		transport:     transport,
		log:           log,
		notify:        cfg.Notify,
		orderTimeout:  cfg.Trading.OrderTimeout,
		notifications: make(chan *models.Notification, 100),
	}
	engine.SetNotificationChannel(b.notifications)
	return b
}

// NotificationChannel возвращает канал для уведомлений других компонентов
func (b *Bot) NotificationChannel() chan<- *models.Notification {
	return b.notifications
}

// Run ретранслирует уведомления до отмены контекста
func (b *Bot) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-b.notifications:
			b.relayNotification(ctx, notif)
		}
	}
}

// HandleMessage обрабатывает одно сообщение из исходного канала
//
// Profit-обновления обрабатываются независимо от того, является ли
// сообщение ответом; новые входы - только для не-ответов (ответы в
// исходном канале дублируют уже обработанные сигналы).
func (b *Bot) HandleMessage(ctx context.Context, text string, isReply bool) {
	sig, ok := b.parser.Parse(text)
	if !ok {
		RecordSignal("none")
		b.log.Debug("message is not a signal", zap.Bool("is_reply", isReply))
		return
	}

	formatted := b.formatter.Format(sig)

	switch s := sig.(type) {
	case *models.ProfitUpdateSignal:
		RecordSignal("profit_update")
		b.log.Info("processing profit update",
			zap.String("symbol", s.TradeSymbol),
			zap.Int("profit_target", s.ProfitTargetPercent),
			zap.Bool("is_reply", isReply))
		b.handleProfitUpdate(ctx, s, formatted)

	case *models.EntrySignal:
		if isReply {
			b.log.Info("skipping entry signal in reply message", zap.String("symbol", s.TradeSymbol))
			return
		}
		RecordSignal("entry")
		b.log.Info("processing entry signal",
			zap.String("symbol", s.TradeSymbol),
			zap.String("side", s.Side),
			zap.Int("leverage", s.Leverage))
		b.handleEntry(ctx, s, formatted)
	}
}

// handleEntry исполняет входной сигнал и ретранслирует его
func (b *Bot) handleEntry(ctx context.Context, sig *models.EntrySignal, formatted string) {
	// Пайплайн входа: баланс, плечо, метаданные, вход, стоп, TP -
	// до шести сетевых операций
	opCtx, cancel := context.WithTimeout(ctx, 6*b.orderTimeout)
	result := b.engine.ExecuteSignal(opCtx, sig)
	cancel()

	if !result.Success {
		b.log.Warn("trade execution failed",
			zap.String("symbol", sig.TradeSymbol),
			zap.String("reason", result.Message))
		return
	}

	// Ретрансляция подавлена когда включены entry-уведомления:
	// подтверждение открытия придёт через канал уведомлений
	if formatted == "" {
		return
	}
	if err := b.transport.Send(ctx, formatted); err != nil {
		b.log.Error("failed to relay entry signal", zap.Error(err))
	}
}

// handleProfitUpdate закрывает позицию или подтягивает стоп
func (b *Bot) handleProfitUpdate(ctx context.Context, sig *models.ProfitUpdateSignal, formatted string) {
	symbol := sig.TradeSymbol

	// Символ мог сменить тикер на бирже: применяем маппинг и
	// пересчитываем цену входа по курсу конвертации
	if mapped, ratio := b.mapper.MappedSymbol(symbol); mapped != "" {
		b.log.Info("using mapped symbol",
			zap.String("from", symbol),
			zap.String("to", mapped),
			zap.Float64("ratio", ratio))
		formatted = strings.ReplaceAll(formatted, "#"+symbol, "#"+mapped)
		sig.EntryPrice *= ratio
		symbol = mapped
	}

	opCtx, cancel := context.WithTimeout(ctx, b.orderTimeout)
	defer cancel()

	switch {
	case sig.ProfitTargetPercent == 100:
		// Полный выход
		result := b.engine.ClosePosition(opCtx, symbol)
		if result.Success {
			formatted += "\n\n✅ Position closed at 100% profit target"
		} else {
			b.log.Warn("failed to close position on profit target",
				zap.String("symbol", symbol),
				zap.String("reason", result.Message))
		}

	case sig.ProfitTargetPercent > 0:
		result := b.engine.AdjustStopLossForProfitTarget(opCtx, symbol, sig.ProfitTargetPercent)
		if result.Success {
			formatted += fmt.Sprintf("\n\n✅ Stop Loss adjusted from %.2f%% to %.2f%% to lock in profits",
				result.OriginalSLPercent, result.NewSLPercent)
		} else {
			b.log.Warn("failed to adjust stop loss",
				zap.String("symbol", symbol),
				zap.String("reason", result.Message))
		}
	}

	if !b.notify.ProfitNotifications || formatted == "" {
		return
	}
	if err := b.transport.Send(ctx, formatted); err != nil {
		b.log.Error("failed to relay profit update", zap.Error(err))
	}
}

// relayNotification ретранслирует уведомление согласно настройкам Notify
func (b *Bot) relayNotification(ctx context.Context, notif *models.Notification) {
	var send bool
	switch notif.Type {
	case models.NotificationTypeOpen:
		send = b.notify.EntryNotifications
	case models.NotificationTypeError, models.NotificationTypeRejected:
		send = b.notify.FailureNotifications
	default:
		// CLOSE и SL_ADJUST уже попадают в ретранслируемое
		// profit-сообщение, дублировать не нужно
	}
	if !send {
		return
	}

	prefix := "ℹ️"
	switch notif.Severity {
	case models.SeverityWarn:
		prefix = "⚠️"
	case models.SeverityError:
		prefix = "❌"
	}

	if err := b.transport.Send(ctx, prefix+" "+notif.Message); err != nil {
		b.log.Error("failed to relay notification", zap.Error(err))
	}
}
