package models

import "time"

// Notification представляет уведомление о торговом событии
type Notification struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`     // OPEN, CLOSE, SL_ADJUST, REJECTED, ERROR
	Severity  string    `json:"severity"` // info, warn, error
	Symbol    string    `json:"symbol,omitempty"`
	Message   string    `json:"message"`
}

// Типы уведомлений
const (
	NotificationTypeOpen     = "OPEN"      // позиция открыта
	NotificationTypeClose    = "CLOSE"     // позиция закрыта
	NotificationTypeSLAdjust = "SL_ADJUST" // стоп-лосс подтянут
	NotificationTypeRejected = "REJECTED"  // сигнал отклонён риск-менеджером
	NotificationTypeError    = "ERROR"     // ошибка исполнения
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
