package bot

import "signaltrader/internal/models"

// ValidTransitions определяет допустимые переходы между состояниями позиции
var ValidTransitions = map[string][]string{
	models.StateOpening: {models.StateOpen, models.StateClosed}, // Closed при откате входа
	models.StateOpen:    {models.StateOpen, models.StateClosing, models.StateClosed}, // Open при подтяжке стопа; Closed при внешнем закрытии
	models.StateClosing: {models.StateClosed},
	models.StateClosed:  {}, // терминальное, запись удаляется
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния
func StateInfo(s string) string {
	switch s {
	case models.StateOpening:
		return "Открытие позиции..."
	case models.StateOpen:
		return "Позиция открыта"
	case models.StateClosing:
		return "Закрытие позиции..."
	case models.StateClosed:
		return "Позиция закрыта"
	default:
		return "Неизвестное состояние"
	}
}

// IsLive возвращает true если по символу есть живая позиция на бирже
func IsLive(s string) bool {
	return s == models.StateOpen || s == models.StateClosing
}

// IsMutating возвращает true если по символу идёт операция изменения
func IsMutating(s string) bool {
	return s == models.StateOpening || s == models.StateClosing
}
