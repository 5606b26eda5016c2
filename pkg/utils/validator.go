package utils

import (
	"fmt"
	"regexp"
)

// validator.go - валидация данных
//
// Функции:
// - ValidateSymbol: проверка формата биржевого символа (BTCUSDT)
// - ValidatePair: проверка формата пары с разделителем (BTC/USDT)
//
// Возвращают error с описанием проблемы или nil

var (
	symbolRe = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)
	pairRe   = regexp.MustCompile(`^[A-Z0-9]{1,15}/[A-Z0-9]{1,10}$`)
)

// ValidateSymbol проверяет формат биржевого символа (BTCUSDT)
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if !symbolRe.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %q", symbol)
	}
	return nil
}

// ValidatePair проверяет формат пары с разделителем (BTC/USDT)
func ValidatePair(pair string) error {
	if pair == "" {
		return fmt.Errorf("pair is empty")
	}
	if !pairRe.MatchString(pair) {
		return fmt.Errorf("invalid pair format: %q", pair)
	}
	return nil
}
