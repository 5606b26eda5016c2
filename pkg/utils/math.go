package utils

import (
	"math"
)

// math.go - математические утилиты для расчёта размера позиции
//
// Назначение:
// Вспомогательные математические функции для торговых операций.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RoundToLotSize: округление до lot size биржи
// - PrecisionFromStep: число знаков после запятой из шага объёма
// - RoundToPrecision: округление до заданного числа знаков
// - CalculatePNL: прибыль/убыток по позиции

// RoundToLotSize округляет значение ВНИЗ до ближайшего кратного lotSize.
//
// Используется для округления объёма ордера до минимального шага биржи.
// Округление вниз гарантирует, что мы не превысим доступные средства.
//
// Параметры:
//   - value: исходное значение (объём в монетах актива)
//   - lotSize: минимальный шаг изменения объёма на бирже
//
// Возвращает:
//   - Округлённое значение, кратное lotSize
//   - Если lotSize <= 0, возвращает исходное значение
//
// Примеры:
//   - RoundToLotSize(0.123456, 0.001) = 0.123
//   - RoundToLotSize(1.999, 0.01) = 1.99
//   - RoundToLotSize(100.5, 1.0) = 100.0
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	// Используем math.Floor для округления вниз
	// Это безопаснее для торговли - не превысим доступные средства
	return math.Floor(value/lotSize) * lotSize
}

// RoundToLotSizeUp округляет значение ВВЕРХ до ближайшего кратного lotSize.
//
// Используется когда нужно гарантировать минимальный объём (например, для minQty).
func RoundToLotSizeUp(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Ceil(value/lotSize) * lotSize
}

// PrecisionFromStep выводит число знаков после запятой из шага объёма.
//
// Биржа отдаёт шаг как число (0.001), а округление размера позиции
// удобнее делать по количеству знаков.
//
// Примеры:
//   - PrecisionFromStep(0.001) = 3
//   - PrecisionFromStep(1.0) = 0
//   - PrecisionFromStep(0) = 0
func PrecisionFromStep(step float64) int {
	if step <= 0 {
		return 0
	}
	p := int(math.Round(-math.Log10(step)))
	if p < 0 {
		return 0
	}
	return p
}

// RoundToPrecision округляет значение до указанного числа знаков после запятой.
//
// Примеры:
//   - RoundToPrecision(0.123456, 3) = 0.123
//   - RoundToPrecision(1.005, 2) = 1.0 или 1.01 (границы float64)
func RoundToPrecision(value float64, precision int) float64 {
	if precision < 0 {
		return value
	}
	factor := math.Pow(10, float64(precision))
	return math.Round(value*factor) / factor
}

// CalculatePNL расчитывает прибыль/убыток по позиции.
//
// Формулы:
//   - LONG PNL = (P_close - P_open) × qty
//   - SHORT PNL = (P_open - P_close) × qty
//
// Параметры:
//   - side: "LONG" или "SHORT"
//   - entryPrice: цена входа
//   - currentPrice: текущая/выходная цена
//   - quantity: объём позиции
//
// Возвращает:
//   - PNL в валюте котировки (обычно USDT)
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}

	switch side {
	case "LONG":
		// Лонг: прибыль если цена выросла
		return (currentPrice - entryPrice) * quantity
	case "SHORT":
		// Шорт: прибыль если цена упала
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}
