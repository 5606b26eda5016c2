package utils

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// TestRoundToLotSize проверяет округление вниз до шага биржи
func TestRoundToLotSize(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		lotSize float64
		want    float64
	}{
		{"round down fractional", 0.123456, 0.001, 0.123},
		{"round down near boundary", 1.999, 0.01, 1.99},
		{"whole lot size", 100.5, 1.0, 100.0},
		{"exact multiple unchanged", 0.5, 0.1, 0.5},
		{"zero lot size passthrough", 0.123456, 0, 0.123456},
		{"negative lot size passthrough", 0.123456, -1, 0.123456},
		{"value below lot size", 0.0004, 0.001, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToLotSize(tt.value, tt.lotSize)
			if !almostEqual(got, tt.want) {
				t.Errorf("RoundToLotSize(%v, %v) = %v, want %v", tt.value, tt.lotSize, got, tt.want)
			}
		})
	}
}

// TestRoundToLotSizeUp проверяет округление вверх до минимального объёма
func TestRoundToLotSizeUp(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		lotSize float64
		want    float64
	}{
		{"round up fractional", 0.1231, 0.001, 0.124},
		{"value below lot size", 0.0004, 0.001, 0.001},
		{"exact multiple unchanged", 0.5, 0.1, 0.5},
		{"zero lot size passthrough", 0.123, 0, 0.123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToLotSizeUp(tt.value, tt.lotSize)
			if !almostEqual(got, tt.want) {
				t.Errorf("RoundToLotSizeUp(%v, %v) = %v, want %v", tt.value, tt.lotSize, got, tt.want)
			}
		})
	}
}

// TestPrecisionFromStep проверяет вывод числа знаков из шага объёма
func TestPrecisionFromStep(t *testing.T) {
	tests := []struct {
		step float64
		want int
	}{
		{0.001, 3},
		{0.01, 2},
		{0.1, 1},
		{1.0, 0},
		{10.0, 0}, // отрицательная точность обрезается до 0
		{0, 0},
		{-0.5, 0},
	}

	for _, tt := range tests {
		got := PrecisionFromStep(tt.step)
		if got != tt.want {
			t.Errorf("PrecisionFromStep(%v) = %d, want %d", tt.step, got, tt.want)
		}
	}
}

// TestRoundToPrecision проверяет округление до числа знаков
func TestRoundToPrecision(t *testing.T) {
	tests := []struct {
		value     float64
		precision int
		want      float64
	}{
		{0.123456, 3, 0.123},
		{0.1235, 3, 0.124},
		{123.456, 0, 123},
		{0.123456, -1, 0.123456},
	}

	for _, tt := range tests {
		got := RoundToPrecision(tt.value, tt.precision)
		if !almostEqual(got, tt.want) {
			t.Errorf("RoundToPrecision(%v, %d) = %v, want %v", tt.value, tt.precision, got, tt.want)
		}
	}
}

// TestCalculatePNL проверяет расчёт PNL для обеих сторон
func TestCalculatePNL(t *testing.T) {
	tests := []struct {
		name     string
		side     string
		entry    float64
		current  float64
		quantity float64
		want     float64
	}{
		{"long profit", "LONG", 100, 110, 2, 20},
		{"long loss", "LONG", 100, 95, 2, -10},
		{"short profit", "SHORT", 100, 90, 3, 30},
		{"short loss", "SHORT", 100, 105, 3, -15},
		{"unknown side", "BOTH", 100, 110, 2, 0},
		{"zero quantity", "LONG", 100, 110, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePNL(tt.side, tt.entry, tt.current, tt.quantity)
			if !almostEqual(got, tt.want) {
				t.Errorf("CalculatePNL(%s, %v, %v, %v) = %v, want %v",
					tt.side, tt.entry, tt.current, tt.quantity, got, tt.want)
			}
		})
	}
}
