package utils

import "testing"

// TestValidateSymbol проверяет валидацию биржевых символов
func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		symbol  string
		wantErr bool
	}{
		{"BTCUSDT", false},
		{"1000PEPEUSDT", false},
		{"", true},
		{"btcusdt", true},
		{"BTC/USDT", true},
		{"BTC USDT", true},
	}

	for _, tt := range tests {
		err := ValidateSymbol(tt.symbol)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSymbol(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
		}
	}
}

// TestValidatePair проверяет валидацию пар с разделителем
func TestValidatePair(t *testing.T) {
	tests := []struct {
		pair    string
		wantErr bool
	}{
		{"BTC/USDT", false},
		{"PLUME/USDT", false},
		{"", true},
		{"BTCUSDT", true},
		{"btc/usdt", true},
	}

	for _, tt := range tests {
		err := ValidatePair(tt.pair)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePair(%q) error = %v, wantErr %v", tt.pair, err, tt.wantErr)
		}
	}
}
