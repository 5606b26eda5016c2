package bot

import (
	"testing"

	"signaltrader/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"открытие завершилось", models.StateOpening, models.StateOpen, true},
		{"откат входа", models.StateOpening, models.StateClosed, true},
		{"открытие сразу в закрытие", models.StateOpening, models.StateClosing, false},
		{"подтяжка стопа", models.StateOpen, models.StateOpen, true},
		{"начало закрытия", models.StateOpen, models.StateClosing, true},
		{"внешнее закрытие", models.StateOpen, models.StateClosed, true},
		{"открытая назад в открытие", models.StateOpen, models.StateOpening, false},
		{"закрытие завершилось", models.StateClosing, models.StateClosed, true},
		{"закрытие назад в открытую", models.StateClosing, models.StateOpen, false},
		{"из терминального состояния", models.StateClosed, models.StateOpening, false},
		{"неизвестное состояние", "UNKNOWN", models.StateOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsLive(t *testing.T) {
	if IsLive(models.StateOpening) {
		t.Error("OPENING не должна считаться живой позицией")
	}
	if !IsLive(models.StateOpen) {
		t.Error("OPEN должна считаться живой позицией")
	}
	if !IsLive(models.StateClosing) {
		t.Error("CLOSING должна считаться живой позицией")
	}
	if IsLive(models.StateClosed) {
		t.Error("CLOSED не должна считаться живой позицией")
	}
}

func TestIsMutating(t *testing.T) {
	if !IsMutating(models.StateOpening) {
		t.Error("OPENING - операция изменения")
	}
	if IsMutating(models.StateOpen) {
		t.Error("OPEN - стабильное состояние")
	}
	if !IsMutating(models.StateClosing) {
		t.Error("CLOSING - операция изменения")
	}
}
