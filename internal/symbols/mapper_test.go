package symbols

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeMappingFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbol_mappings.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write mapping file: %v", err)
	}
	return path
}

// TestNewMapper_LoadsMappings проверяет загрузку справочника из файла
func TestNewMapper_LoadsMappings(t *testing.T) {
	path := writeMappingFile(t, `{
		"PEPEUSDT": {"symbol": "1000PEPEUSDT", "ratio": 1000},
		"SHIBUSDT": {"symbol": "1000SHIBUSDT", "ratio": 1000}
	}`)

	m, err := NewMapper(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}

	mapped, ratio := m.MappedSymbol("PEPEUSDT")
	if mapped != "1000PEPEUSDT" || ratio != 1000 {
		t.Errorf("MappedSymbol(PEPEUSDT) = (%q, %v), want (1000PEPEUSDT, 1000)", mapped, ratio)
	}
}

// TestMappedSymbol_IdentityForUnknown: нет записи = тождественный маппинг
func TestMappedSymbol_IdentityForUnknown(t *testing.T) {
	path := writeMappingFile(t, `{}`)

	m, err := NewMapper(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}

	mapped, ratio := m.MappedSymbol("BTCUSDT")
	if mapped != "" || ratio != 1.0 {
		t.Errorf("MappedSymbol(BTCUSDT) = (%q, %v), want (\"\", 1.0)", mapped, ratio)
	}
}

// TestNewMapper_MissingFile: отсутствующий файл даёт пустой справочник
func TestNewMapper_MissingFile(t *testing.T) {
	m, err := NewMapper(filepath.Join(t.TempDir(), "nope.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewMapper() error = %v, want nil for missing file", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

// TestNewMapper_InvalidData: битый JSON и некорректные записи - ошибка старта
func TestNewMapper_InvalidData(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{not json`},
		{"zero ratio", `{"PEPEUSDT": {"symbol": "1000PEPEUSDT", "ratio": 0}}`},
		{"negative ratio", `{"PEPEUSDT": {"symbol": "1000PEPEUSDT", "ratio": -5}}`},
		{"lowercase target", `{"PEPEUSDT": {"symbol": "pepeusdt", "ratio": 1}}`},
		{"empty target", `{"PEPEUSDT": {"symbol": "", "ratio": 1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeMappingFile(t, tt.content)
			if _, err := NewMapper(path, zap.NewNop()); err == nil {
				t.Error("NewMapper() error = nil, want error")
			}
		})
	}
}
