package symbols

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"signaltrader/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Mapping - одна запись маппинга символов
//
// Канал может называть инструмент иначе, чем биржа (например PEPEUSDT
// в алерте против 1000PEPEUSDT на Bybit). Ratio переводит цены алерта
// в цены торгуемого инструмента.
type Mapping struct {
	Symbol string  `json:"symbol"` // торгуемый символ на бирже
	Ratio  float64 `json:"ratio"`  // множитель цены, > 0
}

// Mapper - статический справочник соответствий символов
//
// Загружается один раз при старте из JSON файла и после этого не
// мутирует, поэтому безопасен для конкурентного чтения без блокировок.
//
// Формат файла:
//
//	{
//	  "PEPEUSDT": {"symbol": "1000PEPEUSDT", "ratio": 1000}
//	}
type Mapper struct {
	mappings map[string]Mapping
	log      *zap.Logger
}

// NewMapper загружает маппинг из файла
//
// Отсутствующий файл не ошибка: бот работает с пустым справочником
// (все символы торгуются как есть). Битый JSON или некорректная
// запись - ошибка конфигурации, останавливаем старт.
func NewMapper(path string, log *zap.Logger) (*Mapper, error) {
	m := &Mapper{
		mappings: make(map[string]Mapping),
		log:      log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("symbol mapping file not found, using identity mapping",
				zap.String("path", path))
			return m, nil
		}
		return nil, fmt.Errorf("failed to read symbol mappings %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &m.mappings); err != nil {
		return nil, fmt.Errorf("failed to parse symbol mappings %s: %w", path, err)
	}

	for source, mapping := range m.mappings {
		if err := utils.ValidateSymbol(source); err != nil {
			return nil, fmt.Errorf("invalid mapping source: %w", err)
		}
		if err := utils.ValidateSymbol(mapping.Symbol); err != nil {
			return nil, fmt.Errorf("invalid mapping target for %s: %w", source, err)
		}
		if mapping.Ratio <= 0 {
			return nil, fmt.Errorf("invalid ratio %v for %s: must be > 0", mapping.Ratio, source)
		}
	}

	log.Info("symbol mappings loaded",
		zap.String("path", path),
		zap.Int("count", len(m.mappings)))

	return m, nil
}

// MappedSymbol возвращает торгуемый символ и ценовой коэффициент
//
// Отсутствие записи означает тождественный маппинг: возвращается
// ("", 1.0), вызывающий код торгует исходным символом.
func (m *Mapper) MappedSymbol(symbol string) (string, float64) {
	mapping, ok := m.mappings[symbol]
	if !ok {
		return "", 1.0
	}
	return mapping.Symbol, mapping.Ratio
}

// Len возвращает количество загруженных маппингов
func (m *Mapper) Len() int {
	return len(m.mappings)
}
