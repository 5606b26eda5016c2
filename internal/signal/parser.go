package signal

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"signaltrader/internal/models"
)

// Parser - распознаватель торговых сигналов из свободного текста
//
// Текст приходит из телеграм-канала и пишется людьми: форматирование,
// эмодзи и пропуски полей - норма. Парсер работает по принципу
// best-effort: упорядоченный список грамматик-кандидатов, каждая -
// чистая функция текст → вариант сигнала или ничего. Грамматики
// пробуются в фиксированном порядке приоритета, ни один под-шаг не
// роняет парсер наружу.
//
// Приоритет отдаётся отсутствию ложных срабатываний: неоднозначное или
// битое сообщение даёт "нет сигнала", а не неверный сигнал.
type Parser struct {
	log      *zap.Logger
	grammars []grammar
}

// grammar - одна грамматика-кандидат
//
// Принимает уже очищенные непустые строки и исходный текст, возвращает
// (сигнал, true) при полном совпадении. Любое недостающее поле - это
// "не совпало", никогда не ошибка.
type grammar func(lines []string, raw string) (models.Signal, bool)

// NewParser создаёт парсер сигналов
func NewParser(log *zap.Logger) *Parser {
	p := &Parser{log: log}
	// Грамматика профит-сообщения более узкая, поэтому идёт первой:
	// иначе часть профит-сообщений распозналась бы как вход
	p.grammars = []grammar{
		parseProfitUpdate,
		parseEntry,
	}
	return p
}

// Parse разбирает сообщение в типизированный сигнал
//
// Возвращает (nil, false) для любого текста, не совпавшего ни с одной
// грамматикой. Частично заполненный сигнал не возвращается никогда.
func (p *Parser) Parse(raw string) (models.Signal, bool) {
	lines := splitLines(cleanText(raw))
	if len(lines) == 0 {
		return nil, false
	}

	for _, g := range p.grammars {
		if sig, ok := g(lines, raw); ok {
			p.log.Debug("signal parsed",
				zap.String("symbol", sig.Pair()),
				zap.String("type", signalType(sig)))
			return sig, true
		}
	}

	p.log.Debug("message is not a signal", zap.Int("lines", len(lines)))
	return nil, false
}

func signalType(s models.Signal) string {
	if _, ok := s.(*models.ProfitUpdateSignal); ok {
		return "profit_update"
	}
	return "entry"
}

// ============================================================
// Препроцессинг
// ============================================================

var reDecoration = regexp.MustCompile(`\*+|__|\||~~`)

// cleanText убирает маркеры форматирования (жирный текст, спойлеры)
func cleanText(text string) string {
	return reDecoration.ReplaceAllString(text, "")
}

// splitLines разбивает текст на непустые строки без краевых пробелов
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ============================================================
// Грамматика профит-сообщения
//
// Формат (после первой строки порядок не важен):
//
//	#PLUME/USDT (Short📉, x20)
//	✅ Price - 0.1724
//	🔝 Profit - 60%
// ============================================================

var (
	rePair          = regexp.MustCompile(`([A-Z0-9]+)/([A-Z0-9]+)`)
	reShort         = regexp.MustCompile(`short|📉`)
	reLong          = regexp.MustCompile(`long|📈`)
	reLeverageX     = regexp.MustCompile(`(?i)x\s*(\d+)`)
	reXLeverage     = regexp.MustCompile(`(?i)(\d+)\s*x`)
	rePriceField    = regexp.MustCompile(`(?i)price\s*[-:]\s*(\d+\.?\d*)`)
	reDecimalNumber = regexp.MustCompile(`\d+\.\d+`)
	reProfitField   = regexp.MustCompile(`(?i)profit\s*[-:]\s*(\d+)%?`)
	rePercentNumber = regexp.MustCompile(`(\d+)\s*%`)
)

func parseProfitUpdate(lines []string, raw string) (models.Signal, bool) {
	// Минимум: пара, цена, профит
	if len(lines) < 3 {
		return nil, false
	}

	first := lines[0]

	// Первое совпадение SYMBOL/SYMBOL выигрывает
	m := rePair.FindStringSubmatch(first)
	if m == nil {
		return nil, false
	}
	base, quote := m[1], m[2]

	lowerFirst := strings.ToLower(first)
	var side string
	switch {
	case reShort.MatchString(lowerFirst):
		side = models.SideShort
	case reLong.MatchString(lowerFirst):
		side = models.SideLong
	default:
		return nil, false
	}

	leverage := extractLeverage(first)
	if leverage <= 0 {
		return nil, false
	}

	price, ok := findPrice(lines)
	if !ok {
		return nil, false
	}

	profit, ok := findProfitPercent(lines)
	if !ok {
		return nil, false
	}

	return &models.ProfitUpdateSignal{
		Symbol:              base + "/" + quote,
		TradeSymbol:         base + quote,
		Side:                side,
		Leverage:            leverage,
		EntryPrice:          price,
		ProfitTargetPercent: profit,
		RawText:             raw,
	}, true
}

// extractLeverage ищет плечо в форме x20 либо 20x
func extractLeverage(line string) int {
	m := reLeverageX.FindStringSubmatch(line)
	if m == nil {
		m = reXLeverage.FindStringSubmatch(line)
	}
	if m == nil {
		return 0
	}
	lev, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return lev
}

// findPrice ищет цену в любой строке: сперва строгий шаблон
// "price - 0.1724", затем первое десятичное число в строке со словом price
func findPrice(lines []string) (float64, bool) {
	for _, line := range lines {
		if m := rePriceField.FindStringSubmatch(line); m != nil {
			price, err := strconv.ParseFloat(m[1], 64)
			if err == nil && price > 0 {
				return price, true
			}
		}
		if strings.Contains(strings.ToLower(line), "price") {
			if m := reDecimalNumber.FindString(line); m != "" {
				price, err := strconv.ParseFloat(m, 64)
				if err == nil && price > 0 {
					return price, true
				}
			}
		}
	}
	return 0, false
}

// findProfitPercent ищет целевой процент аналогично findPrice
func findProfitPercent(lines []string) (int, bool) {
	for _, line := range lines {
		if m := reProfitField.FindStringSubmatch(line); m != nil {
			if pct, err := strconv.Atoi(m[1]); err == nil && pct > 0 && pct <= 100 {
				return pct, true
			}
		}
		if strings.Contains(strings.ToLower(line), "profit") {
			if m := rePercentNumber.FindStringSubmatch(line); m != nil {
				if pct, err := strconv.Atoi(m[1]); err == nil && pct > 0 && pct <= 100 {
					return pct, true
				}
			}
		}
	}
	return 0, false
}

// ============================================================
// Грамматика входного сигнала
//
// Формат позиционный и хрупкий - ровно такой, какой шлёт канал:
//
//	BTC/USDT Long x10
//	Entry - 50000
//	SL - 49000
//	TP1 - 51000 (50%)
//	TP2 - 52000 (50%)
// ============================================================

func parseEntry(lines []string, raw string) (models.Signal, bool) {
	first := lines[0]

	symbol, tradeSymbol, ok := extractPairToken(first)
	if !ok {
		return nil, false
	}

	// Литералы с учётом регистра: так пишет канал
	var side string
	switch {
	case strings.Contains(first, "Long"):
		side = models.SideLong
	case strings.Contains(first, "Short"):
		side = models.SideShort
	default:
		return nil, false
	}

	leverage := entryLeverage(first)
	if leverage <= 0 {
		return nil, false
	}

	if len(lines) < 2 {
		return nil, false
	}
	entryPrice, ok := priceAfterDash(lines[1])
	if !ok || entryPrice <= 0 {
		return nil, false
	}

	stopLoss := findStopLoss(lines)

	// Уровни тейк-профита ожидаются строго на строках 3..6
	var tps []models.TakeProfitLevel
	for i := 3; i < 7 && i < len(lines); i++ {
		if tp, ok := parseTakeProfitLine(lines[i]); ok {
			tps = append(tps, tp)
		}
	}
	if len(tps) == 0 {
		return nil, false
	}

	return &models.EntrySignal{
		Symbol:      symbol,
		TradeSymbol: tradeSymbol,
		Side:        side,
		Leverage:    leverage,
		EntryPrice:  entryPrice,
		StopLoss:    stopLoss,
		TakeProfits: tps,
		RawText:     raw,
	}, true
}

var reUpperRuns = regexp.MustCompile(`[A-Z0-9]+`)

// extractPairToken берёт первое слово первой строки, содержащее '/',
// и оставляет в каждой половине только заглавные буквы и цифры
func extractPairToken(first string) (symbol, tradeSymbol string, ok bool) {
	var token string
	for _, word := range strings.Fields(first) {
		if strings.Contains(word, "/") {
			token = word
			break
		}
	}
	if token == "" {
		return "", "", false
	}

	parts := strings.SplitN(token, "/", 2)
	base := strings.Join(reUpperRuns.FindAllString(parts[0], -1), "")
	quote := strings.Join(reUpperRuns.FindAllString(parts[1], -1), "")
	if base == "" || quote == "" {
		return "", "", false
	}
	return base + "/" + quote, base + quote, true
}

// entryLeverage берёт первый токен с 'x' и вытаскивает из него цифры
func entryLeverage(first string) int {
	for _, word := range strings.Fields(first) {
		if !strings.ContainsAny(word, "xX") {
			continue
		}
		digits := keepDigits(word)
		if digits == "" {
			continue
		}
		lev, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		return lev
	}
	return 0
}

// priceAfterDash режет строку по '-' и парсит цифры/точку второго сегмента
func priceAfterDash(line string) (float64, bool) {
	parts := strings.Split(line, "-")
	if len(parts) < 2 {
		return 0, false
	}
	price, err := strconv.ParseFloat(keepNumberChars(parts[1]), 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// findStopLoss ищет первую строку со стоп-лоссом; 0 = стоп не указан
func findStopLoss(lines []string) float64 {
	for _, line := range lines {
		if !strings.Contains(line, "SL") &&
			!strings.Contains(line, "Stop Loss") &&
			!strings.Contains(line, "Stop-Loss") {
			continue
		}
		if sl, ok := priceAfterDash(line); ok && sl > 0 {
			return sl
		}
	}
	return 0
}

// parseTakeProfitLine разбирает строку вида "TP1 - 51000 (50%)"
//
// Цена - все цифры и точки дефисного сегмента перед группой процентов,
// склеенные подряд (не только первая последовательность); процент -
// целое внутри (...%). Непригодная строка пропускается, не фатальна.
func parseTakeProfitLine(line string) (models.TakeProfitLevel, bool) {
	open := strings.Index(line, "(")
	if open < 0 {
		return models.TakeProfitLevel{}, false
	}

	pctPart := line[open+1:]
	pctEnd := strings.Index(pctPart, "%")
	if pctEnd < 0 {
		return models.TakeProfitLevel{}, false
	}
	pct, err := strconv.Atoi(keepDigits(pctPart[:pctEnd]))
	if err != nil || pct <= 0 || pct > 100 {
		return models.TakeProfitLevel{}, false
	}

	pricePart := line[:open]
	if idx := strings.Index(pricePart, "-"); idx >= 0 {
		pricePart = pricePart[idx+1:]
	}
	price, err := strconv.ParseFloat(keepNumberChars(pricePart), 64)
	if err != nil || price <= 0 {
		return models.TakeProfitLevel{}, false
	}

	return models.TakeProfitLevel{Price: price, Percent: pct}, true
}

// keepDigits оставляет только цифры
func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// keepNumberChars оставляет цифры и точки
func keepNumberChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
