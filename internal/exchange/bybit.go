package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"signaltrader/pkg/ratelimit"
	"signaltrader/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	bybitMainnetURL   = "https://api.bybit.com"
	bybitTestnetURL   = "https://api-testnet.bybit.com"
	bybitWSPrivate    = "wss://stream.bybit.com/v5/private"
	bybitWSPrivateTst = "wss://stream-testnet.bybit.com/v5/private"
	bybitRecvWindow   = "5000"

	// Bybit v5: "leverage not modified" - плечо уже установлено
	bybitErrLeverageNotModified = "110043"
)

// Bybit реализует интерфейс Exchange для Bybit v5 (linear perpetuals)
type Bybit struct {
	apiKey    string
	secretKey string

	baseURL   string
	wsURL     string
	testnet   bool
	log       *zap.Logger

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter

	// WebSocket manager с автоматическим переподключением
	wsPrivateManager *WSReconnectManager

	positionCallback func(*Position)
	callbackMu       sync.RWMutex

	connected bool
	closeChan chan struct{}
}

// NewBybit создает новый экземпляр клиента Bybit
// Использует глобальный HTTP клиент с connection pooling и оптимизированными таймаутами
func NewBybit(testnet bool, log *zap.Logger) *Bybit {
	baseURL := bybitMainnetURL
	wsURL := bybitWSPrivate
	if testnet {
		baseURL = bybitTestnetURL
		wsURL = bybitWSPrivateTst
	}

	return &Bybit{
		baseURL:    baseURL,
		wsURL:      wsURL,
		testnet:    testnet,
		log:        log,
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(10, 20),
		closeChan:  make(chan struct{}),
	}
}

// sign создает подпись для запроса к Bybit API v5
func (b *Bybit) sign(timestamp string, params string) string {
	message := timestamp + b.apiKey + bybitRecvWindow + params
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к Bybit API
//
// GET параметры уходят query string'ом, POST - JSON телом. Подписывается
// ровно та строка, которая отправляется. Перед каждым запросом берётся
// токен rate limiter'а.
func (b *Bybit) doRequest(ctx context.Context, method, endpoint string, params map[string]interface{}, signed bool) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody string
	var reqURL string

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, fmt.Sprint(v))
		}
		reqBody = query.Encode()
		if reqBody != "" {
			reqURL = b.baseURL + endpoint + "?" + reqBody
		} else {
			reqURL = b.baseURL + endpoint
		}
	} else {
		reqURL = b.baseURL + endpoint
		if len(params) > 0 {
			jsonBytes, err := json.Marshal(params)
			if err != nil {
				return nil, err
			}
			reqBody = string(jsonBytes)
		}
	}

	var bodyReader io.Reader
	if method != http.MethodGet {
		bodyReader = strings.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature := b.sign(timestamp, reqBody)

		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-SIGN", signature)
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Проверяем базовый ответ
	var baseResp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, err
	}

	if baseResp.RetCode != 0 {
		return nil, &ExchangeError{
			Exchange: "bybit",
			Code:     strconv.Itoa(baseResp.RetCode),
			Message:  baseResp.RetMsg,
		}
	}

	return body, nil
}

// doRequestRetry повторяет идемпотентные чтения при временных сбоях.
// Ордера через этот путь не ходят: повтор мог бы продублировать сделку.
func (b *Bybit) doRequestRetry(ctx context.Context, method, endpoint string, params map[string]interface{}, signed bool) ([]byte, error) {
	cfg := retry.ConservativeConfig()
	cfg.RetryIf = func(err error) bool {
		return retry.RetryIfNotContext(err) && retry.IsRetryable(err)
	}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		b.log.Warn("retrying exchange read",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return retry.DoWithResult(ctx, func() ([]byte, error) {
		return b.doRequest(ctx, method, endpoint, params, signed)
	}, cfg)
}

func (b *Bybit) Connect(ctx context.Context, apiKey, secret string) error {
	b.apiKey = apiKey
	b.secretKey = secret

	// Проверяем ключи через получение баланса
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := b.GetBalance(checkCtx); err != nil {
		return fmt.Errorf("failed to connect to Bybit: %w", err)
	}

	b.connected = true
	b.log.Info("connected to Bybit", zap.Bool("testnet", b.testnet))
	return nil
}

func (b *Bybit) GetName() string {
	return "bybit"
}

func (b *Bybit) GetBalance(ctx context.Context) (float64, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        "USDT",
	}

	body, err := b.doRequestRetry(ctx, http.MethodGet, "/v5/account/wallet-balance", params, true)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Coin []struct {
					Coin   string `json:"coin"`
					Equity string `json:"equity"`
				} `json:"coin"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}

	if len(resp.Result.List) > 0 {
		for _, coin := range resp.Result.List[0].Coin {
			if coin.Coin == "USDT" {
				equity, _ := strconv.ParseFloat(coin.Equity, 64)
				return equity, nil
			}
		}
	}

	return 0, nil
}

func (b *Bybit) GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	params := map[string]interface{}{
		"category": "linear",
		"symbol":   symbol,
	}

	body, err := b.doRequestRetry(ctx, http.MethodGet, "/v5/market/instruments-info", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				LotSizeFilter struct {
					MinOrderQty      string `json:"minOrderQty"`
					MaxOrderQty      string `json:"maxOrderQty"`
					QtyStep          string `json:"qtyStep"`
					MinNotionalValue string `json:"minNotionalValue"`
				} `json:"lotSizeFilter"`
				LeverageFilter struct {
					MaxLeverage string `json:"maxLeverage"`
				} `json:"leverageFilter"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.List) == 0 {
		return nil, &ExchangeError{
			Exchange: "bybit",
			Code:     "instrument_not_found",
			Message:  fmt.Sprintf("instrument info not found for %s", symbol),
		}
	}

	info := resp.Result.List[0]
	minOrderQty, _ := strconv.ParseFloat(info.LotSizeFilter.MinOrderQty, 64)
	maxOrderQty, _ := strconv.ParseFloat(info.LotSizeFilter.MaxOrderQty, 64)
	qtyStep, _ := strconv.ParseFloat(info.LotSizeFilter.QtyStep, 64)
	minNotional, _ := strconv.ParseFloat(info.LotSizeFilter.MinNotionalValue, 64)
	maxLeverage, _ := strconv.ParseFloat(info.LeverageFilter.MaxLeverage, 64)

	if minNotional <= 0 {
		minNotional = 5.0 // дефолт Bybit для linear
	}

	return &SymbolInfo{
		Symbol:      symbol,
		MinOrderQty: minOrderQty,
		MaxOrderQty: maxOrderQty,
		QtyStep:     qtyStep,
		MinNotional: minNotional,
		MaxLeverage: int(maxLeverage),
	}, nil
}

func (b *Bybit) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	params := map[string]interface{}{
		"category":     "linear",
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/set-leverage", params, true)
	if err != nil {
		// Плечо уже установлено - не ошибка
		var exchErr *ExchangeError
		if errors.As(err, &exchErr) && exchErr.Code == bybitErrLeverageNotModified {
			return nil
		}
		return err
	}
	return nil
}

func (b *Bybit) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64, reduceOnly bool) (*Order, error) {
	bybitSide := "Buy"
	if side == SideSell {
		bybitSide = "Sell"
	}

	params := map[string]interface{}{
		"category":    "linear",
		"symbol":      symbol,
		"side":        bybitSide,
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"timeInForce": "IOC",
	}
	if reduceOnly {
		params["reduceOnly"] = true
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			OrderId string `json:"orderId"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	order := &Order{
		ID:         resp.Result.OrderId,
		Symbol:     symbol,
		Side:       side,
		Type:       "market",
		Quantity:   qty,
		ReduceOnly: reduceOnly,
		Status:     OrderStatusFilled,
		CreatedAt:  time.Now(),
	}

	// Подтягиваем фактическое исполнение
	execInfo, err := b.getOrderExecution(ctx, symbol, resp.Result.OrderId)
	if err == nil && execInfo != nil {
		order.FilledQty = execInfo.FilledQty
		order.AvgFillPrice = execInfo.AvgPrice
	} else {
		order.FilledQty = qty
	}

	return order, nil
}

func (b *Bybit) PlaceTakeProfitOrder(ctx context.Context, symbol, side string, qty, price float64) (*Order, error) {
	bybitSide := "Buy"
	if side == SideSell {
		bybitSide = "Sell"
	}

	params := map[string]interface{}{
		"category":    "linear",
		"symbol":      symbol,
		"side":        bybitSide,
		"orderType":   "Limit",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"price":       strconv.FormatFloat(price, 'f', -1, 64),
		"timeInForce": "GTC",
		"reduceOnly":  true,
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			OrderId string `json:"orderId"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &Order{
		ID:         resp.Result.OrderId,
		Symbol:     symbol,
		Side:       side,
		Type:       "limit",
		Quantity:   qty,
		Price:      price,
		ReduceOnly: true,
		Status:     OrderStatusNew,
		CreatedAt:  time.Now(),
	}, nil
}

func (b *Bybit) SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error {
	params := map[string]interface{}{
		"category":    "linear",
		"symbol":      symbol,
		"tpslMode":    "Full",
		"positionIdx": 0,
		"stopLoss":    strconv.FormatFloat(stopLoss, 'f', -1, 64),
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/trading-stop", params, true)
	return err
}

// getOrderExecution получает информацию об исполнении ордера
func (b *Bybit) getOrderExecution(ctx context.Context, symbol, orderId string) (*struct {
	FilledQty float64
	AvgPrice  float64
}, error) {
	params := map[string]interface{}{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderId,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				CumExecQty string `json:"cumExecQty"`
				AvgPrice   string `json:"avgPrice"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.List) == 0 {
		return nil, fmt.Errorf("order not found")
	}

	o := resp.Result.List[0]
	filledQty, _ := strconv.ParseFloat(o.CumExecQty, 64)
	avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)

	return &struct {
		FilledQty float64
		AvgPrice  float64
	}{
		FilledQty: filledQty,
		AvgPrice:  avgPrice,
	}, nil
}

func (b *Bybit) GetOpenPositions(ctx context.Context) ([]*Position, error) {
	params := map[string]interface{}{
		"category":   "linear",
		"settleCoin": "USDT",
	}

	body, err := b.doRequestRetry(ctx, http.MethodGet, "/v5/position/list", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol         string `json:"symbol"`
				Side           string `json:"side"`
				Size           string `json:"size"`
				AvgPrice       string `json:"avgPrice"`
				MarkPrice      string `json:"markPrice"`
				StopLoss       string `json:"stopLoss"`
				Leverage       string `json:"leverage"`
				UnrealisedPnl  string `json:"unrealisedPnl"`
				UpdatedTime    string `json:"updatedTime"`
				PositionStatus string `json:"positionStatus"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	positions := make([]*Position, 0)
	for _, p := range resp.Result.List {
		size, _ := strconv.ParseFloat(p.Size, 64)
		if size == 0 {
			continue
		}

		entryPrice, _ := strconv.ParseFloat(p.AvgPrice, 64)
		markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
		stopLoss, _ := strconv.ParseFloat(p.StopLoss, 64)
		leverage, _ := strconv.ParseFloat(p.Leverage, 64)
		unrealizedPnl, _ := strconv.ParseFloat(p.UnrealisedPnl, 64)
		updatedTime, _ := strconv.ParseInt(p.UpdatedTime, 10, 64)

		side := SideLong
		if p.Side == "Sell" {
			side = SideShort
		}

		positions = append(positions, &Position{
			Symbol:        p.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    entryPrice,
			MarkPrice:     markPrice,
			StopLoss:      stopLoss,
			Leverage:      int(leverage),
			UnrealizedPnl: unrealizedPnl,
			Liquidation:   p.PositionStatus == "Liq",
			UpdatedAt:     time.UnixMilli(updatedTime),
		})
	}

	return positions, nil
}

func (b *Bybit) ClosePosition(ctx context.Context, symbol, side string, qty float64) error {
	_, err := b.PlaceMarketOrder(ctx, symbol, OrderSideForExit(side), qty, true)
	return err
}

func (b *Bybit) SubscribePositions(callback func(*Position)) error {
	b.callbackMu.Lock()
	b.positionCallback = callback
	b.callbackMu.Unlock()

	if b.wsPrivateManager == nil {
		config := DefaultWSReconnectConfig()
		b.wsPrivateManager = NewWSReconnectManager("bybit-private", b.wsURL, config)
		b.wsPrivateManager.SetLogger(b.log)

		b.wsPrivateManager.SetAuthFunc(b.authenticateWebSocket)
		b.wsPrivateManager.SetOnMessage(b.handlePrivateMessage)

		b.wsPrivateManager.SetOnConnect(func() {
			b.log.Info("private WebSocket connected")
		})
		b.wsPrivateManager.SetOnDisconnect(func(err error) {
			if err != nil {
				b.log.Warn("private WebSocket disconnected", zap.Error(err))
			}
		})

		if err := b.wsPrivateManager.Connect(); err != nil {
			return fmt.Errorf("failed to connect to private WebSocket: %w", err)
		}
	}

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"position"},
	}

	// Подписка восстанавливается после переподключения
	b.wsPrivateManager.AddSubscription(subMsg)

	return b.wsPrivateManager.Send(subMsg)
}

func (b *Bybit) authenticateWebSocket(conn *websocket.Conn) error {
	expires := time.Now().UnixMilli() + 10000

	message := fmt.Sprintf("GET/realtime%d", expires)
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(message))
	signature := hex.EncodeToString(h.Sum(nil))

	authMsg := map[string]interface{}{
		"op":   "auth",
		"args": []interface{}{b.apiKey, expires, signature},
	}

	return conn.WriteJSON(authMsg)
}

// handlePrivateMessage обрабатывает одно сообщение из приватного WebSocket
func (b *Bybit) handlePrivateMessage(message []byte) {
	var msg struct {
		Topic string `json:"topic"`
		Data  []struct {
			Symbol         string `json:"symbol"`
			Side           string `json:"side"`
			Size           string `json:"size"`
			EntryPrice     string `json:"entryPrice"`
			MarkPrice      string `json:"markPrice"`
			StopLoss       string `json:"stopLoss"`
			Leverage       string `json:"leverage"`
			UnrealisedPnl  string `json:"unrealisedPnl"`
			PositionStatus string `json:"positionStatus"`
		} `json:"data"`
	}

	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	if msg.Topic != "position" {
		return
	}

	b.callbackMu.RLock()
	callback := b.positionCallback
	b.callbackMu.RUnlock()

	if callback == nil {
		return
	}

	for _, p := range msg.Data {
		size, _ := strconv.ParseFloat(p.Size, 64)
		entryPrice, _ := strconv.ParseFloat(p.EntryPrice, 64)
		markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
		stopLoss, _ := strconv.ParseFloat(p.StopLoss, 64)
		leverage, _ := strconv.ParseFloat(p.Leverage, 64)
		unrealizedPnl, _ := strconv.ParseFloat(p.UnrealisedPnl, 64)

		side := SideLong
		if p.Side == "Sell" {
			side = SideShort
		}

		callback(&Position{
			Symbol:        p.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    entryPrice,
			MarkPrice:     markPrice,
			StopLoss:      stopLoss,
			Leverage:      int(leverage),
			UnrealizedPnl: unrealizedPnl,
			Liquidation:   p.PositionStatus == "Liq",
			UpdatedAt:     time.Now(),
		})
	}
}

func (b *Bybit) Close() error {
	select {
	case <-b.closeChan:
		// Уже закрыт
	default:
		close(b.closeChan)
	}

	if b.wsPrivateManager != nil {
		b.wsPrivateManager.Close()
		b.wsPrivateManager = nil
	}

	b.connected = false
	return nil
}
