package backpack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"bollmaker/internal/application/port"
	"bollmaker/internal/infrastructure/retry"
)

const apiVersion = "v1"

// intervalSeconds K线间隔对应的秒数，用于推算 startTime。
var intervalSeconds = map[string]int64{
	"1m": 60, "3m": 180, "5m": 300, "15m": 900, "30m": 1800,
	"1h": 3600, "2h": 7200, "4h": 14400, "6h": 21600, "8h": 28800,
	"12h": 43200, "1d": 86400, "3d": 259200, "1w": 604800, "1month": 2592000,
}

// RestClient Backpack 签名 REST 客户端。
// 429 按指数退避重试，其他非 2xx 有界重试后报错。
type RestClient struct {
	baseURL string
	window  string
	creds   *Credentials
	client  *http.Client
	policy  retry.Policy

	// 注入时间源便于测试
	now func() time.Time
}

func NewRestClient(baseURL, window string, creds *Credentials) *RestClient {
	if baseURL == "" {
		baseURL = "https://api.backpack.exchange"
	}
	if window == "" {
		window = "5000"
	}
	return &RestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		window:  window,
		creds:   creds,
		client:  &http.Client{Timeout: 10 * time.Second},
		policy:  retry.Policy{MaxAttempts: 3, BaseDelay: 1 * time.Second, MaxDelay: 8 * time.Second},
		now:     time.Now,
	}
}

// do 执行一次（带重试的）REST 请求；instruction 为空表示公共接口。
func (c *RestClient) do(ctx context.Context, method, path, instruction string, params map[string]string, body any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 && (method == http.MethodGet || method == http.MethodDelete) {
		endpoint += "?" + encodeQuery(params)
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}

	attempts := c.policy.MaxAttempts
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		if instruction != "" {
			timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
			signature := c.creds.Sign(signMessage(instruction, params, timestamp, c.window))
			req.Header.Set("X-API-KEY", c.creds.APIKey())
			req.Header.Set("X-SIGNATURE", signature)
			req.Header.Set("X-TIMESTAMP", timestamp)
			req.Header.Set("X-WINDOW", c.window)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < attempts-1 {
				log.Warn().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("rest request failed, retrying")
				if serr := sleepCtx(ctx, c.policy.Delay(attempt)); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, fmt.Errorf("rest %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return respBody, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			// 限速必须退避重试，不计入普通失败预算之外
			wait := c.policy.Delay(attempt)
			log.Warn().Str("path", path).Dur("wait", wait).Msg("rate limited, backing off")
			lastErr = fmt.Errorf("rest %s %s: status 429", method, path)
			if serr := sleepCtx(ctx, wait); serr != nil {
				return nil, serr
			}
		default:
			lastErr = fmt.Errorf("rest %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
			if attempt < attempts-1 {
				log.Warn().Str("path", path).Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("rest error, retrying")
				if serr := sleepCtx(ctx, c.policy.Delay(attempt)); serr != nil {
					return nil, serr
				}
			}
		}
	}
	return nil, lastErr
}

// Ticker 返回最新成交价。
func (c *RestClient) Ticker(ctx context.Context, symbol string) (float64, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/"+apiVersion+"/ticker", "", map[string]string{"symbol": symbol}, nil)
	if err != nil {
		return 0, err
	}
	var t tickerResp
	if err := json.Unmarshal(body, &t); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	return strconv.ParseFloat(t.LastPrice, 64)
}

// Klines 拉取历史K线并按开始时间升序返回。
// startTime 由 limit+1 个间隔回推，当前时间先取整到分钟。
func (c *RestClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]port.Kline, error) {
	secs, ok := intervalSeconds[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported kline interval %q", interval)
	}

	nowSec := c.now().Unix()
	nowSec -= nowSec % 60
	startTime := nowSec - secs*int64(limit+1)

	params := map[string]string{
		"symbol":    symbol,
		"interval":  interval,
		"limit":     strconv.Itoa(limit),
		"startTime": strconv.FormatInt(startTime, 10),
	}
	body, err := c.do(ctx, http.MethodGet, "/api/"+apiVersion+"/klines", "", params, nil)
	if err != nil {
		return nil, err
	}

	var raw []klineResp
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].Start < raw[j].Start })

	klines := make([]port.Kline, 0, len(raw))
	for _, k := range raw {
		closeP, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			log.Warn().Str("close", k.Close).Msg("kline close not numeric, skipped")
			continue
		}
		klines = append(klines, port.Kline{Start: k.Start, Close: closeP})
	}
	return klines, nil
}

// PlaceOrder 下单。签名参数与请求体字段保持一致。
func (c *RestClient) PlaceOrder(ctx context.Context, req port.OrderRequest) (port.PlacedOrder, error) {
	params := map[string]string{
		"orderType":   req.OrderType,
		"price":       orDefault(req.Price, "0"),
		"quantity":    req.Quantity,
		"side":        req.Side,
		"symbol":      req.Symbol,
		"timeInForce": orDefault(req.TimeInForce, TifGTC),
	}
	body := map[string]any{
		"orderType":   req.OrderType,
		"price":       orDefault(req.Price, "0"),
		"quantity":    req.Quantity,
		"side":        req.Side,
		"symbol":      req.Symbol,
		"timeInForce": orDefault(req.TimeInForce, TifGTC),
	}
	if req.PostOnly {
		params["postOnly"] = "true"
		body["postOnly"] = true
	}
	if req.ReduceOnly {
		params["reduceOnly"] = "true"
		body["reduceOnly"] = true
	}
	if req.ClientID != "" {
		params["clientId"] = req.ClientID
		body["clientId"] = req.ClientID
	}
	if req.QuoteQuantity != "" {
		params["quoteQuantity"] = req.QuoteQuantity
		body["quoteQuantity"] = req.QuoteQuantity
	}
	if req.AutoBorrow {
		params["autoBorrow"] = "true"
		body["autoBorrow"] = true
	}
	if req.AutoLendRedeem {
		params["autoLendRedeem"] = "true"
		body["autoLendRedeem"] = true
	}
	if req.AutoBorrowRepay {
		params["autoBorrowRepay"] = "true"
		body["autoBorrowRepay"] = true
	}
	if req.AutoLend {
		params["autoLend"] = "true"
		body["autoLend"] = true
	}

	respBody, err := c.do(ctx, http.MethodPost, "/api/"+apiVersion+"/order", "orderExecute", params, body)
	if err != nil {
		return port.PlacedOrder{}, err
	}
	var o orderResp
	if err := json.Unmarshal(respBody, &o); err != nil {
		return port.PlacedOrder{}, fmt.Errorf("decode order: %w", err)
	}
	if o.ID == "" {
		return port.PlacedOrder{}, fmt.Errorf("order rejected: %s", string(respBody))
	}
	return port.PlacedOrder{ID: o.ID, Status: o.Status, Side: o.Side, Price: o.Price, Quantity: o.Quantity}, nil
}

// CancelOrder 撤销单个订单。
func (c *RestClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]string{"orderId": orderID, "symbol": symbol}
	_, err := c.do(ctx, http.MethodDelete, "/api/"+apiVersion+"/order", "orderCancel", params, nil)
	return err
}

// CancelAllOrders 撤销该交易对全部挂单。
func (c *RestClient) CancelAllOrders(ctx context.Context, symbol string) error {
	params := map[string]string{"symbol": symbol}
	_, err := c.do(ctx, http.MethodDelete, "/api/"+apiVersion+"/orders", "orderCancelAll", params, map[string]string{"symbol": symbol})
	return err
}

// OpenOrders 查询未成交订单。
func (c *RestClient) OpenOrders(ctx context.Context, symbol string) ([]port.PlacedOrder, error) {
	params := map[string]string{}
	if symbol != "" {
		params["symbol"] = symbol
	}
	body, err := c.do(ctx, http.MethodGet, "/api/"+apiVersion+"/orders", "orderQueryAll", params, nil)
	if err != nil {
		return nil, err
	}
	var raw []orderResp
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	orders := make([]port.PlacedOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, port.PlacedOrder{ID: o.ID, Status: o.Status, Side: o.Side, Price: o.Price, Quantity: o.Quantity})
	}
	return orders, nil
}

// Balances 查询账户余额。
func (c *RestClient) Balances(ctx context.Context) (map[string]port.Balance, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/"+apiVersion+"/capital", "balanceQuery", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]balanceResp
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}
	out := make(map[string]port.Balance, len(raw))
	for asset, b := range raw {
		available, _ := strconv.ParseFloat(b.Available, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		out[asset] = port.Balance{Available: available, Locked: locked}
	}
	return out, nil
}

// BorrowLendPositions 查询借贷净头寸。
func (c *RestClient) BorrowLendPositions(ctx context.Context) ([]port.BorrowLendPosition, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/"+apiVersion+"/borrowLend/positions", "borrowLendPositionQuery", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw []borrowLendResp
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode borrow/lend positions: %w", err)
	}
	out := make([]port.BorrowLendPosition, 0, len(raw))
	for _, p := range raw {
		net, err := strconv.ParseFloat(p.NetQuantity, 64)
		if err != nil {
			log.Warn().Str("symbol", p.Symbol).Str("netQuantity", p.NetQuantity).Msg("borrow/lend quantity not numeric, skipped")
			continue
		}
		out = append(out, port.BorrowLendPosition{Symbol: p.Symbol, NetQuantity: net})
	}
	return out, nil
}

// FillHistory 查询历史成交。
func (c *RestClient) FillHistory(ctx context.Context, symbol string, limit int) ([]port.Trade, error) {
	params := map[string]string{"limit": strconv.Itoa(limit)}
	if symbol != "" {
		params["symbol"] = symbol
	}
	body, err := c.do(ctx, http.MethodGet, "/wapi/"+apiVersion+"/history/fills", "fillHistoryQueryAll", params, nil)
	if err != nil {
		return nil, err
	}
	var raw []fillResp
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode fill history: %w", err)
	}
	trades := make([]port.Trade, 0, len(raw))
	for _, f := range raw {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Quantity, 64)
		trades = append(trades, port.Trade{Symbol: f.Symbol, Side: f.Side, Price: price, Quantity: qty})
	}
	return trades, nil
}

func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

var (
	_ port.OrderGateway   = (*RestClient)(nil)
	_ port.KlineSource    = (*RestClient)(nil)
	_ port.AccountGateway = (*RestClient)(nil)
)
