package backpack

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"bollmaker/internal/application/port"
	"bollmaker/internal/infrastructure/retry"
)

// ConnState 行情连接状态机
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAuthenticating
	StateSubscribed
	StateLive
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribed:
		return "subscribed"
	case StateLive:
		return "live"
	default:
		return "disconnected"
	}
}

// wsConn 抽象底层连接，测试注入假实现。
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Dialer 建立一条 wsConn
type Dialer func(ctx context.Context, url string) (wsConn, error)

func defaultDialer(ctx context.Context, url string) (wsConn, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(cctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

const (
	readDeadline            = 60 * time.Second
	pingInterval            = 25 * time.Second
	defaultHeartbeatTimeout = 30 * time.Second
	defaultHeartbeatPoll    = 5 * time.Second
)

// Feed Backpack 行情/账户流。负责重连、订阅重放与心跳监督；
// 所有事件经 Events() 以类型化形式输出。
type Feed struct {
	wsURL  string
	symbol string
	creds  *Credentials // nil 表示只订阅公共频道
	window string

	dialer           Dialer
	events           chan port.Event
	heartbeatTimeout time.Duration
	heartbeatPoll    time.Duration

	state   atomic.Int32
	lastMsg atomic.Int64 // 最近收到消息的 UnixNano

	mu   sync.Mutex
	conn wsConn
}

func NewFeed(wsURL, symbol string, creds *Credentials, window string) *Feed {
	if wsURL == "" {
		wsURL = "wss://ws.backpack.exchange"
	}
	if window == "" {
		window = "5000"
	}
	return &Feed{
		wsURL:            wsURL,
		symbol:           symbol,
		creds:            creds,
		window:           window,
		dialer:           defaultDialer,
		events:           make(chan port.Event, 1024),
		heartbeatTimeout: defaultHeartbeatTimeout,
		heartbeatPoll:    defaultHeartbeatPoll,
	}
}

// Events 类型化事件流；Start 的工作循环退出时关闭。
func (f *Feed) Events() <-chan port.Event { return f.events }

// State 当前连接状态
func (f *Feed) State() ConnState { return ConnState(f.state.Load()) }

// Start 建立首条连接并启动工作循环。首连失败（含重试）视为致命，
// 由调用方决定退出；后续断线在内部无限重连。
func (f *Feed) Start(ctx context.Context) error {
	var conn wsConn
	err := retry.Default.Do(ctx, func() error {
		var cerr error
		conn, cerr = f.connect(ctx)
		return cerr
	})
	if err != nil {
		return err
	}

	go f.run(ctx, conn)
	go f.superviseHeartbeat(ctx)
	return nil
}

// connect 拨号、鉴权并重放全部订阅。
func (f *Feed) connect(ctx context.Context) (wsConn, error) {
	f.state.Store(int32(StateConnecting))
	conn, err := f.dialer(ctx, f.wsURL)
	if err != nil {
		f.state.Store(int32(StateDisconnected))
		return nil, err
	}

	if err := f.subscribeAll(conn); err != nil {
		_ = conn.Close()
		f.state.Store(int32(StateDisconnected))
		return nil, err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.state.Store(int32(StateSubscribed))
	f.lastMsg.Store(time.Now().UnixNano())
	log.Info().Str("symbol", f.symbol).Msg("ws subscribed")
	return conn, nil
}

// subscribeAll 每次连接都完整重放订阅：私有频道带签名，公共频道随后。
func (f *Feed) subscribeAll(conn wsConn) error {
	if f.creds != nil {
		f.state.Store(int32(StateAuthenticating))
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		sig := f.creds.Sign(signMessage("subscribe", nil, timestamp, f.window))
		private := map[string]any{
			"method":    "SUBSCRIBE",
			"params":    []string{"account.orderUpdate." + f.symbol},
			"signature": []string{f.creds.APIKey(), sig, timestamp, f.window},
		}
		if err := conn.WriteJSON(private); err != nil {
			return err
		}
	}

	public := map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{"depth." + f.symbol, "bookTicker." + f.symbol},
	}
	return conn.WriteJSON(public)
}

func (f *Feed) run(ctx context.Context, conn wsConn) {
	defer close(f.events)

	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		err := f.pump(ctx, conn)
		_ = conn.Close()
		f.state.Store(int32(StateDisconnected))

		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("symbol", f.symbol).Msg("ws disconnected, reconnecting")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = minDur(backoff*2, maxBackoff)

			c, cerr := f.connect(ctx)
			if cerr != nil {
				log.Error().Err(cerr).Str("symbol", f.symbol).Msg("ws redial failed")
				continue
			}
			conn = c
			backoff = 500 * time.Millisecond
			break
		}
	}
}

// pump 单条连接的读循环；返回即表示连接已不可用。
func (f *Feed) pump(ctx context.Context, conn wsConn) error {
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
			f.lastMsg.Store(time.Now().UnixNano())
			// 首条消息确认数据在流动
			f.state.CompareAndSwap(int32(StateSubscribed), int32(StateLive))
			f.dispatch(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// 先断开并等读协程退出：它可能正在分发，提前关闭事件
			// 通道会让 emit 写到已关闭的 channel
			_ = conn.Close()
			<-errCh
			return ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				return errors.New("read pump closed")
			}
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

// dispatch 解析信封并分发；坏帧记日志后丢弃，不中断连接。
func (f *Feed) dispatch(raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn().Err(err).Msg("ws frame not an event envelope, dropped")
		return
	}

	switch {
	case strings.HasPrefix(env.Stream, "bookTicker."):
		var t wsBookTicker
		if err := json.Unmarshal(env.Data, &t); err != nil {
			log.Warn().Err(err).Str("stream", env.Stream).Msg("bad bookTicker payload, dropped")
			return
		}
		bid, _ := strconv.ParseFloat(t.Bid, 64)
		ask, _ := strconv.ParseFloat(t.Ask, 64)
		f.emit(port.TickerEvent{Symbol: f.symbol, Bid: bid, Ask: ask, Ts: time.Now().UnixMilli()})

	case strings.HasPrefix(env.Stream, "depth."):
		var d wsDepth
		if err := json.Unmarshal(env.Data, &d); err != nil {
			log.Warn().Err(err).Str("stream", env.Stream).Msg("bad depth payload, dropped")
			return
		}
		f.emit(port.DepthEvent{Symbol: f.symbol, Bids: toLevels(d.Bids), Asks: toLevels(d.Asks)})

	case strings.HasPrefix(env.Stream, "account.orderUpdate."):
		var u wsOrderUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			log.Warn().Err(err).Str("stream", env.Stream).Msg("bad order update payload, dropped")
			return
		}
		if u.EventType != "orderFill" {
			return
		}
		price, _ := strconv.ParseFloat(u.Price, 64)
		qty, _ := strconv.ParseFloat(u.LastQty, 64)
		f.emit(port.FillEvent{OrderID: u.OrderID, Side: u.Side, Price: price, Quantity: qty, Ts: time.Now().UnixMilli()})
	}
}

func (f *Feed) emit(ev port.Event) {
	select {
	case f.events <- ev:
	default:
		log.Warn().Str("symbol", f.symbol).Msg("event channel full, event dropped")
	}
}

// superviseHeartbeat 独立于读循环监督数据新鲜度。超过 heartbeatTimeout
// 未收到任何消息时，通过 CAS 保证每个失联期只强制断开一次，由读循环
// 的错误路径触发重连。
func (f *Feed) superviseHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(f.heartbeatPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.closeConn()
			return
		case <-ticker.C:
		}

		last := f.lastMsg.Load()
		if last == 0 {
			continue
		}
		stale := time.Since(time.Unix(0, last))
		if stale < f.heartbeatTimeout {
			continue
		}
		if !f.state.CompareAndSwap(int32(StateLive), int32(StateDisconnected)) {
			continue
		}
		log.Warn().Str("symbol", f.symbol).Dur("stale", stale).Msg("heartbeat timeout, forcing reconnect")
		f.closeConn()
	}
}

func (f *Feed) closeConn() {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func toLevels(raw [][2]string) []port.PriceLevel {
	levels := make([]port.PriceLevel, 0, len(raw))
	for _, r := range raw {
		price, err := strconv.ParseFloat(r[0], 64)
		if err != nil {
			continue
		}
		qty, _ := strconv.ParseFloat(r[1], 64)
		levels = append(levels, port.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
