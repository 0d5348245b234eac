package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/signal_bridge/internal/domain"
	"go.uber.org/zap"
)

type streamedTick struct {
	tick       domain.Tick
	receivedAt time.Time
}

// QuoteStream keeps the latest bid/ask per symbol from the gateway's
// WebSocket tick feed. It does not reconnect; callers fall back to REST.
type QuoteStream struct {
	url    string
	logger *zap.Logger

	mu      sync.Mutex // guards conn and writes
	conn    *websocket.Conn
	done       chan struct{}
	symbols    []string // subscription order, no duplicates
	subscribed map[string]struct{}

	ticksMu sync.RWMutex
	ticks   map[string]streamedTick
	timeNow func() time.Time // For testing
}

func NewQuoteStream(url string, logger *zap.Logger) *QuoteStream {
	return &QuoteStream{
		url:        url,
		logger:     logger,
		subscribed: make(map[string]struct{}),
		ticks:      make(map[string]streamedTick),
		timeNow:    time.Now,
	}
}

func (q *QuoteStream) Connect(ctx context.Context, header http.Header) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil {
		return nil
	}

	c, _, err := websocket.DefaultDialer.DialContext(ctx, q.url, header)
	if err != nil {
		return err
	}
	q.conn = c
	q.done = make(chan struct{})

	go q.readLoop(c, q.done)

	// Resubscribe whatever was requested before a previous Close.
	return q.subscribe(q.symbols)
}

// Subscribe adds symbols to the stream. Symbols already subscribed are
// skipped; all of them are resent after a reconnect.
func (q *QuoteStream) Subscribe(symbols []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var added []string
	for _, s := range symbols {
		if _, ok := q.subscribed[s]; ok {
			continue
		}
		q.subscribed[s] = struct{}{}
		added = append(added, s)
	}
	q.symbols = append(q.symbols, added...)

	if q.conn == nil {
		return errors.New("quote stream not connected")
	}
	return q.subscribe(added)
}

func (q *QuoteStream) subscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	subMsg := map[string]interface{}{
		"op":      "subscribe",
		"symbols": symbols,
	}
	return q.conn.WriteJSON(subMsg)
}

func (q *QuoteStream) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		conn.Close()
		q.mu.Lock()
		if q.conn == conn {
			q.conn = nil
		}
		q.mu.Unlock()
		close(done)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				q.logger.Warn("Quote stream read error", zap.Error(err))
			}
			return
		}

		var raw wireTick
		if err := json.Unmarshal(message, &raw); err != nil || raw.Symbol == "" {
			continue
		}

		q.ticksMu.Lock()
		q.ticks[raw.Symbol] = streamedTick{tick: raw.toDomain(raw.Symbol), receivedAt: q.timeNow()}
		q.ticksMu.Unlock()
	}
}

// Latest returns the last streamed tick for symbol if it arrived within maxAge.
func (q *QuoteStream) Latest(symbol string, maxAge time.Duration) (*domain.Tick, bool) {
	q.ticksMu.RLock()
	st, ok := q.ticks[symbol]
	q.ticksMu.RUnlock()

	if !ok || q.timeNow().Sub(st.receivedAt) > maxAge {
		return nil, false
	}
	tick := st.tick
	return &tick, true
}

// Done is closed when the current connection's read loop exits.
func (q *QuoteStream) Done() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done
}

func (q *QuoteStream) Close() error {
	q.mu.Lock()
	conn := q.conn
	done := q.done
	q.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	<-done
	return err
}
