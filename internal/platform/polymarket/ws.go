package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yonghanchen/predictbot/internal/domain"
)

// WSClient is a client for the CLOB market-data WebSocket. Handlers are
// invoked from the read loop goroutine and must not block.
type WSClient struct {
	wsURL string

	mu      sync.Mutex
	conn    *websocket.Conn
	onBook  func(domain.OrderbookSnapshot)
	onPrice func(domain.PriceChange)

	done      chan struct{}
	closeOnce sync.Once
}

// NewWSClient creates a WebSocket client for the given endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// OnBookUpdate registers the handler for full order-book snapshots.
func (c *WSClient) OnBookUpdate(fn func(domain.OrderbookSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onBook = fn
}

// OnPriceChange registers the handler for incremental price updates.
func (c *WSClient) OnPriceChange(fn func(domain.PriceChange)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPrice = fn
}

// Connect dials the WebSocket endpoint and starts the read loop.
func (c *WSClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: dial %s: %w", c.wsURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

// Subscribe asks the venue to stream market events for the given token IDs.
func (c *WSClient) Subscribe(ctx context.Context, tokenIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return domain.ErrWSDisconnect
	}

	cmd := wsSubscribe{
		Type:    "market",
		Channel: "market",
		Assets:  tokenIDs,
	}
	if err := c.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	return nil
}

// readLoop reads frames until the connection drops or Close is called. The
// venue sends either a single event object or an array of events per frame.
func (c *WSClient) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.Close()
			return
		}

		var events []WSEvent
		if err := json.Unmarshal(data, &events); err != nil {
			var single WSEvent
			if err := json.Unmarshal(data, &single); err != nil {
				continue
			}
			events = []WSEvent{single}
		}

		for i := range events {
			c.dispatch(&events[i])
		}
	}
}

func (c *WSClient) dispatch(ev *WSEvent) {
	c.mu.Lock()
	onBook, onPrice := c.onBook, c.onPrice
	c.mu.Unlock()

	switch ev.EventType {
	case "book":
		if onBook != nil {
			onBook(ev.ToSnapshot())
		}
	case "price_change", "last_trade_price":
		if onPrice != nil {
			onPrice(ev.ToPriceChange())
		}
	}
}

// Done is closed when the connection ends, whether by Close or by a read
// error.
func (c *WSClient) Done() <-chan struct{} {
	return c.done
}

// Close tears down the connection. Safe to call multiple times.
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
}
