package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"AlertFuse/internal/domain/models"
	drepo "AlertFuse/internal/domain/repository"
	"AlertFuse/pkg/logger"
)

// QuoteStream implements MarketStream over a quote provider websocket.
type QuoteStream struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewQuoteStream creates a websocket market stream.
func NewQuoteStream(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) drepo.MarketStream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &QuoteStream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

func (c *QuoteStream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("quote stream connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if c.log != nil {
		c.log.Info("quote stream connected", logger.String("url", c.websocketURL))
	}
	return nil
}

func (c *QuoteStream) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if conn == nil || !connected {
		return fmt.Errorf("quote stream not connected")
	}

	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	return nil
}

type wsTick struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsFrame struct {
	Type string   `json:"type"`
	Data []wsTick `json:"data"`
}

// Read streams ticks as market raw events. The channels close on read
// failure; callers Reconnect and call Read again.
func (c *QuoteStream) Read(ctx context.Context) (<-chan *models.RawEvent, <-chan error) {
	events := make(chan *models.RawEvent, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				errs <- fmt.Errorf("quote stream conn nil")
				return
			}

			_, b, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				c.connected = false
				c.mu.Unlock()
				errs <- fmt.Errorf("quote stream read: %w", err)
				return
			}

			var frame wsFrame
			if err := json.Unmarshal(b, &frame); err != nil || frame.Type != "trade" {
				// ignore non-tick frames
				continue
			}
			for _, d := range frame.Data {
				ts := time.UnixMilli(d.T).UTC()
				ev := &models.RawEvent{
					ID:        d.S + ":" + strconv.FormatInt(d.T, 10),
					Domain:    models.DomainMarket,
					Source:    "quote-stream",
					Timestamp: ts,
					Market:    &models.MarketPayload{Symbol: d.S, Price: d.P, Volume: d.V},
				}
				select {
				case events <- ev:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return events, errs
}

func (c *QuoteStream) Reconnect(ctx context.Context) error {
	c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func (c *QuoteStream) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *QuoteStream) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
