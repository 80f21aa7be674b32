package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/portview/backend/pkg/logger"
)

// Feed timing.
const (
	feedPingInterval      = 30 * time.Second
	feedReconnectInitial  = 1 * time.Second
	feedReconnectMax      = 30 * time.Second
	feedMaxReconnectTries = 10
	feedReadTimeout       = 90 * time.Second
)

// Feed maintains a websocket subscription to the provider's live quote
// stream and pushes ticks into the quote cache.
type Feed struct {
	streamURL string
	apiKey    string
	cache     *QuoteCache
	logger    *logger.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	subscriptions map[string]bool
	subMu         sync.RWMutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewFeed creates a streaming quote feed.
func NewFeed(streamURL, apiKey string, cache *QuoteCache, log *logger.Logger) *Feed {
	return &Feed{
		streamURL:     streamURL,
		apiKey:        apiKey,
		cache:         cache,
		logger:        log,
		subscriptions: make(map[string]bool),
		stopCh:        make(chan struct{}),
	}
}

// Start connects and begins the read loop. Returns immediately; the loop
// reconnects with backoff until Stop is called.
func (f *Feed) Start(ctx context.Context) error {
	if f.streamURL == "" {
		return fmt.Errorf("stream URL not configured")
	}

	if err := f.connect(ctx); err != nil {
		return err
	}

	f.wg.Add(2)
	go f.readLoop(ctx)
	go f.pingLoop()

	return nil
}

// Stop closes the connection and waits for the loops to exit.
func (f *Feed) Stop() {
	close(f.stopCh)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
}

// Subscribe adds symbols to the live stream.
func (f *Feed) Subscribe(symbols ...string) error {
	f.subMu.Lock()
	for _, symbol := range symbols {
		f.subscriptions[symbol] = true
	}
	f.subMu.Unlock()

	return f.sendSubscribe(symbols)
}

func (f *Feed) connect(ctx context.Context) error {
	header := map[string][]string{"X-Api-Key": {f.apiKey}}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.streamURL, header)
	if err != nil {
		return fmt.Errorf("dial quote stream: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	f.logger.WithField("url", f.streamURL).Info("Quote stream connected")

	// Re-establish subscriptions after a reconnect.
	f.subMu.RLock()
	symbols := make([]string, 0, len(f.subscriptions))
	for symbol := range f.subscriptions {
		symbols = append(symbols, symbol)
	}
	f.subMu.RUnlock()

	if len(symbols) > 0 {
		return f.sendSubscribe(symbols)
	}
	return nil
}

func (f *Feed) sendSubscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil
	}

	msg := map[string]interface{}{
		"action":  "subscribe",
		"symbols": symbols,
	}
	if err := f.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	return nil
}

type tickMessage struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"ts"` // unix millis
}

func (f *Feed) readLoop(ctx context.Context) {
	defer f.wg.Done()

	delay := feedReconnectInitial
	attempts := 0

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.stopCh:
				return
			default:
			}

			attempts++
			if attempts > feedMaxReconnectTries {
				f.logger.WithError(err).Error("Quote stream gave up reconnecting")
				return
			}

			f.logger.WithError(err).WithField("attempt", attempts).Warn("Quote stream dropped, reconnecting")
			time.Sleep(delay)
			delay *= 2
			if delay > feedReconnectMax {
				delay = feedReconnectMax
			}

			if err := f.connect(ctx); err != nil {
				continue
			}
			continue
		}

		attempts = 0
		delay = feedReconnectInitial

		var tick tickMessage
		if err := json.Unmarshal(data, &tick); err != nil {
			f.logger.WithError(err).Debug("Skipping malformed tick")
			continue
		}
		if tick.Symbol == "" {
			continue
		}

		f.cache.Update(&Quote{
			Symbol:    tick.Symbol,
			Price:     tick.Price,
			Timestamp: time.UnixMilli(tick.Timestamp).UTC(),
		})
	}
}

func (f *Feed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			f.connMu.Unlock()
		}
	}
}
