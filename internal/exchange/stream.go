package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// BinanceStream streams live ticker updates over the Binance WebSocket API
// and publishes them as quotes. It is used to keep the price cache warm
// between REST fetches.
type BinanceStream struct {
	logger *slog.Logger
}

// NewBinanceStream creates a new BinanceStream.
func NewBinanceStream(logger *slog.Logger) *BinanceStream {
	return &BinanceStream{logger: logger}
}

// StartStream connects to the ticker stream for pair and sends quotes until
// the context is cancelled. Connection failures trigger reconnects with
// exponential backoff capped at 16 seconds.
func (s *BinanceStream) StartStream(ctx context.Context, quotes chan<- model.Quote, pair string) error {
	wsURL := fmt.Sprintf("wss://stream.binance.com:9443/ws/%s@ticker", strings.ToLower(binanceSymbol(pair)))
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("BinanceStream: context cancelled, shutting down")
			return nil
		default:
		}

		s.logger.Info("BinanceStream: connecting to WebSocket", "url", wsURL, "backoff", backoff)
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			s.logger.Error("BinanceStream: WebSocket connection failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > 16*time.Second {
					backoff = 16 * time.Second
				}
			}
			continue
		}

		// Reset backoff on successful connection
		backoff = time.Second
		s.logger.Info("BinanceStream: connected successfully")

		if done := s.readLoop(ctx, conn, quotes, pair); done {
			return nil
		}
	}
}

// readLoop consumes ticker messages until the connection breaks or the
// context is cancelled. Returns true when the stream should shut down.
func (s *BinanceStream) readLoop(ctx context.Context, conn *websocket.Conn, quotes chan<- model.Quote, pair string) bool {
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchdogDone:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("BinanceStream: context cancelled, closing connection")
				return true
			}
			s.logger.Error("BinanceStream: failed to read message", "error", err)
			return false
		}

		var ticker struct {
			LastPrice string `json:"c"`
		}
		if err := json.Unmarshal(message, &ticker); err != nil {
			s.logger.Warn("BinanceStream: failed to parse message", "error", err)
			continue
		}
		if ticker.LastPrice == "" {
			continue
		}
		price, err := decimal.NewFromString(ticker.LastPrice)
		if err != nil {
			s.logger.Warn("BinanceStream: failed to parse price", "error", err)
			continue
		}

		quote := model.Quote{
			Exchange:  "binance",
			Pair:      pair,
			Price:     price,
			Timestamp: time.Now(),
		}

		select {
		case quotes <- quote:
			s.logger.Debug("BinanceStream: sent quote", "price", price)
		case <-ctx.Done():
			s.logger.Info("BinanceStream: context cancelled while sending quote")
			return true
		}
	}
}
