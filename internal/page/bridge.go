package page

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"tweet_collector/internal/model"
)

const reconnectDelay = 5 * time.Second

// Bridge maintains the websocket connection to the extension shell and
// publishes DOM events on a channel. It reconnects on transient errors.
type Bridge struct {
	url    string
	events chan model.PageEvent
	log    *slog.Logger
}

// NewBridge creates a bridge reading events from the given websocket URL.
func NewBridge(url string, log *slog.Logger) *Bridge {
	return &Bridge{
		url:    url,
		events: make(chan model.PageEvent, 64),
		log:    log,
	}
}

// Events returns the channel DOM events are delivered on. The channel is
// closed when Run returns.
func (b *Bridge) Events() <-chan model.PageEvent {
	return b.events
}

// Run connects to the event stream and processes messages until the context
// is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	defer close(b.events)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := b.subscribe(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.log.Error("bridge connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
				}
			}
		}
	}
}

func (b *Bridge) subscribe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}
	defer conn.Close()

	b.log.Info("connected to page bridge", "url", b.url)

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var event model.PageEvent
		if err := json.Unmarshal(message, &event); err != nil {
			b.log.Error("malformed page event", "error", err)
			continue
		}

		select {
		case b.events <- event:
		default:
			// The scheduler coalesces rescans anyway; dropping under
			// backpressure loses nothing the recovery scan cannot catch.
			b.log.Debug("event channel full, dropping", "kind", event.Kind)
		}
	}
}
