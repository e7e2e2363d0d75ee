package kds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/utils"
	"golang.org/x/time/rate"
)

// envelope is a push message from the realtime namespace.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WebSocketFeed reads server push events over a websocket and reconnects
// when the connection drops.
type WebSocketFeed struct {
	URL    string
	Token  string
	Dialer *websocket.Dialer

	// Limiter paces reconnect attempts.
	Limiter *rate.Limiter
}

func NewWebSocketFeed(url, token string) *WebSocketFeed {
	return &WebSocketFeed{
		URL:     url,
		Token:   token,
		Dialer:  websocket.DefaultDialer,
		Limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Run delivers events to sink until ctx is done. Each (re)connect is announced
// with an order-less orders:changed event so that anything missed while
// disconnected gets refetched.
func (f *WebSocketFeed) Run(ctx context.Context, sink func(models.ExternalEvent)) error {
	for {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil
		}

		conn, err := f.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			utils.ErrorLogger.Errorf("Realtime connect failed: %v", err)
			continue
		}
		utils.InfoLogger.WithField("url", f.URL).Info("Realtime feed connected")
		sink(models.ExternalEvent{Kind: models.EventOrderChanged, ReceivedAt: time.Now()})

		err = readLoop(ctx, conn, sink)
		if ctx.Err() != nil {
			return nil
		}
		utils.ErrorLogger.Errorf("Realtime feed dropped: %v", err)
	}
}

func (f *WebSocketFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if f.Token != "" {
		header.Set("Authorization", "Bearer "+f.Token)
	}
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, f.URL, header)
	return conn, err
}

func readLoop(ctx context.Context, conn *websocket.Conn, sink func(models.ExternalEvent)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if ev, ok := decodeEnvelope(raw); ok {
			sink(ev)
		}
	}
}

// decodeEnvelope parses one push message. Unknown or malformed events are
// logged and skipped.
func decodeEnvelope(raw []byte) (models.ExternalEvent, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		utils.ErrorLogger.Errorf("Malformed push message: %v", err)
		return models.ExternalEvent{}, false
	}
	ev, err := models.DecodeEvent(env.Event, env.Data)
	if err != nil {
		if errors.Is(err, models.ErrUnknownEvent) {
			utils.InfoLogger.WithField("event", env.Event).Debug("Ignoring unknown event")
		} else {
			utils.ErrorLogger.Errorf("Bad %s payload: %v", env.Event, err)
		}
		return models.ExternalEvent{}, false
	}
	return ev, true
}

func asEnvelope(body []byte) ([]byte, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Event == "" {
		return nil, false
	}
	return body, true
}
