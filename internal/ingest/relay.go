package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gregapostle/memebot/internal/signal"
)

const (
	relayReadTimeout  = 30 * time.Second
	relayPingInterval = 15 * time.Second
	relayMaxBackoff   = 30 * time.Second
)

// Relay subscribes to a websocket that streams JSON-encoded signals, one per message.
// Producers such as chat scrapers live outside this process and publish to the relay.
type Relay struct {
	url         string
	log         zerolog.Logger
	initBackoff time.Duration
}

// NewRelay builds a relay client for url (ws:// or wss://).
func NewRelay(url string, log zerolog.Logger) *Relay {
	return &Relay{url: url, log: log, initBackoff: time.Second}
}

// Run reconnects with capped backoff until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, out chan<- *signal.Signal) error {
	if r.url == "" {
		return errors.New("relay url is empty")
	}
	backoff := r.initBackoff
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := r.consume(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warn().Err(err).Str("url", r.url).Dur("backoff", backoff).Msg("signal relay disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(relayMaxBackoff), float64(backoff)*1.8))
	}
}

func (r *Relay) consume(ctx context.Context, out chan<- *signal.Signal) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	r.log.Info().Str("url", r.url).Msg("connected signal relay")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(relayReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(relayReadTimeout))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(relayPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					r.log.Warn().Err(err).Msg("relay ping failed")
					return
				}
			case <-pingCtx.Done():
				// unblock ReadMessage
				conn.Close()
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(relayReadTimeout))

		var sig signal.Signal
		if err := json.Unmarshal(message, &sig); err != nil {
			r.log.Warn().Err(err).Msg("failed to decode relay message")
			continue
		}
		select {
		case out <- &sig:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
