package starmap

import (
	"context"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

// reconnectDelay is deliberately fixed, not exponential: the stream is
// a single long-lived connection to our own backend, and at most one
// reconnect is ever pending.
const reconnectDelay = 3000 * time.Millisecond

// StreamDeps are the collaborators a StreamClient dispatches into.
// Resync is invoked for unknown-id deletes and after every reconnect;
// it is expected to fetch and load a full snapshot. FetchDetail is
// called for stars created inside the current viewport. InView reports
// whether a world position is currently visible; it must be safe to
// call from the stream goroutine. Forget drops any persisted detail
// for a removed star.
type StreamDeps struct {
	Store       *Store
	Resync      func()
	FetchDetail func(id int64)
	InView      func(p Vec2) bool
	Forget      func(id int64)
}

// StreamClient keeps one persistent push connection to the backend
// and feeds decoded change notifications into the store.
type StreamClient struct {
	url  string
	deps StreamDeps
}

func NewStreamClient(streamURL, token string, deps StreamDeps) *StreamClient {
	u := streamURL
	if token != "" {
		if parsed, err := url.Parse(streamURL); err == nil {
			q := parsed.Query()
			q.Set("token", token)
			parsed.RawQuery = q.Encode()
			u = parsed.String()
		}
	}
	return &StreamClient{url: u, deps: deps}
}

// Run dials the stream and processes frames until ctx is cancelled.
// Connection failures schedule exactly one reconnect after the fixed
// delay; each successful reconnect is followed by a full snapshot
// resync, since missed events are not replayed.
func (c *StreamClient) Run(ctx context.Context) {
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[stream] connecting to %s", c.url)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Printf("[stream] dial error: %v. Retrying in %v...", err, reconnectDelay)
			if !sleepCtx(ctx, reconnectDelay) {
				return
			}
			continue
		}

		if !first && c.deps.Resync != nil {
			// No replay of missed events; bound staleness with a snapshot.
			c.deps.Resync()
		}
		first = false

		// Unblock ReadMessage when ctx is cancelled.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					close(done)
					conn.Close()
					return
				}
				log.Printf("[stream] read error: %v. Reconnecting...", err)
				break
			}
			c.HandleFrame(message)
		}
		close(done)
		conn.Close()
		if !sleepCtx(ctx, reconnectDelay) {
			return
		}
	}
}

type streamFrame struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

// HandleFrame decodes one push frame and dispatches it. Malformed
// payloads are logged and dropped without side effects.
func (c *StreamClient) HandleFrame(message []byte) {
	var frame streamFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		log.Printf("[stream] dropping undecodable frame: %v", err)
		return
	}

	switch frame.Type {
	case "create":
		var data struct {
			ID        *int64   `json:"id"`
			X         *float64 `json:"x"`
			Y         *float64 `json:"y"`
			LastLiked float64  `json:"last_liked"`
			UserID    int64    `json:"user_id"`
		}
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.ID == nil || data.X == nil || data.Y == nil {
			log.Printf("[stream] dropping malformed create: %s", message)
			return
		}
		pos := Vec2{X: *data.X, Y: *data.Y}
		if _, ok := c.deps.Store.AddMinimal(*data.ID, pos, data.LastLiked, data.UserID); !ok {
			return
		}
		// Only fetch detail for stars the user can currently see; the
		// rest resolve lazily when they scroll into view.
		if c.deps.InView != nil && c.deps.FetchDetail != nil && c.deps.InView(pos) {
			c.deps.FetchDetail(*data.ID)
		}

	case "update":
		var data struct {
			ID        *int64  `json:"id"`
			LastLiked float64 `json:"last_liked"`
		}
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.ID == nil {
			log.Printf("[stream] dropping malformed update: %s", message)
			return
		}
		c.deps.Store.UpdateLikeTime(*data.ID, data.LastLiked)

	case "delete":
		var data struct {
			ID *int64 `json:"id"`
		}
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.ID == nil {
			log.Printf("[stream] dropping malformed delete: %s", message)
			return
		}
		if c.deps.Store.Remove(*data.ID) {
			if c.deps.Forget != nil {
				c.deps.Forget(*data.ID)
			}
		} else {
			// The create may never have been processed, or events were
			// dropped across a reconnect. Deletes are rare enough that a
			// full refetch beats attempting partial repair.
			log.Printf("[stream] delete for unknown star id %d, resyncing", *data.ID)
			if c.deps.Resync != nil {
				c.deps.Resync()
			}
		}

	default:
		log.Printf("[stream] unknown frame type %q", frame.Type)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
