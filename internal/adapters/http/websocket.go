package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

// wsMessage is sent from client to subscribe/unsubscribe to seat updates.
type wsMessage struct {
	Action    string `json:"action"`     // "subscribe" | "unsubscribe"
	SegmentID string `json:"segment_id"` // required
	Date      string `json:"date"`       // YYYY-MM-DD filter (optional, "" = every date)
}

// capacityFilter decides whether a relayed event reaches the client.
type capacityFilter struct {
	sub   *nats.Subscription
	dates map[string]bool // empty = every date
}

func (f *capacityFilter) accepts(data []byte) bool {
	if len(f.dates) == 0 {
		return true
	}
	var ev domain.CapacityChanged
	if err := json.Unmarshal(data, &ev); err != nil {
		return false
	}
	return f.dates[ev.Date]
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// capacity-changed events for the segments a client watches.
// Clients send JSON: {"action":"subscribe","segment_id":"s-ktm-pkr","date":"2026-11-02"}
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		filters := make(map[string]*capacityFilter) // subject -> filter

		// Helper: thread-safe write
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.SegmentID == "" {
				_ = writeJSON(map[string]string{"error": "segment_id is required"})
				continue
			}
			if m.Date != "" {
				if _, err := domain.ParseDate(m.Date); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
			}
			subject := usecases.CapacitySubject(m.SegmentID)

			switch m.Action {
			case "subscribe":
				f, exists := filters[subject]
				if !exists {
					f = &capacityFilter{dates: make(map[string]bool)}
					s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
						mu.Lock()
						ok := f.accepts(msg.Data)
						mu.Unlock()
						if ok {
							_ = writeJSON(json.RawMessage(msg.Data))
						}
					})
					if err != nil {
						_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
						continue
					}
					f.sub = s
					filters[subject] = f
				}
				mu.Lock()
				if m.Date != "" {
					f.dates[m.Date] = true
				} else {
					f.dates = map[string]bool{}
				}
				mu.Unlock()
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject, "date": m.Date})

			case "unsubscribe":
				f, exists := filters[subject]
				if !exists {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
					continue
				}
				mu.Lock()
				delete(f.dates, m.Date)
				drop := m.Date == "" || len(f.dates) == 0
				mu.Unlock()
				if drop {
					_ = f.sub.Unsubscribe()
					delete(filters, subject)
				}
				_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject, "date": m.Date})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, f := range filters {
			_ = f.sub.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
