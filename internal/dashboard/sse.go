package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"CollectRecon/api/constants"
	"CollectRecon/internal/notification"

	"github.com/google/uuid"
)

const clientBuffer = 32

type SSEClient struct {
	id      string
	account string
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

func (c *SSEClient) close() { c.once.Do(func() { close(c.done) }) }

// SSEServer streams activity events to connected dashboards. Each
// connection is written only by its own handler goroutine.
type SSEServer struct {
	mu           sync.RWMutex
	clients      map[string]*SSEClient
	pingInterval time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewSSEServer(pingInterval time.Duration) *SSEServer {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &SSEServer{
		clients:      make(map[string]*SSEClient),
		pingInterval: pingInterval,
		stopCh:       make(chan struct{}),
	}
}

// HandleSSE serves /collections/activity/stream. client_id names the
// connection (a new one replaces the old); account limits the stream to
// one account number.
func (s *SSEServer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(constants.ContentTypeText, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(constants.HeaderAccessControlAllowOrigin, "*")
	w.Header().Set(constants.HeaderAccessControlAllowHeaders, "Cache-Control")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := r.URL.Query().Get("client_id")
	if id == "" {
		id = uuid.NewString()
	}
	client := &SSEClient{
		id:      id,
		account: r.URL.Query().Get("account"),
		send:    make(chan []byte, clientBuffer),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if existing, exists := s.clients[id]; exists {
		existing.close()
	}
	s.clients[id] = client
	s.mu.Unlock()

	log.Printf("[SSE] connected %s from %s", id, r.RemoteAddr)
	defer func() {
		s.mu.Lock()
		if s.clients[id] == client {
			delete(s.clients, id)
		}
		s.mu.Unlock()
		log.Printf("[SSE] disconnected %s", id)
	}()

	if err := writeEvent(w, flusher, map[string]interface{}{
		"type":      "connected",
		"client_id": id,
		"time":      time.Now().Format(time.RFC3339),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg := <-client.send:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			err := writeEvent(w, flusher, map[string]interface{}{
				"type": "ping",
				"time": time.Now().Format(time.RFC3339),
			})
			if err != nil {
				log.Printf("[SSE] ping failed for %s: %v", id, err)
				return
			}
		case <-client.done:
			return
		case <-r.Context().Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// Notify queues an event for every matching client. Slow clients lose
// events rather than block the publisher.
func (s *SSEServer) Notify(_ context.Context, ev notification.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, c := range s.clients {
		if c.account != "" && c.account != ev.AccountNumber {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("[SSE] dropped %s event for slow client %s", ev.Type, id)
		}
	}
	return nil
}

func (s *SSEServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *SSEServer) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[string]*SSEClient)
	s.mu.Unlock()
}
