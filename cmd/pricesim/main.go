// cmd/pricesim serves a simulated price stream for running alphabot without a live
// pool feed (FEED_SOURCE=ws).
//
// Messages use the feed wire format:
//
//	{"asset":"BTC.BTC","price":65012.5,"ts":"..."}
//
// Config (env vars):
//
//	PRICESIM_ADDR         listen address (default: ":9001")
//	PRICESIM_ASSETS       comma-separated ASSET:START_PRICE pairs (default: "BTC.BTC:65000")
//	PRICESIM_INTERVAL_MS  broadcast interval milliseconds (default: "1000")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alphabot/internal/marketdata/feed"
)

type asset struct {
	Name  string
	Price float64
}

// ---- Hub ----

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop
		}
	}
}

// ---- WebSocket handler ----

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[pricesim] upgrade error: %v", err)
			return
		}
		log.Printf("[pricesim] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[pricesim] client disconnected: %s", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ---- Generator ----

// walkPrice applies a random step of at most ±0.1%.
func walkPrice(rng *rand.Rand, price float64) float64 {
	pct := (rng.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

func runGenerator(h *hub, assets []asset, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for range ticker.C {
		for i := range assets {
			assets[i].Price = walkPrice(rng, assets[i].Price)
			b, err := json.Marshal(feed.PriceMessage{
				Asset: assets[i].Name,
				Price: assets[i].Price,
				TS:    time.Now().UTC(),
			})
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// ---- main ----

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[pricesim] starting price simulator...")

	addr := envOrDefault("PRICESIM_ADDR", ":9001")
	assets := parseAssets(envOrDefault("PRICESIM_ASSETS", "BTC.BTC:65000"))
	intervalMs := envIntOrDefault("PRICESIM_INTERVAL_MS", 1000)
	if len(assets) == 0 {
		log.Fatalf("[pricesim] no assets configured via PRICESIM_ASSETS")
	}
	log.Printf("[pricesim] assets: %+v, interval %dms", assets, intervalMs)

	h := newHub()
	go runGenerator(h, assets, time.Duration(intervalMs)*time.Millisecond)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"pricesim"}`)
	})

	log.Printf("[pricesim] listening on %s (ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[pricesim] server error: %v", err)
	}
}

// ---- helpers ----

func parseAssets(s string) []asset {
	var out []asset
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		seg := strings.SplitN(part, ":", 2)
		if len(seg) != 2 {
			log.Printf("[pricesim] skipping invalid asset spec: %q", part)
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(seg[1]), 64)
		if err != nil || price <= 0 {
			log.Printf("[pricesim] skipping asset with bad price: %q", part)
			continue
		}
		out = append(out, asset{Name: strings.TrimSpace(seg[0]), Price: price})
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
