package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"alphabot/internal/model"
	"alphabot/internal/series"
)

func TestPoolFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/pool/BTC.BTC":
			w.Write([]byte(`{"asset":"BTC.BTC","assetPriceUSD":"65012.25","status":"available"}`))
		case "/v2/pool/BAD.BAD":
			w.Write([]byte(`{"asset":"BAD.BAD","assetPriceUSD":"n/a"}`))
		case "/v2/pool/ZERO.ZERO":
			w.Write([]byte(`{"asset":"ZERO.ZERO","assetPriceUSD":"0"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewPoolFeed(srv.URL + "/")
	ctx := context.Background()

	price, err := f.GetLatestPrice(ctx, "BTC.BTC")
	if err != nil || price != 65012.25 {
		t.Fatalf("expected 65012.25, got %v err=%v", price, err)
	}
	for _, asset := range []string{"BAD.BAD", "ZERO.ZERO", "ETH.ETH"} {
		if _, err := f.GetLatestPrice(ctx, asset); !errors.Is(err, ErrFeedUnavailable) {
			t.Errorf("%s: expected ErrFeedUnavailable, got %v", asset, err)
		}
	}
}

func TestPoolFeed_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewPoolFeed(srv.URL)
	for i := 0; i < 8; i++ {
		if _, err := f.GetLatestPrice(context.Background(), "BTC.BTC"); !errors.Is(err, ErrFeedUnavailable) {
			t.Fatalf("call %d: expected ErrFeedUnavailable, got %v", i, err)
		}
	}
	if n := calls.Load(); n != 5 {
		t.Errorf("expected breaker to stop calls after 5 failures, got %d", n)
	}
}

func TestCoinGecko(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/simple/price" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("ids") == "bitcoin" && r.URL.Query().Get("vs_currencies") == "usd" {
			w.Write([]byte(`{"bitcoin":{"usd":64990.5}}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(srv.URL, "USD")
	price, err := c.GetLatestPrice(context.Background(), "bitcoin")
	if err != nil || price != 64990.5 {
		t.Fatalf("expected 64990.5, got %v err=%v", price, err)
	}
	if _, err := c.GetLatestPrice(context.Background(), "dogecoin"); !errors.Is(err, ErrFeedUnavailable) {
		t.Errorf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestWSFeed_StreamsAndGoesStale(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		conn.WriteJSON(PriceMessage{Asset: "BTC.BTC", Price: 65000})
		conn.WriteJSON(PriceMessage{Asset: "BTC.BTC", Price: 65100})
		// hold the connection open until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	f, err := NewWSFeed(WSConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), MaxAge: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	now := time.Now()
	f.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	var price float64
	for time.Now().Before(deadline) {
		price, err = f.GetLatestPrice(ctx, "BTC.BTC")
		if err == nil && price == 65100 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if price != 65100 {
		t.Fatalf("expected streamed price 65100, got %v err=%v", price, err)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	if _, err := f.GetLatestPrice(ctx, "BTC.BTC"); !errors.Is(err, ErrFeedUnavailable) {
		t.Errorf("expected stale price to be unavailable, got %v", err)
	}
	if _, err := f.GetLatestPrice(ctx, "ETH.ETH"); !errors.Is(err, ErrFeedUnavailable) {
		t.Errorf("expected unknown asset unavailable, got %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

type scriptedFeed struct {
	prices []float64
	errs   []error
	i      int
}

func (s *scriptedFeed) GetLatestPrice(context.Context, string) (float64, error) {
	i := s.i
	s.i++
	if s.errs[i] != nil {
		return 0, s.errs[i]
	}
	return s.prices[i], nil
}

func TestPoller_DropsFailedTicks(t *testing.T) {
	feed := &scriptedFeed{
		prices: []float64{100, 0, 102},
		errs:   []error{nil, ErrFeedUnavailable, nil},
	}
	store := series.New(16)
	p := NewPoller(feed, store, "BTC.BTC", time.Minute)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	p.now = func() time.Time {
		step++
		return start.Add(time.Duration(step) * time.Minute)
	}
	var ticks, errs int
	p.OnTick = func(model.Tick) { ticks++ }
	p.OnError = func(error) { errs++ }

	for i := 0; i < 3; i++ {
		p.Poll(context.Background())
	}

	if ticks != 2 || errs != 1 {
		t.Errorf("expected 2 ticks and 1 error, got %d and %d", ticks, errs)
	}
	got := store.Window(model.TF1m, 0)
	if len(got) != 2 || got[0] != 100 || got[1] != 102 {
		t.Errorf("unexpected base series %v", got)
	}
}
