// Package redis implements store.Store on Redis with a circuit breaker.
// While the breaker is open, saves are held in a last-write-wins buffer and
// replayed once Redis is reachable again.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"alphabot/internal/breaker"
	"alphabot/internal/store"

	goredis "github.com/go-redis/redis/v8"
)

const defaultMaxPending = 1024

// Config configures the Redis store.
type Config struct {
	Addr       string // e.g. "localhost:6379"
	Password   string
	DB         int
	Prefix     string // key namespace, e.g. "alphabot:"
	TTL        time.Duration
	MaxPending int
}

// backend is the subset of Redis used by Store.
type backend interface {
	get(ctx context.Context, key string) ([]byte, error)
	set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	publish(ctx context.Context, channel string, msg []byte) error
	close() error
}

type clientBackend struct{ c *goredis.Client }

func (b clientBackend) get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	return v, err
}

func (b clientBackend) set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return b.c.Set(ctx, key, val, ttl).Err()
}

func (b clientBackend) publish(ctx context.Context, channel string, msg []byte) error {
	return b.c.Publish(ctx, channel, msg).Err()
}

func (b clientBackend) close() error { return b.c.Close() }

// Store is a Redis-backed store.Store.
type Store struct {
	be     backend
	cb     *breaker.Breaker
	prefix string
	ttl    time.Duration

	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	maxPend int

	// Callbacks
	OnBuffer func()          // called when a save is buffered
	OnFlush  func(count int) // called after buffered saves are replayed
}

// New connects to Redis and pings it.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return newStore(clientBackend{c: client}, cfg, breaker.New("redis", 5, 10*time.Second)), nil
}

func newStore(be backend, cfg Config, cb *breaker.Breaker) *Store {
	maxPend := cfg.MaxPending
	if maxPend <= 0 {
		maxPend = defaultMaxPending
	}
	s := &Store{
		be:      be,
		cb:      cb,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		pending: make(map[string][]byte),
		maxPend: maxPend,
	}
	// a missing key is not a Redis failure
	cb.IsFailure = func(err error) bool { return !errors.Is(err, store.ErrNotFound) }

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to breaker.State) {
		if prev != nil {
			prev(from, to)
		}
		if to == breaker.StateClosed {
			go s.Flush(context.Background())
		}
	}
	return s
}

// Breaker exposes the circuit breaker for health reporting.
func (s *Store) Breaker() *breaker.Breaker { return s.cb }

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	// a buffered save is newer than whatever Redis holds
	s.mu.Lock()
	if v, ok := s.pending[key]; ok {
		s.mu.Unlock()
		return append([]byte(nil), v...), nil
	}
	s.mu.Unlock()

	return breaker.Call(s.cb, func() ([]byte, error) {
		return s.be.get(ctx, s.prefix+key)
	})
}

// Save writes through the breaker. When the circuit is open the value is
// buffered and nil is returned.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	err := s.cb.Execute(func() error {
		return s.be.set(ctx, s.prefix+key, data, s.ttl)
	})
	if errors.Is(err, breaker.ErrOpen) {
		s.buffer(key, data)
		return nil
	}
	return err
}

// Publish sends msg on a pub/sub channel. Failures are not buffered.
func (s *Store) Publish(ctx context.Context, channel string, msg []byte) error {
	return s.cb.Execute(func() error {
		return s.be.publish(ctx, s.prefix+channel, msg)
	})
}

func (s *Store) buffer(key string, data []byte) {
	cp := append([]byte(nil), data...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[key]; !ok {
		if len(s.order) >= s.maxPend {
			// drop oldest key
			delete(s.pending, s.order[0])
			s.order = s.order[1:]
		}
		s.order = append(s.order, key)
	}
	s.pending[key] = cp

	if s.OnBuffer != nil {
		s.OnBuffer()
	}
}

// Flush replays buffered saves. Entries that fail again stay buffered.
func (s *Store) Flush(ctx context.Context) int {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return 0
	}
	keys := s.order
	vals := s.pending
	s.order = nil
	s.pending = make(map[string][]byte)
	s.mu.Unlock()

	flushed := 0
	for _, k := range keys {
		if err := s.be.set(ctx, s.prefix+k, vals[k], s.ttl); err != nil {
			log.Printf("[redis] flush %s: %v", k, err)
			s.requeue(k, vals[k])
			continue
		}
		flushed++
	}

	log.Printf("[redis] flushed %d buffered writes", flushed)
	if s.OnFlush != nil {
		s.OnFlush(flushed)
	}
	return flushed
}

// requeue restores a failed flush entry unless a newer save replaced it.
func (s *Store) requeue(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; ok {
		return
	}
	s.pending[key] = data
	s.order = append(s.order, key)
}

// PendingCount returns the number of keys waiting to be flushed.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) Close() error {
	s.Flush(context.Background())
	return s.be.close()
}
