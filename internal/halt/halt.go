// Package halt reports whether trading is currently halted. Callers treat
// an error from IsTradingHalted the same as a halt.
package halt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Flag is the halt signal port.
type Flag interface {
	IsTradingHalted(ctx context.Context) (bool, error)
}

// Manual is an operator-controlled halt switch.
type Manual struct {
	halted atomic.Bool
}

func (m *Manual) IsTradingHalted(context.Context) (bool, error) { return m.halted.Load(), nil }

// Halt sets the flag.
func (m *Manual) Halt() { m.halted.Store(true) }

// Resume clears the flag.
func (m *Manual) Resume() { m.halted.Store(false) }

// MimirKey is the network-wide trading halt key.
const MimirKey = "HALTTHORCHAIN"

// Mimir polls a THORNode mimir endpoint. The network is halted when the key
// is absent or non-zero.
type Mimir struct {
	url    string
	key    string
	client *http.Client
}

// NewMimir creates a halt flag reading GET {baseURL}/thorchain/mimir.
func NewMimir(baseURL string) *Mimir {
	return &Mimir{
		url:    strings.TrimRight(baseURL, "/") + "/thorchain/mimir",
		key:    MimirKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *Mimir) IsTradingHalted(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return true, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("mimir request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return true, fmt.Errorf("mimir status %d", resp.StatusCode)
	}

	var values map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		return true, fmt.Errorf("mimir decode: %w", err)
	}
	v, ok := values[m.key]
	if !ok {
		return true, nil
	}
	n, err := v.Float64()
	if err != nil {
		return true, fmt.Errorf("mimir %s: %w", m.key, err)
	}
	return n != 0, nil
}

// RedisFlag reads a halt key from Redis. A missing key means not halted; any
// value other than "", "0" or "false" means halted.
type RedisFlag struct {
	client *goredis.Client
	key    string
}

// NewRedisFlag creates a Redis-backed halt flag.
func NewRedisFlag(client *goredis.Client, key string) *RedisFlag {
	return &RedisFlag{client: client, key: key}
}

func (r *RedisFlag) IsTradingHalted(ctx context.Context) (bool, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("redis halt flag: %w", err)
	}
	return parseFlag(v), nil
}

func parseFlag(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n != 0
	}
	return true
}

// Any is halted when any of its flags reports halted or fails.
type Any []Flag

func (a Any) IsTradingHalted(ctx context.Context) (bool, error) {
	for _, f := range a {
		halted, err := f.IsTradingHalted(ctx)
		if err != nil {
			return true, err
		}
		if halted {
			return true, nil
		}
	}
	return false, nil
}
