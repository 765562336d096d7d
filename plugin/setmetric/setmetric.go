// Package setmetric implements a StatsD "set" metric (unique-value
// cardinality per flush interval) as a processor.Factory/processor.Metric
// pair.
// Sets are a type the canonical StatsD protocol defines that the core
// four accumulators (spec.md) deliberately omit; this package
// demonstrates the plugin extension surface with an accumulator that
// carries external, durable state instead of volatile in-process state.
package setmetric

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bicycleday/gostatsd/processor"
	"github.com/bicycleday/gostatsd/stats"
)

// RedisSetClient abstracts the minimal surface this plugin needs from a
// Redis client, so tests can substitute a fake without a real server.
// Use NewGoRedisAdapter to satisfy this from a *redis.Client.
type RedisSetClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) (int64, error)
	SCard(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// GoRedisAdapter adapts a *redis.Client's *Cmd-returning methods to the
// plain (value, error) shape RedisSetClient expects.
type GoRedisAdapter struct {
	Client *redis.Client
}

// NewGoRedisAdapter wraps client for use as a RedisSetClient.
func NewGoRedisAdapter(client *redis.Client) *GoRedisAdapter {
	return &GoRedisAdapter{Client: client}
}

func (a *GoRedisAdapter) SAdd(ctx context.Context, key string, members ...interface{}) (int64, error) {
	return a.Client.SAdd(ctx, key, members...).Result()
}

func (a *GoRedisAdapter) SCard(ctx context.Context, key string) (int64, error) {
	return a.Client.SCard(ctx, key).Result()
}

func (a *GoRedisAdapter) Del(ctx context.Context, keys ...string) (int64, error) {
	return a.Client.Del(ctx, keys...).Result()
}

func (a *GoRedisAdapter) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return a.Client.Expire(ctx, key, ttl).Result()
}

// WireType is the message-type token this plugin registers for ("pf" as
// in "population flush" would collide with common usage; StatsD sets use
// "s" on the wire).
const WireType = "s"

// Factory builds Metric instances backed by redis. instanceID namespaces
// keys so two aggregator processes sharing one Redis backend don't
// collide; markerTTL bounds how long an idle set's Redis key survives a
// gap between flushes.
type Factory struct {
	Client     RedisSetClient
	InstanceID string
	MarkerTTL  time.Duration
}

// NewFactory constructs a Factory with a generated instance ID when one
// isn't supplied.
func NewFactory(client RedisSetClient, instanceID string, markerTTL time.Duration) *Factory {
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &Factory{Client: client, InstanceID: instanceID, MarkerTTL: markerTTL}
}

func (f *Factory) MetricType() string { return WireType }

func (f *Factory) Build(prefix, key string, clock stats.Clock) processor.Metric {
	return &Metric{
		client:   f.Client,
		redisKey: fmt.Sprintf("gostatsd:%s:set:%s", f.InstanceID, key),
		ttl:      f.MarkerTTL,
		prefix:   prefix,
		key:      key,
	}
}

// Metric accumulates set members for one key between flushes, keeping
// membership in Redis under a key that includes the factory's instance
// ID. A restarted process with a new instance ID writes to a new Redis
// key and does not see the members recorded before the restart.
type Metric struct {
	client   RedisSetClient
	redisKey string
	ttl      time.Duration
	prefix   string
	key      string
}

// Process adds fields[0] (the set member) to the backing Redis set.
func (m *Metric) Process(fields []string) error {
	if len(fields) == 0 || fields[0] == "" {
		return fmt.Errorf("setmetric: empty member for key %q", m.key)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := m.client.SAdd(ctx, m.redisKey, fields[0]); err != nil {
		return fmt.Errorf("setmetric: SAdd %s: %w", m.redisKey, err)
	}
	if _, err := m.client.Expire(ctx, m.redisKey, m.ttl); err != nil {
		return fmt.Errorf("setmetric: Expire %s: %w", m.redisKey, err)
	}
	return nil
}

// Flush reports the set's current cardinality and clears it for the next
// interval, matching the core accumulators' reset-on-flush semantics.
func (m *Metric) Flush(intervalSeconds float64, ts int64) []stats.Sample {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := m.client.SCard(ctx, m.redisKey)
	if err != nil {
		count = 0
	}
	m.client.Del(ctx, m.redisKey)

	return []stats.Sample{{
		Name:      m.prefix + "." + m.key + ".count",
		Value:     float64(count),
		Timestamp: ts,
	}}
}
