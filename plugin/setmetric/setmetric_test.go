package setmetric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	sets map[string]map[string]struct{}
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{sets: make(map[string]map[string]struct{})}
}

func (f *fakeRedis) SAdd(ctx context.Context, key string, members ...interface{}) (int64, error) {
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	var added int64
	for _, m := range members {
		s := m.(string)
		if _, exists := set[s]; !exists {
			set[s] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (f *fakeRedis) SCard(ctx context.Context, key string) (int64, error) {
	return int64(len(f.sets[key])), nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := f.sets[k]; ok {
			delete(f.sets, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func TestSetMetricCardinalityAndReset(t *testing.T) {
	client := newFakeRedis()
	factory := NewFactory(client, "test-instance", time.Minute)
	metric := factory.Build("stats.s", "uniques", func() float64 { return 0 })

	require.NoError(t, metric.Process([]string{"alice"}))
	require.NoError(t, metric.Process([]string{"bob"}))
	require.NoError(t, metric.Process([]string{"alice"}))

	out := metric.Flush(10, 1000)
	require.Len(t, out, 1)
	assert.Equal(t, "stats.s.uniques.count", out[0].Name)
	assert.Equal(t, 2.0, out[0].Value)

	out2 := metric.Flush(10, 1010)
	assert.Equal(t, 0.0, out2[0].Value)
}

func TestSetMetricRejectsEmptyMember(t *testing.T) {
	client := newFakeRedis()
	factory := NewFactory(client, "", 0)
	metric := factory.Build("stats.s", "uniques", func() float64 { return 0 })
	assert.Error(t, metric.Process([]string{""}))
}

func TestFactoryMetricType(t *testing.T) {
	factory := NewFactory(newFakeRedis(), "", 0)
	assert.Equal(t, "s", factory.MetricType())
}
