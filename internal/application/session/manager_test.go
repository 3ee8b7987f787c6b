package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slide-content-api/internal/config"
	"slide-content-api/internal/domain/entity"
)

// memStore 内存实现，未命中语义与 Redis 缓存一致
type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = b
	return nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func newManager(max int) *Manager {
	return NewManager(config.SessionConfig{MaxSlides: max, TTL: time.Hour}, newMemStore())
}

func TestManagerEmptyHistory(t *testing.T) {
	m := newManager(5)

	history, err := m.History(context.Background(), "deck-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	summary, err := m.ContextSummary(context.Background(), "deck-1")
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestManagerAppendAndRead(t *testing.T) {
	m := newManager(5)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "deck-1", entity.SlideSummary{Topic: "Intro", Summary: "What the product does"}))
	require.NoError(t, m.Append(ctx, "deck-1", entity.SlideSummary{Topic: "Market"}))

	history, err := m.History(ctx, "deck-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].SlideNumber)
	assert.Equal(t, 2, history[1].SlideNumber)
	assert.False(t, history[0].CreatedAt.IsZero())

	text, err := m.ContextSummary(ctx, "deck-1")
	require.NoError(t, err)
	assert.Contains(t, text, "slide 1: Intro")
	assert.Contains(t, text, "What the product does")
	assert.Contains(t, text, "slide 2: Market")
}

func TestManagerBoundedHistoryDropsOldest(t *testing.T) {
	m := newManager(3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, m.Append(ctx, "deck-1", entity.SlideSummary{
			SlideNumber: i,
			Topic:       "Topic",
		}))
	}

	history, err := m.History(ctx, "deck-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].SlideNumber)
	assert.Equal(t, 5, history[2].SlideNumber)
}

func TestManagerIsolatesPresentations(t *testing.T) {
	m := newManager(5)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "deck-1", entity.SlideSummary{Topic: "A"}))
	require.NoError(t, m.Append(ctx, "deck-2", entity.SlideSummary{Topic: "B"}))

	h1, err := m.History(ctx, "deck-1")
	require.NoError(t, err)
	h2, err := m.History(ctx, "deck-2")
	require.NoError(t, err)

	require.Len(t, h1, 1)
	require.Len(t, h2, 1)
	assert.Equal(t, "A", h1[0].Topic)
	assert.Equal(t, "B", h2[0].Topic)
}

func TestManagerClear(t *testing.T) {
	m := newManager(5)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "deck-1", entity.SlideSummary{Topic: "A"}))
	require.NoError(t, m.Clear(ctx, "deck-1"))

	history, err := m.History(ctx, "deck-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestManagerCorruptHistoryTreatedAsEmpty(t *testing.T) {
	store := newMemStore()
	store.data[historyKey("deck-1")] = []byte("not json")
	m := NewManager(config.SessionConfig{MaxSlides: 5, TTL: time.Hour}, store)

	history, err := m.History(context.Background(), "deck-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
