package rediscache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tasks/internal/config"
	"tasks/internal/models"
)

type fakeStore struct {
	mu     sync.Mutex
	tasks  []models.Task
	nextID int64
	lists  int
	err    error
}

func (f *fakeStore) ListTasks(context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Task{}, f.tasks...), nil
}

func (f *fakeStore) CreateTask(_ context.Context, content string) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := models.ValidateContent(content); err != nil {
		return models.Task{}, err
	}
	f.nextID++
	task := models.Task{ID: f.nextID, Content: content}
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, id int64, done bool) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Done = done
			return f.tasks[i], nil
		}
	}
	return models.Task{}, models.ErrNotFound
}

func (f *fakeStore) DeleteTask(_ context.Context, id int64) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, task := range f.tasks {
		if task.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return task, nil
		}
	}
	return models.Task{}, models.ErrNotFound
}

func (f *fakeStore) Ping(context.Context) error { return f.err }

// blockingStore stalls the first ListTasks after it has read the rows,
// leaving room for a mutation before the result reaches the cache.
type blockingStore struct {
	*fakeStore
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		fakeStore: &fakeStore{},
		loaded:    make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (b *blockingStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := b.fakeStore.ListTasks(ctx)
	b.once.Do(func() {
		close(b.loaded)
		<-b.release
	})
	return tasks, err
}

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	gens map[string]int64
	err  error
}

func newMemKV() *memKV {
	return &memKV{
		data: map[string][]byte{},
		ttls: map[string]time.Duration{},
		gens: map[string]int64{},
	}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func (m *memKV) Incr(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.gens[key]++
	return nil
}

func (m *memKV) Generation(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.gens[key], nil
}

func (m *memKV) SetIfGeneration(_ context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.gens[genKey] != gen {
		return errStale
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func TestCachedStore_ListTasks(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	_, _ = store.CreateTask(ctx, "Default task")
	kv := newMemKV()
	cached := newCachedStore(store, kv, time.Minute, zap.NewNop())

	first, err := cached.ListTasks(ctx)
	require.NoError(t, err)
	second, err := cached.ListTasks(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.lists)
	assert.Equal(t, time.Minute, kv.ttls[ListKey])
}

func TestCachedStore_MutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	kv := newMemKV()
	cached := newCachedStore(store, kv, time.Minute, nil)

	_, err := cached.ListTasks(ctx)
	require.NoError(t, err)
	require.Contains(t, kv.data, ListKey)

	task, err := cached.CreateTask(ctx, "New task")
	require.NoError(t, err)
	assert.NotContains(t, kv.data, ListKey)

	tasks, err := cached.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Task{task}, tasks)

	_, err = cached.UpdateTask(ctx, task.ID, true)
	require.NoError(t, err)
	assert.NotContains(t, kv.data, ListKey)

	_, _ = cached.ListTasks(ctx)
	_, err = cached.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.NotContains(t, kv.data, ListKey)
}

func TestCachedStore_FailedMutationKeepsCache(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	cached := newCachedStore(&fakeStore{}, kv, time.Minute, nil)

	_, err := cached.ListTasks(ctx)
	require.NoError(t, err)

	_, err = cached.CreateTask(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = cached.UpdateTask(ctx, 7, true)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = cached.DeleteTask(ctx, 7)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Contains(t, kv.data, ListKey)
}

func TestCachedStore_CorruptedEntry(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	kv := newMemKV()
	kv.data[ListKey] = []byte("not json")
	cached := newCachedStore(store, kv, time.Minute, nil)

	tasks, err := cached.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, 1, store.lists)
	assert.JSONEq(t, `[]`, string(kv.data[ListKey]))
}

func TestCachedStore_MutationDuringListIsNotLost(t *testing.T) {
	ctx := context.Background()
	store := newBlockingStore()
	kv := newMemKV()
	cached := newCachedStore(store, kv, time.Minute, nil)

	type result struct {
		tasks []models.Task
		err   error
	}
	done := make(chan result, 1)
	go func() {
		tasks, err := cached.ListTasks(ctx)
		done <- result{tasks, err}
	}()

	select {
	case <-store.loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("list never reached the store")
	}

	task, err := cached.CreateTask(ctx, "Written mid list")
	require.NoError(t, err)
	close(store.release)

	var stale result
	select {
	case stale = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("list did not finish")
	}
	require.NoError(t, stale.err)
	assert.Empty(t, stale.tasks)
	assert.False(t, kv.has(ListKey), "list loaded before the create must not be cached")

	tasks, err := cached.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Task{task}, tasks)
	assert.True(t, kv.has(ListKey))
}

func TestCachedStore_GenerationBumpedOnMutation(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	cached := newCachedStore(&fakeStore{}, kv, time.Minute, nil)

	task, err := cached.CreateTask(ctx, "New task")
	require.NoError(t, err)
	_, err = cached.UpdateTask(ctx, task.ID, true)
	require.NoError(t, err)
	_, err = cached.DeleteTask(ctx, 99)
	require.Error(t, err)

	gen, err := kv.Generation(ctx, GenerationKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)
}

func TestCachedStore_CacheErrorsFallThrough(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	kv := newMemKV()
	kv.err = errors.New("cache down")
	cached := newCachedStore(store, kv, time.Minute, nil)

	task, err := cached.CreateTask(ctx, "New task")
	require.NoError(t, err)

	tasks, err := cached.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Task{task}, tasks)
}

func TestCachedStore_StoreErrorIsReturned(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	kv := newMemKV()
	cached := newCachedStore(store, kv, time.Minute, nil)

	_, err := cached.ListTasks(context.Background())
	assert.EqualError(t, err, "db down")
	assert.NotContains(t, kv.data, ListKey)
	assert.Error(t, cached.Ping(context.Background()))
}

func TestCachedStore_UnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	store := &fakeStore{}
	cached := NewWithClient(store, client, time.Minute, nil)
	ctx := context.Background()

	task, err := cached.CreateTask(ctx, "Default task")
	require.NoError(t, err)
	tasks, err := cached.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Task{task}, tasks)
	assert.NoError(t, cached.Close())
}

func TestNew_UnreachableRedis(t *testing.T) {
	_, err := New(&fakeStore{}, config.RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
