package taskcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tasks/internal/models"
)

// Phase is the observable state of the list query.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// Source is the remote API the cache mirrors.
type Source interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, content string) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, done bool) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) (models.Task, error)
}

// QueryState is a snapshot of the list query.
type QueryState struct {
	Phase Phase
	Tasks []models.Task
	Err   error
}

// Options tune the list fetch. Mutations are never retried.
type Options struct {
	Retries         int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          *zap.Logger
}

// DefaultOptions retries a failed fetch three times with exponential backoff.
func DefaultOptions() Options {
	return Options{
		Retries:         3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// QueryClient runs the list query and the three mutations against a Source
// and merges confirmed results into a Cache.
type QueryClient struct {
	source Source
	cache  *Cache
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	phase Phase
	err   error
}

// NewQueryClient creates a client with its own empty cache.
func NewQueryClient(source Source, opts Options) *QueryClient {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryClient{
		source: source,
		cache:  NewCache(),
		opts:   opts,
		logger: logger,
		phase:  PhaseLoading,
	}
}

// Cache exposes the underlying cache.
func (q *QueryClient) Cache() *Cache {
	return q.cache
}

// State returns the current phase together with a copy of the cached list.
func (q *QueryClient) State() QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks, _ := q.cache.Get(TasksKey)
	return QueryState{Phase: q.phase, Tasks: tasks, Err: q.err}
}

// Fetch loads the list, retrying according to Options, and stores the
// result. A failure moves the query to PhaseError and leaves any cached list
// in place.
func (q *QueryClient) Fetch(ctx context.Context) ([]models.Task, error) {
	attempt := 0
	op := func() ([]models.Task, error) {
		attempt++
		tasks, err := q.source.ListTasks(ctx)
		if err != nil && errors.Is(err, models.ErrInvalidInput) {
			// A malformed payload will not fix itself.
			return nil, backoff.Permanent(err)
		}
		return tasks, err
	}
	notify := func(err error, wait time.Duration) {
		q.logger.Debug("retrying task list fetch",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	tasks, err := backoff.RetryNotifyWithData(op, q.retryPolicy(ctx), notify)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.logger.Warn("task list fetch failed", zap.Int("attempts", attempt), zap.Error(err))
		q.phase = PhaseError
		q.err = err
		return nil, err
	}
	q.cache.Set(TasksKey, tasks)
	q.phase = PhaseReady
	q.err = nil
	return tasks, nil
}

func (q *QueryClient) retryPolicy(ctx context.Context) backoff.BackOff {
	retries := q.opts.Retries
	if retries < 0 {
		retries = 0
	}
	eb := backoff.NewExponentialBackOff()
	if q.opts.InitialInterval > 0 {
		eb.InitialInterval = q.opts.InitialInterval
	}
	if q.opts.MaxInterval > 0 {
		eb.MaxInterval = q.opts.MaxInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// Create adds a task and appends the server's copy to the cache.
func (q *QueryClient) Create(ctx context.Context, content string) (models.Task, error) {
	task, err := q.source.CreateTask(ctx, content)
	if err != nil {
		return models.Task{}, q.mutationFailed("create", err)
	}
	q.cache.Append(TasksKey, task)
	return task, nil
}

// Update sets done on a task and replaces the cached entry with the server's
// copy.
func (q *QueryClient) Update(ctx context.Context, id int64, done bool) (models.Task, error) {
	task, err := q.source.UpdateTask(ctx, id, done)
	if err != nil {
		return models.Task{}, q.mutationFailed("update", err)
	}
	q.cache.ReplaceByID(TasksKey, task)
	return task, nil
}

// Toggle flips done on task.
func (q *QueryClient) Toggle(ctx context.Context, task models.Task) (models.Task, error) {
	return q.Update(ctx, task.ID, !task.Done)
}

// Delete removes a task and drops the confirmed id from the cache.
func (q *QueryClient) Delete(ctx context.Context, id int64) (models.Task, error) {
	task, err := q.source.DeleteTask(ctx, id)
	if err != nil {
		return models.Task{}, q.mutationFailed("delete", err)
	}
	q.cache.RemoveByID(TasksKey, task.ID)
	return task, nil
}

// Reset forgets all cached data and returns the query to PhaseLoading.
func (q *QueryClient) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cache.Clear()
	q.phase = PhaseLoading
	q.err = nil
}

func (q *QueryClient) mutationFailed(op string, err error) error {
	q.logger.Warn("task mutation failed", zap.String("op", op), zap.Error(err))
	return err
}
