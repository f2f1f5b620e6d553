// Package taskcache holds the client's copy of the task list and keeps it in
// step with confirmed server results.
package taskcache

import (
	"slices"
	"sync"

	"tasks/internal/models"
)

// Key identifies a cached query result.
type Key string

// TasksKey is the key of the full task list.
const TasksKey Key = "tasks"

// Cache stores query results by key. Values are copied on the way in and on
// the way out so callers can never alias cached state.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key][]models.Task
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key][]models.Task)}
}

// Get returns a copy of the value under key and whether one is present.
func (c *Cache) Get(key Key) ([]models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tasks, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return clone(tasks), true
}

// Set replaces the value under key.
func (c *Cache) Set(key Key, tasks []models.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = clone(tasks)
}

// Remove drops key entirely.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every key.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Append adds task to the end of the list under key. It does nothing and
// returns false when no list has been loaded yet.
func (c *Cache) Append(key Key, task models.Task) bool {
	return c.update(key, func(tasks []models.Task) []models.Task {
		return append(tasks, task)
	})
}

// ReplaceByID swaps the entry whose id matches task.ID. Other entries keep
// their values and positions.
func (c *Cache) ReplaceByID(key Key, task models.Task) bool {
	return c.update(key, func(tasks []models.Task) []models.Task {
		for i := range tasks {
			if tasks[i].ID == task.ID {
				tasks[i] = task
			}
		}
		return tasks
	})
}

// RemoveByID drops the entry with the given id.
func (c *Cache) RemoveByID(key Key, id int64) bool {
	return c.update(key, func(tasks []models.Task) []models.Task {
		return slices.DeleteFunc(tasks, func(t models.Task) bool {
			return t.ID == id
		})
	})
}

func (c *Cache) update(key Key, fn func([]models.Task) []models.Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks, ok := c.entries[key]
	if !ok {
		return false
	}
	c.entries[key] = fn(clone(tasks))
	return true
}

func clone(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)
	return out
}
