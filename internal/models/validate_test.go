package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskRequest_Validate(t *testing.T) {
	t.Run("accepts content within bounds", func(t *testing.T) {
		for _, n := range []int{1, 15, 30} {
			err := CreateTaskRequest{Content: strings.Repeat("a", n)}.Validate()
			assert.NoError(t, err, "length %d", n)
		}
	})

	t.Run("rejects empty content", func(t *testing.T) {
		err := CreateTaskRequest{}.Validate()
		require.Error(t, err)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "content", verr.Field)
		assert.Equal(t, MsgContentEmpty, verr.Message)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("rejects content over 30 characters", func(t *testing.T) {
		err := CreateTaskRequest{Content: strings.Repeat("a", 31)}.Validate()
		require.Error(t, err)
		assert.Equal(t, MsgContentTooLong, err.Error())
	})

	t.Run("counts characters rather than bytes", func(t *testing.T) {
		assert.NoError(t, ValidateContent(strings.Repeat("ж", 30)))
		assert.Error(t, ValidateContent(strings.Repeat("ж", 31)))
	})
}

func TestUpdateTaskRequest_Validate(t *testing.T) {
	done := false
	assert.NoError(t, UpdateTaskRequest{Done: &done}.Validate())

	err := UpdateTaskRequest{}.Validate()
	require.Error(t, err)
	assert.Equal(t, "done is required", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestParseTask(t *testing.T) {
	t.Run("decodes a complete task", func(t *testing.T) {
		task, err := ParseTask([]byte(`{"id":1,"content":"Default task","done":false}`))
		require.NoError(t, err)
		assert.Equal(t, Task{ID: 1, Content: "Default task", Done: false}, task)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := ParseTask([]byte(`{"id":1,"content":"Default task"}`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("rejects wrong types", func(t *testing.T) {
		_, err := ParseTask([]byte(`{"id":"1","content":"x","done":false}`))
		assert.Error(t, err)
	})

	t.Run("rejects non-positive ids", func(t *testing.T) {
		_, err := ParseTask([]byte(`{"id":0,"content":"x","done":false}`))
		assert.Error(t, err)
	})
}

func TestParseTasks(t *testing.T) {
	tasks, err := ParseTasks([]byte(`[{"id":1,"content":"a","done":false},{"id":2,"content":"b","done":true}]`))
	require.NoError(t, err)
	assert.Equal(t, []Task{{ID: 1, Content: "a"}, {ID: 2, Content: "b", Done: true}}, tasks)

	empty, err := ParseTasks([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseTasks([]byte(`[{"id":1,"content":"a","done":false},{"id":2}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1")

	_, err = ParseTasks([]byte(`{"id":1}`))
	assert.Error(t, err)
}
