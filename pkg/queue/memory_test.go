package queue

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_EnqueueReceive(t *testing.T) {
	q := NewMemoryQueue()

	require.NoError(t, q.Enqueue(t.Context(), []byte("first")))
	require.NoError(t, q.Enqueue(t.Context(), []byte("second")))

	messages, err := q.Receive(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "first", string(messages[0].Payload))
	assert.Equal(t, "second", string(messages[1].Payload))
	assert.Equal(t, 0, q.Pending())
}

func TestMemoryQueue_ReceiveRespectsMax(t *testing.T) {
	q := NewMemoryQueue()

	for i := range 5 {
		require.NoError(t, q.Enqueue(t.Context(), []byte(strconv.Itoa(i))))
	}

	messages, err := q.Receive(t.Context(), 2)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, 3, q.Pending())
}

func TestMemoryQueue_ReceiveClampsToBatchCeiling(t *testing.T) {
	q := NewMemoryQueue()

	for i := range MaxReceiveBatch + 5 {
		require.NoError(t, q.Enqueue(t.Context(), []byte(strconv.Itoa(i))))
	}

	messages, err := q.Receive(t.Context(), MaxReceiveBatch+5)
	require.NoError(t, err)
	assert.Len(t, messages, MaxReceiveBatch)
	assert.Equal(t, 5, q.Pending())
}

func TestMemoryQueue_ReceiveEmpty(t *testing.T) {
	q := NewMemoryQueue()

	messages, err := q.Receive(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMemoryQueue_Delete(t *testing.T) {
	q := NewMemoryQueue()

	require.NoError(t, q.Enqueue(t.Context(), []byte("payload")))

	messages, err := q.Receive(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.NoError(t, q.Delete(t.Context(), messages[0]))
	assert.Equal(t, 0, q.Pending())
}
