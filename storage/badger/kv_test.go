package badger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/ragquota/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValueStore_GetPutDelete(t *testing.T) {
	kv, _, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	_, err = kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, kv.Put(ctx, "a", []byte("1")))
	value, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	require.NoError(t, kv.Put(ctx, "a", []byte("2")))
	value, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), value)

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting a missing key is not an error
	assert.NoError(t, kv.Delete(ctx, "a"))
}

func TestKeyValueStore_List(t *testing.T) {
	kv, vectors, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "document:b", []byte("{}")))
	require.NoError(t, kv.Put(ctx, "document:a", []byte("{}")))
	require.NoError(t, kv.Put(ctx, "quota:vector_count", storage.MarshalCount(3)))
	require.NoError(t, vectors.Upsert(ctx, record("v1", 1, 0)))

	keys, err := kv.List(ctx, "document:")
	require.NoError(t, err)
	assert.Equal(t, []string{"document:a", "document:b"}, keys)

	keys, err = kv.List(ctx, "nothing:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyValueStore_CancelledContext(t *testing.T) {
	kv, _, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = kv.Put(ctx, "a", []byte("1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyValueStore_Update(t *testing.T) {
	kv, _, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, kv.Update(ctx, "a", func(current []byte) ([]byte, error) {
		assert.Nil(t, current)
		return []byte("1"), nil
	}))
	value, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	boom := errors.New("boom")
	assert.ErrorIs(t, kv.Update(ctx, "a", func([]byte) ([]byte, error) { return []byte("2"), boom }), boom)
	value, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	require.NoError(t, kv.Update(ctx, "a", func(current []byte) ([]byte, error) {
		assert.Equal(t, []byte("1"), current)
		return nil, nil
	}))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKeyValueStore_UpdateConcurrentWriters(t *testing.T) {
	kv, _, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	const writers = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, kv.Update(ctx, "counter", func(current []byte) ([]byte, error) {
				var n int64
				if current != nil {
					var err error
					if n, err = storage.UnmarshalCount(current); err != nil {
						return nil, err
					}
				}
				return storage.MarshalCount(n + 1), nil
			}))
		}()
	}
	wg.Wait()

	data, err := kv.Get(ctx, "counter")
	require.NoError(t, err)
	n, err := storage.UnmarshalCount(data)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), n)
}
