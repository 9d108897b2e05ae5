package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemBackendRoundTrip(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "users/name/alice", []byte(`{"username":"alice"}`)))

	data, err := backend.Get(ctx, "users/name/alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice"}`, string(data))

	require.NoError(t, backend.Delete(ctx, "users/name/alice"))
	_, err = backend.Get(ctx, "users/name/alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemBackendGetMissing(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Get(context.Background(), "no/such/key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemBackendDeleteMissing(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, backend.Delete(context.Background(), "no/such/key"))
}

func TestFilesystemBackendIncr(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := backend.Incr(ctx, "seq/users")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFilesystemBackendSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := NewFilesystemBackend(dir)
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, "tasks/1", []byte(`{"todos":[]}`)))
	_, err = backend.Incr(ctx, "seq/users")
	require.NoError(t, err)

	reopened, err := NewFilesystemBackend(dir)
	require.NoError(t, err)

	data, err := reopened.Get(ctx, "tasks/1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"todos":[]}`, string(data))

	next, err := reopened.Incr(ctx, "seq/users")
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestMemoryBackendCopiesData(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	original := []byte("hello")
	require.NoError(t, backend.Put(ctx, "key", original))
	original[0] = 'X'

	data, err := backend.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	// Mutating the returned slice must not touch the stored copy.
	data[0] = 'Y'
	again, err := backend.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), again)
}
