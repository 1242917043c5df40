package pending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.Now
	return s, clock
}

func TestMemoryStore_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	key := Key{Namespace: NamespaceEntry, ID: "abc"}

	require.NoError(t, s.Put(ctx, key, []byte("v1"), time.Minute))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	// Last write wins.
	require.NoError(t, s.Put(ctx, key, []byte("v2"), time.Minute))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, s.Remove(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Remove(ctx, key))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStore()
	key := Key{Namespace: NamespaceEditMode, ID: "42"}

	require.NoError(t, s.Put(ctx, key, []byte("x"), time.Hour))

	clock.Advance(59 * time.Minute)
	_, err := s.Get(ctx, key)
	assert.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())

	// Expired items are purged on the next write.
	require.NoError(t, s.Put(ctx, Key{Namespace: NamespaceEntry, ID: "other"}, []byte("y"), time.Hour))
	assert.Len(t, s.items, 1)
}

func TestMemoryStore_NamespacesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	entry := Key{Namespace: NamespaceEntry, ID: "42"}
	edit := Key{Namespace: NamespaceEditMode, ID: "42"}

	require.NoError(t, s.Put(ctx, entry, []byte("entry"), time.Hour))
	require.NoError(t, s.Put(ctx, edit, []byte("edit"), time.Hour))

	got, err := s.Get(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, "entry", string(got))

	got, err = s.Get(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "edit", string(got))
	assert.Equal(t, "expense_42", entry.String())
	assert.Equal(t, "edit_mode_42", edit.String())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	key := Key{Namespace: NamespaceEntry, ID: "abc"}

	value := []byte("original")
	require.NoError(t, s.Put(ctx, key, value, time.Hour))
	value[0] = 'X'

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	got[1] = 'Y'

	again, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}

func TestMemoryStore_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	assert.Error(t, s.Put(ctx, Key{Namespace: NamespaceEntry}, []byte("x"), time.Hour))
	assert.Error(t, s.Put(ctx, Key{Namespace: NamespaceEntry, ID: "a"}, []byte("x"), 0))
}
