package pending

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreStore_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()

	client, err := firestore.NewClient(ctx, "finance-bot-test")
	require.NoError(t, err)
	defer client.Close()

	s := NewFirestoreStore(client, "pending_cache_test")
	clock := &fakeClock{t: time.Now()}
	s.now = clock.Now

	key := Key{Namespace: NamespaceEntry, ID: "emulator-" + time.Now().Format("150405.000000")}
	require.NoError(t, s.Put(ctx, key, []byte(`{"id":"x"}`), time.Hour))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"x"}`, string(got))

	clock.Advance(time.Hour)
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Remove(ctx, key))
	require.NoError(t, s.Remove(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}
