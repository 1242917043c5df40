package pending

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the Firestore collection used for pending state.
// A TTL policy on expiresAt lets Firestore delete expired documents; reads
// check the expiry themselves because that deletion is not immediate.
const DefaultCollection = "pending_cache"

type firestoreItem struct {
	Value     []byte    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// FirestoreStore implements Store on a Firestore collection, one document
// per key.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore creates a store on collection (DefaultCollection if empty).
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreStore{client: client, collection: collection, now: time.Now}
}

func (s *FirestoreStore) doc(key Key) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(key.String())
}

// Put writes value with its expiry, replacing any previous document.
func (s *FirestoreStore) Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if key.ID == "" {
		return fmt.Errorf("FirestoreStore.Put: key ID is required")
	}
	item := firestoreItem{Value: value, ExpiresAt: s.now().Add(ttl)}
	if _, err := s.doc(key).Set(ctx, item); err != nil {
		return fmt.Errorf("FirestoreStore.Put: set %s: %w", key, err)
	}
	return nil
}

// Get reads value, returning ErrNotFound for missing or expired documents.
func (s *FirestoreStore) Get(ctx context.Context, key Key) ([]byte, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FirestoreStore.Get: get %s: %w", key, err)
	}

	var item firestoreItem
	if err := snap.DataTo(&item); err != nil {
		return nil, fmt.Errorf("FirestoreStore.Get: decode %s: %w", key, err)
	}
	if !s.now().Before(item.ExpiresAt) {
		return nil, ErrNotFound
	}
	return item.Value, nil
}

// Remove deletes the document. Deleting a missing document succeeds.
func (s *FirestoreStore) Remove(ctx context.Context, key Key) error {
	if _, err := s.doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("FirestoreStore.Remove: delete %s: %w", key, err)
	}
	return nil
}
