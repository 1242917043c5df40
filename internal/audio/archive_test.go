package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectStore is a mock implementation of ObjectStore.
type fakeObjectStore struct {
	objects   map[string][]byte
	types     map[string]string
	writeFunc func(ctx context.Context, bucket, object, contentType string, data []byte) error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStore) Write(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if f.writeFunc != nil {
		return f.writeFunc(ctx, bucket, object, contentType, data)
	}
	f.objects[bucket+"/"+object] = data
	f.types[bucket+"/"+object] = contentType
	return nil
}

func (f *fakeObjectStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func TestArchive_ObjectNameUsesLocalDate(t *testing.T) {
	argentina := time.FixedZone("ART", -3*60*60)
	a := NewArchive(newFakeObjectStore(), "voces", argentina)

	// 02:00 UTC on the 16th is still the 15th in Buenos Aires.
	at := time.Date(2024, 1, 16, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, "voice/4242/2024-01-15/6.ogg", a.ObjectName(4242, 6, at))

	utc := NewArchive(newFakeObjectStore(), "voces", nil)
	assert.Equal(t, "voice/4242/2024-01-16/6.ogg", utc.ObjectName(4242, 6, at))
}

func TestArchive_ArchiveAndFetch(t *testing.T) {
	store := newFakeObjectStore()
	a := NewArchive(store, "voces", time.UTC)
	ctx := context.Background()

	uri, err := a.Archive(ctx, 4242, 6, time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC), []byte("OggS"))
	require.NoError(t, err)
	assert.Equal(t, "gs://voces/voice/4242/2024-01-16/6.ogg", uri)
	assert.Equal(t, "audio/ogg", store.types["voces/voice/4242/2024-01-16/6.ogg"])

	data, err := a.Fetch(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS"), data)
	assert.Equal(t, "6.ogg", Filename(uri))
}

func TestArchive_WriteError(t *testing.T) {
	store := newFakeObjectStore()
	store.writeFunc = func(ctx context.Context, bucket, object, contentType string, data []byte) error {
		return errors.New("permission denied")
	}
	a := NewArchive(store, "voces", time.UTC)

	_, err := a.Archive(context.Background(), 1, 2, time.Now(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://voces/voice/1/2024-01-16/5.ogg", "voces", "voice/1/2024-01-16/5.ogg", false},
		{"gs://voces", "", "", true},
		{"gs://voces/", "", "", true},
		{"s3://voces/a.ogg", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}
