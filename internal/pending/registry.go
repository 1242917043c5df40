package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/google/uuid"
)

// Lifetimes of pending state.
const (
	EntryTTL    = 6 * time.Hour
	EditModeTTL = 1 * time.Hour
)

// Entry is a validated record waiting for the user to confirm it.
type Entry struct {
	ID              string           `json:"id"`
	ChatID          int64            `json:"chat_id"`
	Record          domain.Candidate `json:"record"`
	OriginTimestamp time.Time        `json:"origin_timestamp"`
	ExpiresAt       time.Time        `json:"expires_at"`
}

// EditMarker says the next message in a chat is an edit instruction for
// the referenced entry.
type EditMarker struct {
	EntryID string           `json:"entry_id"`
	Record  domain.Candidate `json:"record"`
}

// Registry gives typed access to entries and edit markers on top of a Store.
type Registry struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewRegistry creates a registry on store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

func entryKey(id string) Key { return Key{Namespace: NamespaceEntry, ID: id} }

func editKey(chatID int64) Key {
	return Key{Namespace: NamespaceEditMode, ID: strconv.FormatInt(chatID, 10)}
}

// Create stores a new entry with a fresh id.
func (r *Registry) Create(ctx context.Context, chatID int64, record domain.Candidate, origin time.Time) (*Entry, error) {
	e := &Entry{
		ID:              r.newID(),
		ChatID:          chatID,
		Record:          record,
		OriginTimestamp: origin,
		ExpiresAt:       r.now().Add(EntryTTL),
	}
	if err := r.put(ctx, entryKey(e.ID), e, EntryTTL); err != nil {
		return nil, fmt.Errorf("Registry.Create: %w", err)
	}
	return e, nil
}

// Entry returns the entry with id, or an error wrapping
// domain.ErrStaleReference if it has expired or was resolved.
func (r *Registry) Entry(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	if err := r.get(ctx, entryKey(id), &e); err != nil {
		return nil, fmt.Errorf("Registry.Entry: %w", err)
	}
	return &e, nil
}

// ReplaceRecord swaps the record of an entry, keeping its id, origin
// timestamp and original expiry.
func (r *Registry) ReplaceRecord(ctx context.Context, id string, record domain.Candidate) (*Entry, error) {
	e, err := r.Entry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Registry.ReplaceRecord: %w", err)
	}
	remaining := e.ExpiresAt.Sub(r.now())
	if remaining <= 0 {
		return nil, fmt.Errorf("Registry.ReplaceRecord: %w: entry %s", domain.ErrStaleReference, id)
	}

	e.Record = record
	if err := r.put(ctx, entryKey(id), e, remaining); err != nil {
		return nil, fmt.Errorf("Registry.ReplaceRecord: %w", err)
	}
	return e, nil
}

// Remove deletes an entry.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.store.Remove(ctx, entryKey(id)); err != nil {
		return fmt.Errorf("Registry.Remove: %w", err)
	}
	return nil
}

// EnterEditMode marks chatID as editing the given entry.
func (r *Registry) EnterEditMode(ctx context.Context, chatID int64, m EditMarker) error {
	if err := r.put(ctx, editKey(chatID), m, EditModeTTL); err != nil {
		return fmt.Errorf("Registry.EnterEditMode: %w", err)
	}
	return nil
}

// EditMode returns the chat's edit marker. ok is false when the chat is not
// editing.
func (r *Registry) EditMode(ctx context.Context, chatID int64) (m *EditMarker, ok bool, err error) {
	var marker EditMarker
	err = r.get(ctx, editKey(chatID), &marker)
	if errors.Is(err, domain.ErrStaleReference) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Registry.EditMode: %w", err)
	}
	return &marker, true, nil
}

// LeaveEditMode removes the chat's edit marker.
func (r *Registry) LeaveEditMode(ctx context.Context, chatID int64) error {
	if err := r.store.Remove(ctx, editKey(chatID)); err != nil {
		return fmt.Errorf("Registry.LeaveEditMode: %w", err)
	}
	return nil
}

func (r *Registry) put(ctx context.Context, key Key, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.store.Put(ctx, key, b, ttl)
}

func (r *Registry) get(ctx context.Context, key Key, v interface{}) error {
	b, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrStaleReference, key)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
