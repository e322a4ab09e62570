package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myhomeneeds/apperr"
)

type dish struct {
	ID        string    `bson:"_id"`
	CookID    string    `bson:"cookId"`
	Name      string    `bson:"name"`
	Status    status    `bson:"status"`
	CreatedAt time.Time `bson:"createdAt"`
}

type status string

func TestMemoryCreateGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Create(ctx, "dishes", dish{CookID: "c1", Name: "dal"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var got dish
	require.NoError(t, m.Get(ctx, "dishes", id, &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "dal", got.Name)

	err = m.Get(ctx, "dishes", "missing", &got)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestMemoryQueryFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"a", "b", "c"} {
		_, err := m.Create(ctx, "dishes", dish{CookID: "c1", Name: name, Status: "open", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	_, err := m.Create(ctx, "dishes", dish{CookID: "c2", Name: "z", Status: "open", CreatedAt: base})
	require.NoError(t, err)

	var got []dish
	require.NoError(t, m.Query(ctx, Query{
		Collection: "dishes",
		Filters:    []Filter{Eq("cookId", "c1"), Eq("status", status("open"))},
		SortDesc:   "createdAt",
	}, &got))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].Name, got[1].Name, got[2].Name})

	var none []dish
	require.NoError(t, m.Query(ctx, Query{Collection: "dishes", Filters: []Filter{Eq("cookId", "nobody")}}, &none))
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryUpdatePrecondition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.Create(ctx, "dishes", dish{Status: "pending"})
	require.NoError(t, err)

	require.NoError(t, m.Update(ctx, "dishes", id, map[string]any{"status": "accepted"}, Eq("status", "pending")))

	err = m.Update(ctx, "dishes", id, map[string]any{"status": "declined"}, Eq("status", "pending"))
	assert.True(t, apperr.IsKind(err, apperr.Conflict))

	err = m.Update(ctx, "dishes", "missing", map[string]any{"status": "x"})
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	var got dish
	require.NoError(t, m.Get(ctx, "dishes", id, &got))
	assert.Equal(t, status("accepted"), got.Status)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.Create(ctx, "dishes", dish{})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "dishes", id))
	assert.True(t, apperr.IsKind(m.Delete(ctx, "dishes", id), apperr.NotFound))
}

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) kinds() []ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChangeKind, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Kind)
	}
	return out
}

func TestMemorySubscribeDeliversSnapshotThenChanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	existing, err := m.Create(ctx, "dishes", dish{CookID: "c1", Name: "old"})
	require.NoError(t, err)

	rec := &recorder{}
	unsub, err := m.Subscribe(ctx, Query{Collection: "dishes", Filters: []Filter{Eq("cookId", "c1")}}, rec.record)
	require.NoError(t, err)

	_, err = m.Create(ctx, "dishes", dish{CookID: "c2"})
	require.NoError(t, err)
	fresh, err := m.Create(ctx, "dishes", dish{CookID: "c1", Name: "new"})
	require.NoError(t, err)
	require.NoError(t, m.Update(ctx, "dishes", existing, map[string]any{"name": "renamed"}))
	require.NoError(t, m.Update(ctx, "dishes", fresh, map[string]any{"cookId": "c3"}))

	assert.Equal(t, []ChangeKind{Added, Added, Modified, Removed}, rec.kinds())

	var renamed dish
	require.NoError(t, rec.changes[2].Decode(&renamed))
	assert.Equal(t, "renamed", renamed.Name)

	unsub()
	unsub()
	_, err = m.Create(ctx, "dishes", dish{CookID: "c1"})
	require.NoError(t, err)
	assert.Len(t, rec.kinds(), 4)
	assert.Zero(t, m.Subscribers())
}

func TestMemorySubscribeEndsWithContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := m.Subscribe(ctx, Query{Collection: "dishes"}, func(Change) {})
	require.NoError(t, err)
	require.Equal(t, 1, m.Subscribers())

	cancel()
	assert.Eventually(t, func() bool { return m.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryFailedSubscriptionGetsTerminalChange(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := &recorder{}
	unsub, err := m.Subscribe(ctx, Query{Collection: "dishes"}, rec.record)
	require.NoError(t, err)
	defer unsub()

	m.FailSubscriptions(errors.New("connection reset"))
	assert.Zero(t, m.Subscribers())

	_, err = m.Create(ctx, "dishes", dish{CookID: "c1"})
	require.NoError(t, err)
	require.Equal(t, []ChangeKind{Failed}, rec.kinds())
	assert.Equal(t, apperr.BackendUnavailable, apperr.KindOf(rec.changes[0].Err))
}
