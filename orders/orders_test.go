package orders

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myhomeneeds/apperr"
	"myhomeneeds/models"
	"myhomeneeds/store"
)

type recordingBus struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (b *recordingBus) Publish(_ context.Context, channel string, event any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if channel != EventsChannel {
		return errors.New("wrong channel")
	}
	b.events = append(b.events, event.(Event))
	return b.err
}

var (
	cook     = models.Identity{UserID: "cook-1", Email: "cook@example.com"}
	customer = models.Identity{UserID: "cust-1", Email: "cust@example.com"}
)

func setup(t *testing.T) (*Service, *store.Memory, *recordingBus) {
	t.Helper()
	st := store.NewMemory()
	_, err := st.Create(context.Background(), store.Taskers, models.Profile{UserID: cook.UserID, Name: "Asha", KitchenName: "Asha's Kitchen"})
	require.NoError(t, err)
	bus := &recordingBus{}
	return NewService(st, bus, nil, nil), st, bus
}

func sampleItems() map[string]models.OrderItem {
	return map[string]models.OrderItem{
		"m1": {MealName: "Dal", Price: 10, Quantity: 2},
		"m2": {MealName: "Roti", Price: 3.5, Quantity: 1},
	}
}

func TestCreateFreezesTotalAndStartsPending(t *testing.T) {
	ctx := context.Background()
	svc, st, bus := setup(t)

	order, err := svc.Create(ctx, customer, cook.UserID, sampleItems())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.InDelta(t, 23.50, order.Total, 1e-9)
	assert.Equal(t, "m1", order.Items["m1"].MealID)

	var stored models.Order
	require.NoError(t, st.Get(ctx, store.Orders, order.ID, &stored))
	assert.Equal(t, cook.UserID, stored.CookID)
	assert.Equal(t, customer.UserID, stored.CustomerID)
	assert.InDelta(t, 23.50, stored.Total, 1e-9)

	require.Len(t, bus.events, 1)
	assert.Equal(t, "created", bus.events[0].Type)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	tests := []struct {
		name   string
		who    models.Identity
		cookID string
		items  map[string]models.OrderItem
		kind   apperr.Kind
	}{
		{"empty cart", customer, cook.UserID, nil, apperr.Validation},
		{"zero quantity", customer, cook.UserID, map[string]models.OrderItem{"m1": {Price: 1, Quantity: 0}}, apperr.Validation},
		{"free meal", customer, cook.UserID, map[string]models.OrderItem{"m1": {Price: 0, Quantity: 1}}, apperr.Validation},
		{"nan price", customer, cook.UserID, map[string]models.OrderItem{"m1": {Price: math.NaN(), Quantity: 1}}, apperr.Validation},
		{"own kitchen", cook, cook.UserID, sampleItems(), apperr.Validation},
		{"no cook", customer, "", sampleItems(), apperr.Validation},
		{"unknown cook", customer, "ghost", sampleItems(), apperr.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.who, tt.cookID, tt.items)
			assert.True(t, apperr.IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	svc, _, bus := setup(t)
	bus.err = errors.New("redis down")
	_, err := svc.Create(context.Background(), customer, cook.UserID, sampleItems())
	assert.NoError(t, err)
}

func TestTransitionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, bus := setup(t)
	order, err := svc.Create(ctx, customer, cook.UserID, sampleItems())
	require.NoError(t, err)

	got, err := svc.Transition(ctx, cook, order.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)

	// same state again is a no-op and publishes nothing
	got, err = svc.Transition(ctx, cook, order.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Len(t, bus.events, 2)

	_, err = svc.Transition(ctx, cook, order.ID, models.StatusDeclined)
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	got, err = svc.Transition(ctx, cook, order.ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.InDelta(t, 23.50, got.Total, 1e-9)

	_, err = svc.Transition(ctx, cook, order.ID, models.StatusPending)
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	last := bus.events[len(bus.events)-1]
	assert.Equal(t, "status_changed", last.Type)
	assert.Equal(t, models.StatusAccepted, last.Previous)
	assert.Equal(t, models.StatusCompleted, last.Status)
}

func TestTransitionOnlyByCook(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	order, err := svc.Create(ctx, customer, cook.UserID, sampleItems())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, customer, order.ID, models.StatusAccepted)
	assert.True(t, apperr.IsKind(err, apperr.PermissionDenied))

	_, err = svc.Transition(ctx, cook, "missing", models.StatusAccepted)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	_, err = svc.Transition(ctx, cook, order.ID, "shipped")
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestTransitionRace(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	order, err := svc.Create(ctx, customer, cook.UserID, sampleItems())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	targets := []models.OrderStatus{models.StatusAccepted, models.StatusDeclined}
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Transition(ctx, cook, order.ID, targets[i])
		}(i)
	}
	wg.Wait()

	final, err := svc.Get(ctx, cook, order.ID)
	require.NoError(t, err)
	assert.Contains(t, targets, final.Status)
	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
}

func TestGetAndLists(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { base = base.Add(time.Minute); return base }

	first, err := svc.Create(ctx, customer, cook.UserID, sampleItems())
	require.NoError(t, err)
	second, err := svc.Create(ctx, customer, cook.UserID, sampleItems())
	require.NoError(t, err)
	_, err = svc.Transition(ctx, cook, first.ID, models.StatusAccepted)
	require.NoError(t, err)

	_, err = svc.Get(ctx, models.Identity{UserID: "stranger"}, first.ID)
	assert.True(t, apperr.IsKind(err, apperr.PermissionDenied))

	mine, err := svc.ListForCustomer(ctx, customer.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	pending, err := svc.ListForCook(ctx, cook.UserID, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	_, err = svc.ListForCook(ctx, cook.UserID, "bogus")
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestSubscribeIncoming(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	var mu sync.Mutex
	var updates []Update
	unsub, err := svc.Subscribe(ctx, CookQuery(cook.UserID, models.StatusPending), func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	order, err := svc.Create(ctx, customer, cook.UserID, sampleItems())
	require.NoError(t, err)
	_, err = svc.Transition(ctx, cook, order.ID, models.StatusAccepted)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 2)
	assert.Equal(t, store.Added, updates[0].Kind)
	assert.Equal(t, order.ID, updates[0].Order.ID)
	assert.Equal(t, store.Removed, updates[1].Kind)
	assert.Nil(t, updates[1].Order)
}

func TestReceipt(t *testing.T) {
	svc, _, _ := setup(t)
	order, err := svc.Create(context.Background(), customer, cook.UserID, sampleItems())
	require.NoError(t, err)

	pdf, err := Receipt(order)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Equal(t, "myhomeneeds:order:"+order.ID, ReceiptPayload(order.ID))
}
