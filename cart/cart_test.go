package cart

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myhomeneeds/models"
)

var (
	dal  = models.Meal{ID: "m1", MealName: "Dal", Price: 10}
	roti = models.Meal{ID: "m2", MealName: "Roti", Price: 3.5}
)

func TestTotalAndCount(t *testing.T) {
	c := New()
	c.Add(dal)
	c.Add(dal)
	c.Add(roti)

	assert.InDelta(t, 23.50, c.Total(), 1e-9)
	assert.Equal(t, 3, c.ItemCount())
	assert.Equal(t, "23.50", FormatTotal(c.Total()))
}

func TestRemoveDropsAtZero(t *testing.T) {
	c := New()
	c.Add(dal)
	c.Add(dal)
	c.Remove("m1")
	assert.Equal(t, 1, c.ItemCount())
	c.Remove("m1")
	assert.Equal(t, 0, c.Len())
	c.Remove("m1")
	c.Remove("never")
	assert.Equal(t, 0, c.ItemCount())
}

func TestSetQuantity(t *testing.T) {
	c := New()
	c.Add(dal)
	c.SetQuantity("m1", 4)
	assert.Equal(t, 4, c.ItemCount())
	c.SetQuantity("ghost", 3)
	assert.Equal(t, 1, c.Len())
	c.SetQuantity("m1", 0)
	assert.Equal(t, 0, c.Len())
	c.Add(roti)
	c.SetQuantity("m2", -2)
	assert.Equal(t, 0, c.Len())
}

func TestAddRefreshesPrice(t *testing.T) {
	c := New()
	c.Add(dal)
	cheaper := dal
	cheaper.Price = 8
	cheaper.MealName = "Dal Tadka"
	c.Add(cheaper)

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Quantity)
	assert.Equal(t, "Dal Tadka", entries[0].MealName)
	assert.InDelta(t, 16.0, c.Total(), 1e-9)
}

func TestEntriesKeepInsertionOrder(t *testing.T) {
	c := New()
	c.Add(roti)
	c.Add(dal)
	c.Add(roti)
	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "m2", entries[0].MealID)
	assert.Equal(t, "m1", entries[1].MealID)
}

func TestSnapshotIsDetached(t *testing.T) {
	c := New()
	c.Add(dal)
	snap := c.Snapshot()
	c.Add(dal)
	c.Clear()

	assert.Equal(t, 1, snap["m1"].Quantity)
	assert.Equal(t, 0, c.ItemCount())
	assert.Zero(t, c.Total())
}

func TestFormatTotalRoundsOnlyForDisplay(t *testing.T) {
	c := New()
	c.Add(models.Meal{ID: "a", Price: 0.1})
	c.Add(models.Meal{ID: "b", Price: 0.2})
	assert.NotEqual(t, 0.3, c.Total())
	assert.Equal(t, "0.30", FormatTotal(c.Total()))
}

func TestRandomEditsKeepTotalsConsistent(t *testing.T) {
	menu := []models.Meal{dal, roti, {ID: "m3", MealName: "Kheer", Price: 4.25}}
	rng := rand.New(rand.NewSource(42))
	c := New()
	want := map[string]int{}

	for step := 0; step < 2000; step++ {
		meal := menu[rng.Intn(len(menu))]
		switch rng.Intn(4) {
		case 0, 1:
			c.Add(meal)
			want[meal.ID]++
		case 2:
			c.Remove(meal.ID)
			if want[meal.ID] > 0 {
				want[meal.ID]--
			}
		case 3:
			n := rng.Intn(5) - 1
			c.SetQuantity(meal.ID, n)
			if want[meal.ID] > 0 {
				want[meal.ID] = max(n, 0)
			}
		}

		var count int
		var total float64
		for _, e := range c.Entries() {
			require.GreaterOrEqual(t, e.Quantity, 1, "step %d", step)
			require.Equal(t, want[e.MealID], e.Quantity, "step %d", step)
			count += e.Quantity
			total += e.Price * float64(e.Quantity)
		}
		for _, m := range menu {
			if want[m.ID] == 0 {
				delete(want, m.ID)
			}
		}
		require.Equal(t, len(want), c.Len(), "step %d", step)
		require.Equal(t, count, c.ItemCount(), "step %d", step)
		require.InDelta(t, total, c.Total(), 1e-9, "step %d", step)

		beforeTotal, beforeCount := c.Total(), c.ItemCount()
		c.Add(meal)
		c.Remove(meal.ID)
		require.InDelta(t, beforeTotal, c.Total(), 1e-9, "step %d", step)
		require.Equal(t, beforeCount, c.ItemCount(), "step %d", step)
	}
}
