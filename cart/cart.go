// Package cart holds the transient meal selection of one menu browsing
// session. A Cart is not safe for concurrent use; Session serialises access.
package cart

import (
	"math"
	"strconv"

	"myhomeneeds/models"
)

// Entry is a meal's name and price as last seen by the cart, with a
// quantity of at least one.
type Entry struct {
	MealID   string  `json:"mealId"`
	MealName string  `json:"mealName"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Cart struct {
	entries map[string]*Entry
	order   []string
}

func New() *Cart {
	return &Cart{entries: make(map[string]*Entry)}
}

// Add increments the meal's quantity, inserting it at one. The stored name
// and price are refreshed from meal on every call.
func (c *Cart) Add(meal models.Meal) {
	if e, ok := c.entries[meal.ID]; ok {
		e.Quantity++
		e.MealName = meal.MealName
		e.Price = meal.Price
		return
	}
	c.entries[meal.ID] = &Entry{MealID: meal.ID, MealName: meal.MealName, Price: meal.Price, Quantity: 1}
	c.order = append(c.order, meal.ID)
}

// Remove decrements the quantity and drops the entry at zero. Absent meals
// are ignored.
func (c *Cart) Remove(mealID string) {
	e, ok := c.entries[mealID]
	if !ok {
		return
	}
	e.Quantity--
	if e.Quantity < 1 {
		c.delete(mealID)
	}
}

// SetQuantity sets the quantity directly; n < 1 deletes the entry. A meal
// not in the cart is ignored since there is no price to hold for it.
func (c *Cart) SetQuantity(mealID string, n int) {
	e, ok := c.entries[mealID]
	if !ok {
		return
	}
	if n < 1 {
		c.delete(mealID)
		return
	}
	e.Quantity = n
}

func (c *Cart) delete(mealID string) {
	delete(c.entries, mealID)
	for i, id := range c.order {
		if id == mealID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Total is the unrounded sum of price * quantity.
func (c *Cart) Total() float64 {
	var total float64
	for _, e := range c.entries {
		total += e.Price * float64(e.Quantity)
	}
	return total
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, e := range c.entries {
		n += e.Quantity
	}
	return n
}

func (c *Cart) Len() int { return len(c.entries) }

func (c *Cart) Clear() {
	c.entries = make(map[string]*Entry)
	c.order = nil
}

// Entries returns copies in insertion order.
func (c *Cart) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.entries[id])
	}
	return out
}

// Snapshot copies the entries into order items. The result shares nothing
// with the cart.
func (c *Cart) Snapshot() map[string]models.OrderItem {
	out := make(map[string]models.OrderItem, len(c.entries))
	for id, e := range c.entries {
		out[id] = models.OrderItem{MealID: e.MealID, MealName: e.MealName, Price: e.Price, Quantity: e.Quantity}
	}
	return out
}

// FormatTotal rounds to cents for display.
func FormatTotal(total float64) string {
	return strconv.FormatFloat(math.Round(total*100)/100, 'f', 2, 64)
}
