// Package store is the document store every service reads and writes
// through: collection-oriented documents, equality filters, newest-first
// ordering and live subscriptions. Mongo backs it in production and Memory
// backs it in tests.
package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"myhomeneeds/apperr"
)

// Collection names.
const (
	Users   = "users"
	Taskers = "taskers"
	Meals   = "meals"
	Orders  = "orders"
)

// Filter is an equality condition on a top level field.
type Filter struct {
	Field string
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Query selects documents of one collection. SortDesc names a field to
// order by, newest or largest first.
type Query struct {
	Collection string
	Filters    []Filter
	SortDesc   string
	Limit      int64
}

type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Removed  ChangeKind = "removed"
	// Failed is the last delivery of a subscription the backend ended.
	Failed ChangeKind = "failed"
)

// Change is one delivery on a subscription. Doc is empty for Removed and
// Failed; Err is set only for Failed.
type Change struct {
	Kind ChangeKind
	ID   string
	Doc  bson.Raw
	Err  error
}

func (c Change) Decode(out any) error {
	if len(c.Doc) == 0 {
		return apperr.Newf(apperr.NotFound, "store.Change.Decode", "document %s has no body", c.ID)
	}
	return bson.Unmarshal(c.Doc, out)
}

// Unsubscribe stops a subscription. Calling it more than once is safe.
type Unsubscribe func()

// Store is the document store contract.
//
// Update applies fields only when every where filter matches the stored
// document; a failed precondition is reported as apperr.Conflict.
// Subscribe first delivers the current result set as Added changes and then
// every later change to it, in per-document revision order. The subscription
// ends when ctx is done or the returned Unsubscribe is called; if the
// backend ends it first, fn receives one Failed change and nothing after.
// fn must not call back into the store synchronously.
type Store interface {
	Get(ctx context.Context, collection, id string, out any) error
	Query(ctx context.Context, q Query, out any) error
	Create(ctx context.Context, collection string, doc any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any, where ...Filter) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, q Query, fn func(Change)) (Unsubscribe, error)
}

// toDocument normalises v into a bson.M with a non-empty _id.
func toDocument(v any) (bson.M, string, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("marshal document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, "", fmt.Errorf("unmarshal document: %w", err)
	}
	id, _ := doc["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		doc["_id"] = id
	}
	return doc, id, nil
}

// normalise runs a single value through bson so that it compares equal to
// what a decoded document holds (named string types become string, times
// become primitive.DateTime).
func normalise(v any) any {
	raw, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return v
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out["v"]
}

func filterDocument(filters []Filter) bson.M {
	m := bson.M{}
	for _, f := range filters {
		m[f.Field] = normalise(f.Value)
	}
	return m
}

func matches(doc bson.M, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(doc[f.Field], normalise(f.Value)) {
			return false
		}
	}
	return true
}

func less(a, b any) bool {
	switch x := a.(type) {
	case primitive.DateTime:
		y, _ := b.(primitive.DateTime)
		return x < y
	case string:
		y, _ := b.(string)
		return x < y
	case float64:
		y, _ := b.(float64)
		return x < y
	case int32:
		y, _ := b.(int32)
		return x < y
	case int64:
		y, _ := b.(int64)
		return x < y
	}
	return false
}

func sortDocuments(docs []bson.M, field string) {
	if field == "" {
		sort.SliceStable(docs, func(i, j int) bool {
			return fmt.Sprint(docs[i]["_id"]) < fmt.Sprint(docs[j]["_id"])
		})
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i][field], docs[j][field]
		if less(b, a) {
			return true
		}
		if less(a, b) {
			return false
		}
		return fmt.Sprint(docs[i]["_id"]) < fmt.Sprint(docs[j]["_id"])
	})
}

// decodeInto fills out, a pointer to a slice, from docs.
func decodeInto(docs []bson.M, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("store: out must be a pointer to a slice, got %T", out)
	}
	slice := rv.Elem()
	elemType := slice.Type().Elem()
	result := reflect.MakeSlice(slice.Type(), 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	slice.Set(result)
	return nil
}

func rawOf(doc bson.M) bson.Raw {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil
	}
	return raw
}
