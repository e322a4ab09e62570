package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"myhomeneeds/apperr"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]bson.M
	subs        map[int]*memorySub
	nextSub     int

	// notify serialises deliveries so subscribers see writes in commit order.
	notify sync.Mutex
}

type memorySub struct {
	query Query
	fn    func(Change)
	seen  map[string]bool
}

type delivery struct {
	sub    *memorySub
	change Change
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]bson.M),
		subs:        make(map[int]*memorySub),
	}
}

func (m *Memory) collection(name string) map[string]bson.M {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string]bson.M)
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Get(_ context.Context, collection, id string, out any) error {
	m.mu.Lock()
	doc, ok := m.collection(collection)[id]
	m.mu.Unlock()
	if !ok {
		return apperr.Newf(apperr.NotFound, "store.Get", "%s %s not found", collection, id)
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func (m *Memory) Query(_ context.Context, q Query, out any) error {
	m.mu.Lock()
	docs := m.selectLocked(q)
	m.mu.Unlock()
	return decodeInto(docs, out)
}

func (m *Memory) selectLocked(q Query) []bson.M {
	var docs []bson.M
	for _, doc := range m.collection(q.Collection) {
		if matches(doc, q.Filters) {
			docs = append(docs, copyDoc(doc))
		}
	}
	sortDocuments(docs, q.SortDesc)
	if q.Limit > 0 && int64(len(docs)) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func (m *Memory) Create(_ context.Context, collection string, v any) (string, error) {
	doc, id, err := toDocument(v)
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, "store.Create", err)
	}

	m.mu.Lock()
	c := m.collection(collection)
	if _, exists := c[id]; exists {
		m.mu.Unlock()
		return "", apperr.Newf(apperr.Conflict, "store.Create", "%s %s already exists", collection, id)
	}
	c[id] = doc
	m.publishLocked(collection, id, nil, doc)
	return id, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any, where ...Filter) error {
	set, _, err := toDocument(bson.M(fields))
	if err != nil {
		return apperr.Wrap(apperr.Validation, "store.Update", err)
	}
	delete(set, "_id")

	m.mu.Lock()
	c := m.collection(collection)
	before, ok := c[id]
	if !ok {
		m.mu.Unlock()
		return apperr.Newf(apperr.NotFound, "store.Update", "%s %s not found", collection, id)
	}
	if !matches(before, where) {
		m.mu.Unlock()
		return apperr.Newf(apperr.Conflict, "store.Update", "%s %s changed concurrently", collection, id)
	}
	after := copyDoc(before)
	for k, v := range set {
		after[k] = v
	}
	c[id] = after
	m.publishLocked(collection, id, before, after)
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	c := m.collection(collection)
	before, ok := c[id]
	if !ok {
		m.mu.Unlock()
		return apperr.Newf(apperr.NotFound, "store.Delete", "%s %s not found", collection, id)
	}
	delete(c, id)
	m.publishLocked(collection, id, before, nil)
	return nil
}

// publishLocked is called with m.mu held and releases it.
func (m *Memory) publishLocked(collection, id string, before, after bson.M) {
	var out []delivery
	for _, sub := range m.subs {
		if sub.query.Collection != collection {
			continue
		}
		if ch, ok := sub.classify(id, after); ok {
			out = append(out, delivery{sub: sub, change: ch})
		}
	}
	m.notify.Lock()
	m.mu.Unlock()
	defer m.notify.Unlock()
	for _, d := range out {
		d.sub.fn(d.change)
	}
}

// classify decides what a write to id means for this subscription.
func (s *memorySub) classify(id string, after bson.M) (Change, bool) {
	was := s.seen[id]
	now := after != nil && matches(after, s.query.Filters)
	switch {
	case now && was:
		return Change{Kind: Modified, ID: id, Doc: rawOf(after)}, true
	case now:
		s.seen[id] = true
		return Change{Kind: Added, ID: id, Doc: rawOf(after)}, true
	case was:
		delete(s.seen, id)
		return Change{Kind: Removed, ID: id}, true
	}
	return Change{}, false
}

func (m *Memory) Subscribe(ctx context.Context, q Query, fn func(Change)) (Unsubscribe, error) {
	sub := &memorySub{query: q, fn: fn, seen: make(map[string]bool)}

	m.mu.Lock()
	initial := m.selectLocked(Query{Collection: q.Collection, Filters: q.Filters, SortDesc: q.SortDesc})
	for _, doc := range initial {
		sub.seen[doc["_id"].(string)] = true
	}
	key := m.nextSub
	m.nextSub++
	m.subs[key] = sub
	m.notify.Lock()
	m.mu.Unlock()
	for _, doc := range initial {
		fn(Change{Kind: Added, ID: doc["_id"].(string), Doc: rawOf(doc)})
	}
	m.notify.Unlock()

	var once sync.Once
	done := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, key)
			m.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-done:
		}
	}()
	return unsubscribe, nil
}

// FailSubscriptions ends every open subscription as a lost backend
// connection would: each receives one Failed change carrying err.
func (m *Memory) FailSubscriptions(err error) {
	m.mu.Lock()
	subs := make([]*memorySub, 0, len(m.subs))
	for key, sub := range m.subs {
		subs = append(subs, sub)
		delete(m.subs, key)
	}
	m.notify.Lock()
	m.mu.Unlock()
	defer m.notify.Unlock()
	for _, sub := range subs {
		sub.fn(Change{Kind: Failed, Err: apperr.Wrap(apperr.BackendUnavailable, "store.Subscribe "+sub.query.Collection, err)})
	}
}

// Subscribers reports the number of open subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
