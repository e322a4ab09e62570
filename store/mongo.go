package store

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"myhomeneeds/apperr"
)

// Mongo is the production Store. Subscribe uses change streams, which need
// a replica set or sharded cluster.
type Mongo struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewMongo(db *mongo.Database, logger *slog.Logger) *Mongo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mongo{db: db, logger: logger}
}

// backendErr classifies a driver error.
func backendErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.Wrap(apperr.NotFound, op, err)
	case mongo.IsDuplicateKeyError(err):
		return apperr.Wrap(apperr.Conflict, op, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return apperr.Wrap(apperr.BackendUnavailable, op, err)
	}
}

func (m *Mongo) Get(ctx context.Context, collection, id string, out any) error {
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	return backendErr("store.Get "+collection, err)
}

func (m *Mongo) Query(ctx context.Context, q Query, out any) error {
	opts := options.Find()
	if q.SortDesc != "" {
		opts.SetSort(bson.D{{Key: q.SortDesc, Value: -1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cursor, err := m.db.Collection(q.Collection).Find(ctx, filterDocument(q.Filters), opts)
	if err != nil {
		return backendErr("store.Query "+q.Collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return backendErr("store.Query "+q.Collection, err)
	}
	return decodeInto(docs, out)
}

func (m *Mongo) Create(ctx context.Context, collection string, v any) (string, error) {
	doc, id, err := toDocument(v)
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, "store.Create", err)
	}
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", backendErr("store.Create "+collection, err)
	}
	return id, nil
}

func (m *Mongo) Update(ctx context.Context, collection, id string, fields map[string]any, where ...Filter) error {
	filter := filterDocument(where)
	filter["_id"] = id
	res, err := m.db.Collection(collection).UpdateOne(ctx, filter, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return backendErr("store.Update "+collection, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if len(where) == 0 {
		return apperr.Newf(apperr.NotFound, "store.Update", "%s %s not found", collection, id)
	}
	n, err := m.db.Collection(collection).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return backendErr("store.Update "+collection, err)
	}
	if n == 0 {
		return apperr.Newf(apperr.NotFound, "store.Update", "%s %s not found", collection, id)
	}
	return apperr.Newf(apperr.Conflict, "store.Update", "%s %s changed concurrently", collection, id)
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return backendErr("store.Delete "+collection, err)
	}
	if res.DeletedCount == 0 {
		return apperr.Newf(apperr.NotFound, "store.Delete", "%s %s not found", collection, id)
	}
	return nil
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.Raw `bson:"fullDocument"`
}

// Subscribe opens the change stream before reading the initial result set so
// that no write between the two is lost.
func (m *Mongo) Subscribe(ctx context.Context, q Query, fn func(Change)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{
		"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
	}}}}
	stream, err := m.db.Collection(q.Collection).Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, backendErr("store.Subscribe "+q.Collection, err)
	}

	var initial []bson.M
	if err := m.Query(ctx, Query{Collection: q.Collection, Filters: q.Filters, SortDesc: q.SortDesc}, &initial); err != nil {
		cancel()
		stream.Close(context.Background())
		return nil, err
	}

	sub := &memorySub{query: q, fn: fn, seen: make(map[string]bool, len(initial))}
	for _, doc := range initial {
		id, _ := doc["_id"].(string)
		sub.seen[id] = true
		fn(Change{Kind: Added, ID: id, Doc: rawOf(doc)})
	}

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				m.logger.Warn("change stream decode failed", slog.String("collection", q.Collection), slog.String("error", err.Error()))
				continue
			}
			var after bson.M
			if ev.OperationType != "delete" && len(ev.FullDocument) > 0 {
				if err := bson.Unmarshal(ev.FullDocument, &after); err != nil {
					continue
				}
			}
			if ch, ok := sub.classify(ev.DocumentKey.ID, after); ok {
				fn(ch)
			}
		}
		if ctx.Err() != nil {
			return
		}
		err := stream.Err()
		if err == nil {
			err = errors.New("change stream closed")
		}
		m.logger.Error("change stream closed", slog.String("collection", q.Collection), slog.String("error", err.Error()))
		fn(Change{Kind: Failed, Err: backendErr("store.Subscribe "+q.Collection, err)})
	}()

	return Unsubscribe(cancel), nil
}
