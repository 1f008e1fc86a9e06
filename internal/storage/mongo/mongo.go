// Package mongostorage implements the storage.Backend interface on a MongoDB
// collection. Document ids are ObjectID hex strings.
package mongostorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/pkg/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Updater = (*Backend)(nil)
)

// documentValidationFailure is the server code for a $jsonSchema rejection.
const documentValidationFailure = 121

const connectTimeout = 10 * time.Second

// markerDoc is the BSON shape stored in the collection.
type markerDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Image       *string            `bson:"image"`
	Latitude    float64            `bson:"latitude"`
	Longitude   float64            `bson:"longitude"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func toDoc(rec core.MarkerRecord) markerDoc {
	d := markerDoc{
		Title:       rec.Title,
		Description: rec.Description,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
	}
	if !rec.Image.IsZero() {
		img := rec.Image.String()
		d.Image = &img
	}
	return d
}

func (d markerDoc) document() core.Document {
	rec := core.MarkerRecord{
		Title:       d.Title,
		Description: d.Description,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		CreatedAt:   d.CreatedAt,
	}
	if d.Image != nil {
		rec.Image = core.ResourceLocator(*d.Image)
	}
	return core.Document{ID: d.ID.Hex(), Record: rec}
}

// Dependencies holds all dependencies for the MongoDB storage backend.
type Dependencies struct {
	Config config.MongoConfig
	// Collection is used as-is when set; otherwise Init connects using Config.
	Collection *mongo.Collection
	Logger     *slog.Logger
}

// Backend stores markers as documents in one collection.
type Backend struct {
	deps   Dependencies
	client *mongo.Client // set only when Init dialed the server itself
	coll   *mongo.Collection
	now    func() time.Time
}

// New creates a new MongoDB storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps, coll: deps.Collection, now: time.Now}
}

// Init connects and pings the server unless a collection was injected.
func (b *Backend) Init(ctx context.Context) error {
	if b.coll != nil {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(b.deps.Config.URI))
	if err != nil {
		return storage.Unavailable("mongo connect", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return storage.Unavailable("mongo ping", err)
	}

	b.client = client
	b.coll = client.Database(b.deps.Config.Database).Collection(b.deps.Config.Collection)
	b.deps.Logger.Info("Connected to MongoDB",
		"database", b.deps.Config.Database,
		"collection", b.deps.Config.Collection)
	return nil
}

// Close disconnects a client opened by Init.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	err := b.client.Disconnect(ctx)
	b.client = nil
	b.coll = nil
	return err
}

func (b *Backend) collection(op string) (*mongo.Collection, error) {
	if b.coll == nil {
		return nil, storage.Unavailable(op, errors.New("mongo backend not initialized"))
	}
	return b.coll, nil
}

// classify maps driver errors onto the remote error taxonomy.
func classify(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return storage.Rejected(op, err)
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == documentValidationFailure {
				return storage.Rejected(op, err)
			}
		}
	}
	return storage.Unavailable(op, err)
}

// Insert adds a new document and returns its ObjectID hex string.
func (b *Backend) Insert(ctx context.Context, rec core.MarkerRecord) (string, error) {
	coll, err := b.collection("mongo insert")
	if err != nil {
		return "", err
	}

	doc := toDoc(rec)
	doc.CreatedAt = b.now().UTC()
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", classify("mongo insert", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", storage.Rejected("mongo insert", fmt.Errorf("unexpected id type %T", res.InsertedID))
	}
	return oid.Hex(), nil
}

// Update rewrites the editable fields of a document, keeping createdAt.
func (b *Backend) Update(ctx context.Context, id string, rec core.MarkerRecord) error {
	coll, err := b.collection("mongo update")
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.Rejected("mongo update", fmt.Errorf("invalid id %q: %w", id, core.ErrNotFound))
	}

	doc := toDoc(rec)
	update := bson.M{
		"$set": bson.M{
			"title":       doc.Title,
			"description": doc.Description,
			"image":       doc.Image,
			"latitude":    doc.Latitude,
			"longitude":   doc.Longitude,
		},
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return classify("mongo update", err)
	}
	if res.MatchedCount == 0 {
		return storage.Rejected("mongo update", fmt.Errorf("document %s: %w", id, core.ErrNotFound))
	}
	return nil
}

// ListAll returns every document in the collection's natural order. If the
// cursor fails midway the documents decoded so far are returned.
func (b *Backend) ListAll(ctx context.Context) ([]core.Document, error) {
	coll, err := b.collection("mongo list")
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, classify("mongo list", err)
	}
	defer cursor.Close(context.Background())

	var docs []core.Document
	for cursor.Next(ctx) {
		var d markerDoc
		if err := cursor.Decode(&d); err != nil {
			return docs, storage.Rejected("mongo list", fmt.Errorf("decode document: %w", err))
		}
		docs = append(docs, d.document())
	}
	if err := cursor.Err(); err != nil {
		return docs, classify("mongo list", err)
	}
	return docs, nil
}
