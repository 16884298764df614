package docstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
)

// Store is the authoritative document store, backed by a MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	people     *mongo.Collection
}

// Connect dials MongoDB and returns a Store bound to the given
// database/collection, plus a sibling "people" collection used for the
// related-people enrichment.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	return &Store{
		client:     client,
		collection: db.Collection(collection),
		people:     db.Collection("people"),
	}, nil
}

// Person is a known institutional person, matched to documents by email.
type Person struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Email       string `bson:"email" json:"email"`
	Affiliation string `bson:"affiliation" json:"affiliation"`
}

// GetPeopleByEmailPrefixes looks up people whose email local-part (the
// portion before '@') matches one of prefixes, used by the related-people
// enrichment to resolve matched author emails to person records.
func (s *Store) GetPeopleByEmailPrefixes(ctx context.Context, prefixes []string) ([]Person, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}
	patterns := make([]bson.M, 0, len(prefixes))
	for _, p := range prefixes {
		patterns = append(patterns, bson.M{"email": bson.M{"$regex": "^" + regexp.QuoteMeta(p) + "@"}})
	}
	cur, err := s.people.Find(ctx, bson.M{"$or": patterns})
	if err != nil {
		return nil, apperrors.StoreError("query people by email prefix", err)
	}
	defer cur.Close(ctx)

	var people []Person
	if err := cur.All(ctx, &people); err != nil {
		return nil, apperrors.StoreError("decode people", err)
	}
	return people, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// CountPending returns how many documents exist; reindex-all targets all of
// them, an incremental run targets the same total (already-cached ids are
// skipped downstream by the document cache, not by this count).
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, apperrors.StoreError("count documents", err)
	}
	return n, nil
}

// Stream opens a cursor over all documents, batched by batchSize, and
// delivers batches on the returned channel until the cursor is exhausted,
// ctx is cancelled, or an error occurs (sent on the error channel, which
// closes the batch channel).
func (s *Store) Stream(ctx context.Context, batchSize int32) (<-chan []Document, <-chan error) {
	// Buffered to 2 batches in flight, mirroring the pipeline's
	// 2*MongoBatchSize document back-pressure bound.
	out := make(chan []Document, 2)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		cur, err := s.collection.Find(ctx, bson.M{}, options.Find().SetBatchSize(batchSize))
		if err != nil {
			errc <- apperrors.StoreError("open cursor", err)
			return
		}
		defer cur.Close(ctx)

		batch := make([]Document, 0, batchSize)
		for cur.Next(ctx) {
			var doc Document
			if err := cur.Decode(&doc); err != nil {
				errc <- apperrors.StoreError("decode document", err)
				return
			}
			batch = append(batch, doc)
			if int32(len(batch)) >= batchSize {
				select {
				case out <- batch:
				case <-ctx.Done():
					errc <- apperrors.Cancelled(ctx.Err())
					return
				}
				batch = make([]Document, 0, batchSize)
			}
		}
		if err := cur.Err(); err != nil {
			errc <- apperrors.StoreError("cursor iteration", err)
			return
		}
		if len(batch) > 0 {
			select {
			case out <- batch:
			case <-ctx.Done():
				errc <- apperrors.Cancelled(ctx.Err())
			}
		}
	}()

	return out, errc
}

// GetByIDs fetches documents for a batch of authoritative ids, for hydration.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, apperrors.StoreError("hydrate documents", err)
	}
	defer cur.Close(ctx)

	var docs []Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperrors.StoreError("decode hydrated documents", err)
	}
	return docs, nil
}

// GetByAuthorID returns a page of documents whose authors include authorID,
// sorted by publication year descending.
func (s *Store) GetByAuthorID(ctx context.Context, authorID string, page, perPage int) ([]Document, int64, error) {
	filter := bson.M{"authors.author_id": authorID}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.StoreError("count by author", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "publication_year", Value: -1}}).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))

	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperrors.StoreError("query by author", err)
	}
	defer cur.Close(ctx)

	var docs []Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, apperrors.StoreError("decode by-author documents", err)
	}
	return docs, total, nil
}

// UpdateOpenSearchIDs back-syncs cross-reference ids. Updates are sent as a
// single unordered bulk write so one failing id does not block the rest.
func (s *Store) UpdateOpenSearchIDs(ctx context.Context, ids map[string]string) (matched int64, err error) {
	if len(ids) == 0 {
		return 0, nil
	}

	models := make([]mongo.WriteModel, 0, len(ids))
	for docID, engineID := range ids {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": docID}).
			SetUpdate(bson.M{"$set": bson.M{"open_search_id": engineID}}))
	}

	res, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, apperrors.StoreError("back-sync open_search_id", err)
	}
	return res.ModifiedCount, nil
}

// ClearOpenSearchIDs unsets the cross-reference field on every document,
// used by reindex-full before a clean Phase 2 run.
func (s *Store) ClearOpenSearchIDs(ctx context.Context) error {
	_, err := s.collection.UpdateMany(ctx, bson.M{}, bson.M{"$unset": bson.M{"open_search_id": ""}})
	if err != nil {
		return apperrors.StoreError("clear open_search_id", err)
	}
	return nil
}

// Throttle sleeps for the configured post-write delay between back-sync
// bulk writes, to protect an external store's free-tier request quota.
func Throttle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
