package mongo

import (
	"context"
	"errors"
	"regexp"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"movieapp/internal/domain"
)

// MovieStore persists movies in a MongoDB collection keyed by the catalog id.
type MovieStore struct {
	collection *mongo.Collection
}

type movieDoc struct {
	ID         int    `bson:"_id"`
	Title      string `bson:"title"`
	Overview   string `bson:"overview"`
	PosterPath string `bson:"posterPath"`
}

func NewMovieStore(client *mongo.Client, dbName, collectionName string) *MovieStore {
	return &MovieStore{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *MovieStore) EnsureIndexes(ctx context.Context) error {
	if s == nil || s.collection == nil {
		return nil
	}
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "title", Value: 1}},
	})
	return err
}

// UpsertAll replaces each movie document by id in a single unordered bulk write.
func (s *MovieStore) UpsertAll(ctx context.Context, movies []domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(movies))
	for _, m := range movies {
		doc := toDoc(m)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (s *MovieStore) ListAll(ctx context.Context) ([]domain.Movie, error) {
	return s.find(ctx, bson.M{})
}

func (s *MovieStore) GetByID(ctx context.Context, id domain.MovieID) (domain.Movie, error) {
	var doc movieDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": int(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Movie{}, domain.ErrNotFound
		}
		return domain.Movie{}, err
	}
	return fromDoc(doc), nil
}

// Search matches titles with domain.TitleMatches, the same case folding the
// other stores use. The server-side regex only narrows the scan.
func (s *MovieStore) Search(ctx context.Context, substring string) ([]domain.Movie, error) {
	movies, err := s.find(ctx, titleFilter(substring))
	if err != nil {
		return nil, err
	}
	return matchingTitles(movies, substring), nil
}

func (s *MovieStore) find(ctx context.Context, filter bson.M) ([]domain.Movie, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []movieDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

// titleFilter escapes the query so it is a literal substring. Regex case
// folding diverges from Unicode folding outside ASCII (ß against SS), so
// non-ASCII queries scan the whole collection.
func titleFilter(substring string) bson.M {
	if substring == "" || !isASCII(substring) {
		return bson.M{}
	}
	return bson.M{"title": bson.M{
		"$regex":   regexp.QuoteMeta(substring),
		"$options": "i",
	}}
}

func matchingTitles(movies []domain.Movie, substring string) []domain.Movie {
	out := movies[:0]
	for _, m := range movies {
		if domain.TitleMatches(m.Title, substring) {
			out = append(out, m)
		}
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func toDoc(m domain.Movie) movieDoc {
	return movieDoc{
		ID:         int(m.ID),
		Title:      m.Title,
		Overview:   m.Overview,
		PosterPath: m.PosterPath,
	}
}

func fromDoc(doc movieDoc) domain.Movie {
	return domain.Movie{
		ID:         domain.MovieID(doc.ID),
		Title:      doc.Title,
		Overview:   doc.Overview,
		PosterPath: doc.PosterPath,
	}
}

func fromDocs(docs []movieDoc) []domain.Movie {
	out := make([]domain.Movie, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDoc(doc))
	}
	return out
}
