package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/randalmurphal/blueprint/artifact"
)

// Collection names outside the project map.
const (
	ProjectMapCollection = "project_map"
	DiagramsCollection   = "diagrams"
)

// DefaultDatabase is the database holding project artifacts.
const DefaultDatabase = "Raina"

// MongoConfig configures ConnectMongo.
type MongoConfig struct {
	URI      string
	Database string
	// ConnectTimeout bounds the initial connect and ping.
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Mongo loads projects from MongoDB.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// ConnectMongo connects and pings the server.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	m := NewMongo(client.Database(cfg.Database), cfg.Logger)
	m.client = client
	return m, nil
}

// NewMongo wraps an existing database handle.
func NewMongo(db *mongo.Database, logger *slog.Logger) *Mongo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mongo{db: db, logger: logger}
}

// LoadProject implements artifact.Store.
func (m *Mongo) LoadProject(ctx context.Context, projectID string) (*artifact.Project, error) {
	m.logger.Info("loading project artifacts", "project_id", projectID)

	var doc bson.M
	err := m.db.Collection(ProjectMapCollection).FindOne(ctx, bson.M{fieldProjectID: projectID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("no project map for %s: %w", projectID, artifact.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find project map: %w", err)
	}

	return resolveProject(ctx, m.logger, projectID, toRecord(doc), m.fetch)
}

func (m *Mongo) fetch(ctx context.Context, ref artifact.CollectionRef, ids []any) ([]artifact.Record, error) {
	filter := bson.M{ref.IDField: bson.M{"$in": ids}}
	return m.findAll(ctx, ref.Collection, filter)
}

// ListDiagrams implements artifact.DiagramSource.
func (m *Mongo) ListDiagrams(ctx context.Context, projectID string) ([]artifact.DiagramRecord, error) {
	records, err := m.findAll(ctx, DiagramsCollection, bson.M{fieldProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return diagramsFromRecords(records), nil
}

func (m *Mongo) findAll(ctx context.Context, collection string, filter bson.M) ([]artifact.Record, error) {
	cur, err := m.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}

	out := make([]artifact.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, toRecord(d))
	}
	return out, nil
}

// Close disconnects the client when the store owns it.
func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

// =============================================================================
// BSON normalization
// =============================================================================

// toRecord converts a decoded document into plain Go values so records can
// be navigated and JSON encoded without driver types.
func toRecord(doc bson.M) artifact.Record {
	return artifact.Record(normalize(doc).(map[string]any))
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	default:
		return v
	}
}
