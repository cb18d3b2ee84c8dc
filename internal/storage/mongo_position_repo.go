package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig параметры подключения к MongoDB.
type MongoConfig struct {
	URI        string // mongodb://localhost:27017
	Database   string // tileworld
	Collection string // positions
}

type mongoPosition struct {
	Name      string    `bson:"_id"`
	MapID     string    `bson:"map_id"`
	X         int       `bson:"x"`
	Y         int       `bson:"y"`
	Layer     int       `bson:"layer"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoPositionRepo хранит позиции в коллекции MongoDB, _id = имя игрока.
type MongoPositionRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoPositionRepo(ctx context.Context, cfg MongoConfig) (*MongoPositionRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "tileworld"
	}
	if cfg.Collection == "" {
		cfg.Collection = "positions"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB не отвечает: %w", err)
	}

	return &MongoPositionRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func toMongo(name string, pos SavedPosition) mongoPosition {
	return mongoPosition{
		Name:      name,
		MapID:     pos.MapID,
		X:         pos.Pos.X,
		Y:         pos.Pos.Y,
		Layer:     pos.Pos.Layer,
		UpdatedAt: time.Now().UTC(),
	}
}

func (r *MongoPositionRepo) Save(ctx context.Context, name string, pos SavedPosition) error {
	if err := validate(name, pos); err != nil {
		return err
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": name}, toMongo(name, pos), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("ошибка сохранения позиции игрока %s: %w", name, err)
	}
	return nil
}

func (r *MongoPositionRepo) Load(ctx context.Context, name string) (SavedPosition, bool, error) {
	if err := validateName(name); err != nil {
		return SavedPosition{}, false, err
	}
	var doc mongoPosition
	err := r.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return SavedPosition{}, false, nil
	}
	if err != nil {
		return SavedPosition{}, false, fmt.Errorf("ошибка загрузки позиции игрока %s: %w", name, err)
	}

	pos := SavedPosition{MapID: doc.MapID}
	pos.Pos.X, pos.Pos.Y, pos.Pos.Layer = doc.X, doc.Y, doc.Layer
	return pos, true, nil
}

func (r *MongoPositionRepo) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return fmt.Errorf("ошибка удаления позиции игрока %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// BatchSave выполняет BulkWrite из upsert-замен.
func (r *MongoPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}
	if err := validateBatch(positions); err != nil {
		return err
	}

	models := make([]mongo.WriteModel, 0, len(positions))
	for name, pos := range positions {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": name}).
			SetReplacement(toMongo(name, pos)).
			SetUpsert(true))
	}
	if _, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("ошибка пакетного сохранения: %w", err)
	}
	return nil
}

func (r *MongoPositionRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
