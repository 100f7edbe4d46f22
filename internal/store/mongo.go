package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

const mongoConnectTimeout = 10 * time.Second

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    logx.Logger
}

func openMongo(ctx context.Context, cfg config.StorageConfig, log logx.Logger) (Store, error) {
	cctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s := &mongoStore{client: client, db: client.Database(cfg.Database), log: log}
	if err := s.ensureIndexes(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("mongo ready", logx.String("database", cfg.Database))
	return s, nil
}

func (s *mongoStore) ensureIndexes(ctx context.Context) error {
	// One counter document per (date, group).
	_, err := s.db.Collection("stats").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}, {Key: "groupId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ---- groups ----

func (s *mongoStore) PutGroup(ctx context.Context, g Group) error {
	return s.replaceByID(ctx, "groups", g.ChatID, g)
}

func (s *mongoStore) GetGroup(ctx context.Context, chatID string) (Group, error) {
	var g Group
	err := s.findByID(ctx, "groups", chatID, &g)
	return g, err
}

func (s *mongoStore) DeleteGroup(ctx context.Context, chatID string) error {
	return s.deleteByID(ctx, "groups", chatID)
}

func (s *mongoStore) ListGroups(ctx context.Context) ([]Group, error) {
	out := []Group{}
	err := s.listAll(ctx, "groups", &out)
	return out, err
}

// ---- users ----

func (s *mongoStore) PutUser(ctx context.Context, u User) error {
	return s.replaceByID(ctx, "users", u.TelegramID, u)
}

func (s *mongoStore) GetUser(ctx context.Context, telegramID string) (User, error) {
	var u User
	err := s.findByID(ctx, "users", telegramID, &u)
	return u, err
}

func (s *mongoStore) DeleteUser(ctx context.Context, telegramID string) error {
	return s.deleteByID(ctx, "users", telegramID)
}

func (s *mongoStore) ListUsers(ctx context.Context) ([]User, error) {
	out := []User{}
	err := s.listAll(ctx, "users", &out)
	return out, err
}

// ---- schedules ----

func (s *mongoStore) PutSchedule(ctx context.Context, sc Schedule) error {
	return s.replaceByID(ctx, "schedules", sc.ID, sc)
}

func (s *mongoStore) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	var sc Schedule
	err := s.findByID(ctx, "schedules", id, &sc)
	return sc, err
}

func (s *mongoStore) DeleteSchedule(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "schedules", id)
}

func (s *mongoStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	out := []Schedule{}
	err := s.listAll(ctx, "schedules", &out)
	return out, err
}

// ---- broadcasts ----

func (s *mongoStore) PutBroadcast(ctx context.Context, b Broadcast) error {
	return s.replaceByID(ctx, "broadcasts", b.ID, b)
}

func (s *mongoStore) GetBroadcast(ctx context.Context, id string) (Broadcast, error) {
	var b Broadcast
	err := s.findByID(ctx, "broadcasts", id, &b)
	return b, err
}

func (s *mongoStore) DeleteBroadcast(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "broadcasts", id)
}

func (s *mongoStore) ListBroadcasts(ctx context.Context) ([]Broadcast, error) {
	out := []Broadcast{}
	err := s.listAll(ctx, "broadcasts", &out)
	return out, err
}

func (s *mongoStore) SetBroadcastLastSent(ctx context.Context, id, date string) error {
	res, err := s.db.Collection("broadcasts").UpdateByID(ctx, id,
		bson.M{"$set": bson.M{"lastSentDate": date}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- settings ----

func (s *mongoStore) GetSettings(ctx context.Context) (Settings, error) {
	var set Settings
	err := s.db.Collection("settings").FindOne(ctx, bson.M{"_id": "global"}).Decode(&set)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Settings{}, ErrNotFound
	}
	return set, err
}

func (s *mongoStore) PutSettings(ctx context.Context, set Settings) error {
	_, err := s.db.Collection("settings").UpdateOne(ctx,
		bson.M{"_id": "global"},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))
	return err
}

// ---- counters ----

func (s *mongoStore) IncrementCounter(ctx context.Context, date, groupID, userID, userName string, now time.Time) (int64, error) {
	// Store-native atomic add: no read-modify-write window, so concurrent
	// increments for the same (date, group) cannot lose updates.
	var out DailyCounter
	err := s.db.Collection("stats").FindOneAndUpdate(ctx,
		bson.M{"date": date, "groupId": groupID},
		bson.M{
			"$inc": bson.M{"count": 1},
			"$set": bson.M{"userId": userID, "userName": userName, "lastUpdated": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (s *mongoStore) GetCounter(ctx context.Context, date, groupID string) (DailyCounter, error) {
	var c DailyCounter
	err := s.db.Collection("stats").FindOne(ctx, bson.M{"date": date, "groupId": groupID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DailyCounter{}, ErrNotFound
	}
	return c, err
}

func (s *mongoStore) ListCounters(ctx context.Context, date string) ([]DailyCounter, error) {
	cur, err := s.db.Collection("stats").Find(ctx, bson.M{"date": date})
	if err != nil {
		return nil, err
	}
	out := []DailyCounter{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- shared helpers ----

func (s *mongoStore) replaceByID(ctx context.Context, coll, id string, doc any) error {
	_, err := s.db.Collection(coll).ReplaceOne(ctx,
		bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *mongoStore) findByID(ctx context.Context, coll, id string, out any) error {
	err := s.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *mongoStore) deleteByID(ctx context.Context, coll, id string) error {
	res, err := s.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) listAll(ctx context.Context, coll string, out any) error {
	cur, err := s.db.Collection(coll).Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
