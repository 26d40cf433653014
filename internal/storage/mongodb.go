package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

// MongoDBStorage implements Storage on MongoDB. Surrogate ids for reference entities
// come from a counters collection.
type MongoDBStorage struct {
	client *mongo.Client
	db     *mongo.Database
	prefix string
	logger *logrus.Logger
}

// NewMongoDBStorage connects, pings and creates the unique indexes
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (*MongoDBStorage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &MongoDBStorage{
		client: client,
		db:     client.Database(cfg.MongoDBName),
		prefix: cfg.TablePrefix,
		logger: logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger.WithField("database", cfg.MongoDBName).Info("connected to mongodb")
	return s, nil
}

func (s *MongoDBStorage) collection(entity string) *mongo.Collection {
	return s.db.Collection(s.prefix + "_" + entity)
}

func (s *MongoDBStorage) ensureIndexes(ctx context.Context) error {
	unique := map[string]string{
		"party":              "short_name",
		"state":              "name",
		"electoral_district": "code",
		"member":             "id",
		"import_session":     "session_id",
	}
	for entity, field := range unique {
		_, err := s.collection(entity).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", entity, field, err)
		}
	}
	return nil
}

func (s *MongoDBStorage) nextID(ctx context.Context, entity string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.collection("counter").FindOneAndUpdate(ctx,
		bson.M{"_id": entity},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", entity, err)
	}
	return counter.Seq, nil
}

func (s *MongoDBStorage) WipeAll(ctx context.Context) error {
	for _, entity := range []string{"member", "party", "state", "electoral_district"} {
		if _, err := s.collection(entity).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", entity, err)
		}
	}
	s.logger.Info("wiped existing parliament data")
	return nil
}

// insertIfAbsent allocates an id and inserts doc unless filter already matches
func (s *MongoDBStorage) insertIfAbsent(ctx context.Context, entity string, filter bson.M, build func(id int64) interface{}) error {
	n, err := s.collection(entity).CountDocuments(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", entity, err)
	}
	if n > 0 {
		return nil
	}
	id, err := s.nextID(ctx, entity)
	if err != nil {
		return err
	}
	_, err = s.collection(entity).InsertOne(ctx, build(id))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", entity, err)
	}
	return nil
}

func (s *MongoDBStorage) InsertParties(ctx context.Context, parties []models.Party) ([]models.Party, error) {
	for _, p := range parties {
		p := p
		err := s.insertIfAbsent(ctx, "party", bson.M{"short_name": p.ShortName}, func(id int64) interface{} {
			p.ID = id
			return p
		})
		if err != nil {
			return nil, err
		}
	}
	return s.ListParties(ctx)
}

func (s *MongoDBStorage) InsertStates(ctx context.Context, states []models.State) ([]models.State, error) {
	for _, st := range states {
		st := st
		err := s.insertIfAbsent(ctx, "state", bson.M{"name": st.Name}, func(id int64) interface{} {
			st.ID = id
			return st
		})
		if err != nil {
			return nil, err
		}
	}
	return s.ListStates(ctx)
}

func (s *MongoDBStorage) InsertDistricts(ctx context.Context, districts []models.ElectoralDistrict) ([]models.ElectoralDistrict, error) {
	for _, ed := range districts {
		ed := ed
		err := s.insertIfAbsent(ctx, "electoral_district", bson.M{"code": ed.Code}, func(id int64) interface{} {
			ed.ID = id
			return ed
		})
		if err != nil {
			return nil, err
		}
	}
	return s.ListDistricts(ctx)
}

// InsertMembers inserts unordered so one duplicate does not stop the rest
func (s *MongoDBStorage) InsertMembers(ctx context.Context, members []models.Member) error {
	if len(members) == 0 {
		return nil
	}
	docs := make([]interface{}, len(members))
	for i := range members {
		docs[i] = members[i]
	}

	_, err := s.collection("member").InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !onlyDuplicateKeys(err) {
		return fmt.Errorf("failed to insert members: %w", err)
	}
	return nil
}

func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != 11000 {
			return false
		}
	}
	return true
}

func (s *MongoDBStorage) UpdateMemberDetail(ctx context.Context, memberID string, detail models.MemberDetail) error {
	var m models.Member
	applyDetail(&m, detail)

	res, err := s.collection("member").UpdateOne(ctx,
		bson.M{"id": memberID},
		bson.M{"$set": bson.M{
			"birth_date":          m.BirthDate,
			"birth_place":         m.BirthPlace,
			"occupation":          m.Occupation,
			"career_history":      m.CareerHistory,
			"education":           m.Education,
			"political_functions": m.PoliticalFunctions,
			"social_media":        m.SocialMedia,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update member %s: %w", memberID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	return nil
}

func (s *MongoDBStorage) ListMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	opts := options.Find().SetSort(bson.D{{Key: "last_name", Value: 1}, {Key: "full_name", Value: 1}})
	if err := s.findAll(ctx, "member", opts, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *MongoDBStorage) GetMember(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	err := s.collection("member").FindOne(ctx, bson.M{"id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", id, err)
	}
	return &m, nil
}

func (s *MongoDBStorage) findAll(ctx context.Context, entity string, opts *options.FindOptions, out interface{}) error {
	cursor, err := s.collection(entity).Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", entity, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", entity, err)
	}
	return nil
}

func byID() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
}

func (s *MongoDBStorage) ListParties(ctx context.Context) ([]models.Party, error) {
	var parties []models.Party
	if err := s.findAll(ctx, "party", byID(), &parties); err != nil {
		return nil, err
	}
	return parties, nil
}

func (s *MongoDBStorage) ListStates(ctx context.Context) ([]models.State, error) {
	var states []models.State
	if err := s.findAll(ctx, "state", byID(), &states); err != nil {
		return nil, err
	}
	return states, nil
}

func (s *MongoDBStorage) ListDistricts(ctx context.Context) ([]models.ElectoralDistrict, error) {
	var districts []models.ElectoralDistrict
	if err := s.findAll(ctx, "electoral_district", byID(), &districts); err != nil {
		return nil, err
	}
	return districts, nil
}

func (s *MongoDBStorage) CreateSession(ctx context.Context, session models.ImportSession) error {
	if _, err := s.collection("import_session").InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to create import session %s: %w", session.SessionID, err)
	}
	return nil
}

func (s *MongoDBStorage) UpdateSession(ctx context.Context, session models.ImportSession) error {
	res, err := s.collection("import_session").ReplaceOne(ctx, bson.M{"session_id": session.SessionID}, session)
	if err != nil {
		return fmt.Errorf("failed to update import session %s: %w", session.SessionID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("session %s: %w", session.SessionID, ErrNotFound)
	}
	return nil
}

func (s *MongoDBStorage) GetSession(ctx context.Context, sessionID string) (*models.ImportSession, error) {
	return s.findSession(ctx, bson.M{"session_id": sessionID}, nil)
}

func (s *MongoDBStorage) LatestSession(ctx context.Context) (*models.ImportSession, error) {
	return s.findSession(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}}))
}

func (s *MongoDBStorage) findSession(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.ImportSession, error) {
	var session models.ImportSession
	var err error
	if opts != nil {
		err = s.collection("import_session").FindOne(ctx, filter, opts).Decode(&session)
	} else {
		err = s.collection("import_session").FindOne(ctx, filter).Decode(&session)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import session: %w", err)
	}
	return &session, nil
}

func (s *MongoDBStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the mongo client
func (s *MongoDBStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
