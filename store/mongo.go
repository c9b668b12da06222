package store

import (
	"context"
	"errors"
	"fmt"

	"greenexchange/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the MongoDB-backed Store.
type MongoStore struct {
	client          *mongo.Client
	users           *mongoUsers
	trees           *mongoTrees
	sessions        *mongoSessions
	useTransactions bool
}

// NewMongoStore creates a MongoStore on the given database. When
// useTransactions is false, WithTransaction runs its callback directly, which
// is required on standalone servers that do not support transactions.
func NewMongoStore(client *mongo.Client, dbName string, useTransactions bool) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:          client,
		users:           &mongoUsers{collection: db.Collection("users")},
		trees:           &mongoTrees{collection: db.Collection("trees")},
		sessions:        &mongoSessions{collection: db.Collection("sessions")},
		useTransactions: useTransactions,
	}
}

func (s *MongoStore) Users() UserStore       { return s.users }
func (s *MongoStore) Trees() TreeStore       { return s.trees }
func (s *MongoStore) Sessions() SessionStore { return s.sessions }

// EnsureIndexes creates the unique email index and the session expiry TTL index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	_, err = s.sessions.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_ttl"),
	})
	if err != nil {
		return fmt.Errorf("sessions index: %w", err)
	}
	return nil
}

func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.useTransactions {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

type mongoUsers struct {
	collection *mongo.Collection
}

func (u *mongoUsers) Create(ctx context.Context, user *models.User) error {
	if user.Trees == nil {
		user.Trees = []primitive.ObjectID{}
	}
	if user.Certificates == nil {
		user.Certificates = []primitive.ObjectID{}
	}
	result, err := u.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	user.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (u *mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return u.findOne(ctx, bson.M{"_id": id})
}

func (u *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.findOne(ctx, bson.M{"email": email})
}

func (u *mongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := u.collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *mongoUsers) AppendTree(ctx context.Context, userID, treeID primitive.ObjectID) error {
	return u.update(ctx, userID, bson.M{"$push": bson.M{"trees": treeID}})
}

func (u *mongoUsers) AddCertificate(ctx context.Context, userID, treeID primitive.ObjectID) error {
	return u.update(ctx, userID, bson.M{"$addToSet": bson.M{"certificates": treeID}})
}

func (u *mongoUsers) RemoveCertificate(ctx context.Context, userID, treeID primitive.ObjectID) error {
	return u.update(ctx, userID, bson.M{"$pull": bson.M{"certificates": treeID}})
}

func (u *mongoUsers) update(ctx context.Context, userID primitive.ObjectID, update bson.M) error {
	result, err := u.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (u *mongoUsers) ClearTreeRefs(ctx context.Context) error {
	_, err := u.collection.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{
		"trees":        bson.A{},
		"certificates": bson.A{},
	}})
	return err
}

func (u *mongoUsers) Count(ctx context.Context) (int64, error) {
	return u.collection.CountDocuments(ctx, bson.M{})
}

type mongoTrees struct {
	collection *mongo.Collection
}

func (t *mongoTrees) Create(ctx context.Context, tree *models.Tree) error {
	result, err := t.collection.InsertOne(ctx, tree)
	if err != nil {
		return err
	}
	tree.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (t *mongoTrees) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Tree, error) {
	var tree models.Tree
	err := t.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tree)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tree, nil
}

func (t *mongoTrees) FindMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Tree, error) {
	if len(ids) == 0 {
		return []models.Tree{}, nil
	}
	found, err := t.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Tree, len(found))
	for _, tree := range found {
		byID[tree.ID] = tree
	}
	trees := make([]models.Tree, 0, len(ids))
	for _, id := range ids {
		if tree, ok := byID[id]; ok {
			trees = append(trees, tree)
		}
	}
	return trees, nil
}

func (t *mongoTrees) List(ctx context.Context) ([]models.Tree, error) {
	return t.find(ctx, bson.M{})
}

func (t *mongoTrees) find(ctx context.Context, filter bson.M) ([]models.Tree, error) {
	cursor, err := t.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	trees := []models.Tree{}
	if err := cursor.All(ctx, &trees); err != nil {
		return nil, err
	}
	return trees, nil
}

func (t *mongoTrees) Transition(ctx context.Context, id primitive.ObjectID, change models.StatusChange) error {
	set := bson.M{"status": change.To}
	if change.ClearOwner {
		set["owner"] = nil
	}
	result, err := t.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": change.From},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}
	count, err := t.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (t *mongoTrees) CountByStatus(ctx context.Context, status models.TreeStatus) (int64, error) {
	return t.collection.CountDocuments(ctx, bson.M{"status": status})
}

func (t *mongoTrees) Count(ctx context.Context) (int64, error) {
	return t.collection.CountDocuments(ctx, bson.M{})
}

func (t *mongoTrees) DeleteAll(ctx context.Context) (int64, error) {
	result, err := t.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

type mongoSessions struct {
	collection *mongo.Collection
}

func (s *mongoSessions) Create(ctx context.Context, session *models.Session) error {
	_, err := s.collection.InsertOne(ctx, session)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *mongoSessions) Find(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *mongoSessions) Delete(ctx context.Context, id string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
