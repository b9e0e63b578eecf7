package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"designsense-go/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	CollectionQuestions    = "design_test_questions"
	CollectionImages       = "images"
	CollectionSupplemental = "supplemental_questions"
	CollectionAttempts     = "attempts"
	CollectionApplicants   = "applicants"
)

// MongoStore is the MongoDB-backed Store.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// EnsureIndexes creates the uniqueness constraints submissions rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(CollectionAttempts).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "applicantEmail", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("session_applicant_unique"),
		},
		{
			Keys:    bson.D{{Key: "applicantEmail", Value: 1}, {Key: "attemptNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("applicant_attempt_number_unique"),
		},
		{
			Keys:    bson.D{{Key: "applicantEmail", Value: 1}, {Key: "submittedAt", Value: -1}},
			Options: options.Index().SetName("applicant_submitted"),
		},
	})
	if err != nil {
		return fmt.Errorf("create attempt indexes: %w", err)
	}

	_, err = s.db.Collection(CollectionApplicants).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create applicant index: %w", err)
	}

	_, err = s.db.Collection(CollectionImages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "imageId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("image_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("create image index: %w", err)
	}
	return nil
}

func (s *MongoStore) FindAllQuestions(ctx context.Context) ([]models.Question, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "questionNumber", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}})
	cur, err := s.db.Collection(CollectionQuestions).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}

	var questions []models.Question
	if err := cur.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return questions, nil
}

func (s *MongoStore) FindSupplemental(ctx context.Context) ([]models.SupplementalQuestion, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "questionNumber", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}})
	cur, err := s.db.Collection(CollectionSupplemental).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find supplemental questions: %w", err)
	}

	var docs []models.SupplementalQuestion
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode supplemental questions: %w", err)
	}
	return docs, nil
}

func (s *MongoStore) FindSupplementalByNumber(ctx context.Context, questionNumber int) (*models.SupplementalQuestion, error) {
	var doc models.SupplementalQuestion
	err := s.db.Collection(CollectionSupplemental).
		FindOne(ctx, bson.D{{Key: "questionNumber", Value: questionNumber}}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find supplemental question %d: %w", questionNumber, err)
	}
	return &doc, nil
}

func (s *MongoStore) FindImagesByIDs(ctx context.Context, ids []string) ([]models.Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter := bson.D{{Key: "imageId", Value: bson.D{{Key: "$in", Value: ids}}}}
	cur, err := s.db.Collection(CollectionImages).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}

	var images []models.Image
	if err := cur.All(ctx, &images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

func (s *MongoStore) FindAttempt(ctx context.Context, sessionID, email string) (*models.Attempt, error) {
	var attempt models.Attempt
	filter := bson.D{{Key: "sessionId", Value: sessionID}, {Key: "applicantEmail", Value: email}}
	err := s.db.Collection(CollectionAttempts).FindOne(ctx, filter).Decode(&attempt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find attempt: %w", err)
	}
	return &attempt, nil
}

func (s *MongoStore) InsertAttempt(ctx context.Context, attempt *models.Attempt) error {
	_, err := s.db.Collection(CollectionAttempts).InsertOne(ctx, attempt)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateAttempt
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *MongoStore) FindApplicantByEmail(ctx context.Context, email string) (*models.Applicant, error) {
	var applicant models.Applicant
	err := s.db.Collection(CollectionApplicants).
		FindOne(ctx, bson.D{{Key: "email", Value: email}}).
		Decode(&applicant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find applicant: %w", err)
	}
	return &applicant, nil
}

// UpsertApplicant increments attemptCount with FindOneAndUpdate and returns
// the updated count.
func (s *MongoStore) UpsertApplicant(ctx context.Context, u ApplicantUpsert) (int, error) {
	filter := bson.D{{Key: "email", Value: u.Email}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "name", Value: u.Name},
			{Key: "updatedAt", Value: u.Now},
		}},
		{Key: "$inc", Value: bson.D{{Key: "attemptCount", Value: 1}}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "createdAt", Value: u.Now},
		}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var applicant models.Applicant
	coll := s.db.Collection(CollectionApplicants)
	err := coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&applicant)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the insert race for a new email; the document exists now.
		err = coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&applicant)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert applicant: %w", err)
	}
	return applicant.AttemptCount, nil
}

func (s *MongoStore) ReleaseAttemptNumber(ctx context.Context, email string, attemptNumber int) error {
	_, err := s.db.Collection(CollectionApplicants).UpdateOne(ctx,
		bson.D{{Key: "email", Value: email}, {Key: "attemptCount", Value: attemptNumber}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "attemptCount", Value: -1}}}},
	)
	if err != nil {
		return fmt.Errorf("release attempt number: %w", err)
	}
	return nil
}

// RecordAttempt claims the number first so a failed insert leaves no attempt
// behind, then releases the claim.
func (s *MongoStore) RecordAttempt(ctx context.Context, u ApplicantUpsert, build BuildAttempt) (*models.Attempt, error) {
	return RecordWithRelease(ctx, s, u, build)
}

// ReplaceQuestionBank drops the questions, images and supplemental documents
// and writes the new bank. Attempts and applicants are untouched.
func (s *MongoStore) ReplaceQuestionBank(ctx context.Context, bank *models.QuestionBank, now time.Time) error {
	questions := make([]any, 0, len(bank.Questions))
	for _, q := range bank.Questions {
		questions = append(questions, questionDoc{Question: q, CreatedAt: now, UpdatedAt: now})
	}
	images := make([]any, 0)
	for _, img := range bank.Images() {
		images = append(images, imageDoc{Image: img, CreatedAt: now, UpdatedAt: now})
	}
	supplemental := make([]any, 0, len(bank.Supplemental))
	for _, doc := range bank.Supplemental {
		supplemental = append(supplemental, supplementalDoc{SupplementalQuestion: doc, CreatedAt: now, UpdatedAt: now})
	}

	for name, docs := range map[string][]any{
		CollectionQuestions:    questions,
		CollectionImages:       images,
		CollectionSupplemental: supplemental,
	} {
		coll := s.db.Collection(name)
		if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
		if len(docs) == 0 {
			continue
		}
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("insert %s: %w", name, err)
		}
	}
	return nil
}

// Stored documents carry timestamps the read models do not expose.

type questionDoc struct {
	models.Question `bson:",inline"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

type imageDoc struct {
	models.Image `bson:",inline"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

type supplementalDoc struct {
	models.SupplementalQuestion `bson:",inline"`
	CreatedAt                   time.Time `bson:"createdAt"`
	UpdatedAt                   time.Time `bson:"updatedAt"`
}
