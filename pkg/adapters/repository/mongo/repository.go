package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	profileHandleIndex = "uq_profiles_handle"
	profileEmailIndex  = "uq_profiles_email"
)

type MongoRepository struct {
	client   *mongo.Client
	profiles *mongo.Collection
	visits   *mongo.Collection
}

type profileDoc struct {
	ID          string    `bson:"_id"`
	Handle      string    `bson:"handle"`
	Name        string    `bson:"name"`
	Email       string    `bson:"email"`
	Password    string    `bson:"password"`
	Description string    `bson:"description"`
	Image       string    `bson:"image"`
	Links       []linkDoc `bson:"links"`
	Stats       statsDoc  `bson:"stats"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type linkDoc struct {
	ID      int    `bson:"id"`
	Name    string `bson:"name"`
	URL     string `bson:"url"`
	Enabled bool   `bson:"enabled"`
}

type statsDoc struct {
	TotalVisits    int64        `bson:"totalVisits"`
	UniqueVisitors []string     `bson:"uniqueVisitors"`
	VisitHistory   []historyDoc `bson:"visitHistory"`
}

type historyDoc struct {
	VisitorID string    `bson:"visitorId,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

// visitor and ip are omitted when empty so the partial indexes skip them
type visitDoc struct {
	ID        string    `bson:"_id"`
	Profile   string    `bson:"profile"`
	Visitor   string    `bson:"visitor,omitempty"`
	IP        string    `bson:"ip,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

// NewMongoRepository connects to MongoDB and ensures the collections' indexes
func NewMongoRepository(ctx context.Context, uri, database string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	repo := &MongoRepository{
		client:   client,
		profiles: db.Collection("profiles"),
		visits:   db.Collection("visits"),
	}

	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "handle", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(profileHandleIndex),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(profileEmailIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create profile indexes: %w", err)
	}

	// A sparse compound index would still index every visit because profile
	// is always present, so uniqueness is scoped with partial filters.
	_, err = r.visits.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "profile", Value: 1}, {Key: "visitor", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_visits_profile_visitor").
				SetPartialFilterExpression(bson.M{"visitor": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "profile", Value: 1}, {Key: "ip", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_visits_profile_ip").
				SetPartialFilterExpression(bson.M{"ip": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "profile", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create visit indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// --- Profile Repository Implementation ---

func toProfileDoc(p *domain.Profile) profileDoc {
	doc := profileDoc{
		ID:          p.ID,
		Handle:      p.Handle,
		Name:        p.Name,
		Email:       p.Email,
		Password:    p.Password,
		Description: p.Description,
		Image:       p.Image,
		Links:       toLinkDocs(p.Links),
		Stats: statsDoc{
			TotalVisits:    p.Stats.TotalVisits,
			UniqueVisitors: p.Stats.UniqueVisitors,
			VisitHistory:   []historyDoc{},
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if doc.Stats.UniqueVisitors == nil {
		doc.Stats.UniqueVisitors = []string{}
	}
	for _, h := range p.Stats.VisitHistory {
		doc.Stats.VisitHistory = append(doc.Stats.VisitHistory, historyDoc{VisitorID: h.VisitorID, Timestamp: h.Timestamp})
	}
	return doc
}

func toLinkDocs(links []domain.SocialLink) []linkDoc {
	docs := make([]linkDoc, 0, len(links))
	for _, l := range links {
		docs = append(docs, linkDoc{ID: l.ID, Name: l.Name, URL: l.URL, Enabled: l.Enabled})
	}
	return docs
}

func (d profileDoc) toDomain() *domain.Profile {
	p := &domain.Profile{
		ID:          d.ID,
		Handle:      d.Handle,
		Name:        d.Name,
		Email:       d.Email,
		Password:    d.Password,
		Description: d.Description,
		Image:       d.Image,
		Links:       []domain.SocialLink{},
		Stats: domain.ProfileStats{
			TotalVisits:    d.Stats.TotalVisits,
			UniqueVisitors: d.Stats.UniqueVisitors,
		},
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for _, l := range d.Links {
		p.Links = append(p.Links, domain.SocialLink{ID: l.ID, Name: l.Name, URL: l.URL, Enabled: l.Enabled})
	}
	for _, h := range d.Stats.VisitHistory {
		p.Stats.VisitHistory = append(p.Stats.VisitHistory, domain.VisitHistory{VisitorID: h.VisitorID, Timestamp: h.Timestamp.UTC()})
	}
	if p.Stats.UniqueVisitors == nil {
		p.Stats.UniqueVisitors = []string{}
	}
	return p
}

func profileConflict(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), profileEmailIndex) {
		return domain.ErrEmailTaken
	}
	return domain.ErrHandleTaken
}

func (r *MongoRepository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	if _, err := r.profiles.InsertOne(ctx, toProfileDoc(profile)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return profileConflict(err)
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (r *MongoRepository) findProfile(ctx context.Context, filter bson.M) (*domain.Profile, error) {
	var doc profileDoc
	err := r.profiles.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *MongoRepository) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	return r.findProfile(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetProfileByHandle(ctx context.Context, handle string) (*domain.Profile, error) {
	return r.findProfile(ctx, bson.M{"handle": handle})
}

func (r *MongoRepository) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.findProfile(ctx, bson.M{"email": email})
}

func (r *MongoRepository) UpdateProfile(ctx context.Context, profile *domain.Profile) error {
	update := bson.M{"$set": bson.M{
		"handle":      profile.Handle,
		"name":        profile.Name,
		"description": profile.Description,
		"image":       profile.Image,
		"links":       toLinkDocs(profile.Links),
		"updatedAt":   profile.UpdatedAt,
	}}
	if _, err := r.profiles.UpdateByID(ctx, profile.ID, update); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return profileConflict(err)
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (r *MongoRepository) Dump(ctx context.Context) ([]domain.Profile, error) {
	cursor, err := r.profiles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []profileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}

	profiles := make([]domain.Profile, 0, len(docs))
	for _, d := range docs {
		profiles = append(profiles, *d.toDomain())
	}
	return profiles, nil
}

// --- Visit Repository Implementation ---

func (d visitDoc) toDomain() domain.Visit {
	return domain.Visit{
		ID:        d.ID,
		ProfileID: d.Profile,
		VisitorID: d.Visitor,
		IP:        d.IP,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func (r *MongoRepository) FindVisit(ctx context.Context, profileID string, key domain.VisitorKey) (*domain.Visit, error) {
	filter := bson.M{"profile": profileID, "ip": key.IP}
	if key.Authenticated() {
		filter = bson.M{"profile": profileID, "visitor": key.VisitorID}
	}

	var doc visitDoc
	err := r.visits.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find visit: %w", err)
	}
	v := doc.toDomain()
	return &v, nil
}

func (r *MongoRepository) RecordVisit(ctx context.Context, visit *domain.Visit) error {
	doc := visitDoc{
		ID:        visit.ID,
		Profile:   visit.ProfileID,
		Visitor:   visit.VisitorID,
		IP:        visit.IP,
		CreatedAt: visit.CreatedAt,
	}

	// The insert goes first so a losing racer never touches the counters
	if _, err := r.visits.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrVisitConflict
		}
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	update := bson.M{
		"$inc": bson.M{"stats.totalVisits": 1},
		"$push": bson.M{"stats.visitHistory": historyDoc{
			VisitorID: visit.VisitorID,
			Timestamp: visit.CreatedAt,
		}},
	}
	if visit.VisitorID != "" {
		update["$addToSet"] = bson.M{"stats.uniqueVisitors": visit.VisitorID}
	}

	res, err := r.profiles.UpdateByID(ctx, visit.ProfileID, update)
	if err == nil && res.MatchedCount == 0 {
		err = domain.ErrProfileNotFound
	}
	if err != nil {
		// Remove the visit so the viewer is not marked as seen but never counted
		if derr := r.removeVisit(ctx, doc.ID); derr != nil {
			return fmt.Errorf("failed to update profile stats: %w (visit cleanup: %v)", err, derr)
		}
		return fmt.Errorf("failed to update profile stats: %w", err)
	}
	return nil
}

// removeVisit runs on its own deadline since ctx may be what just expired
func (r *MongoRepository) removeVisit(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, err := r.visits.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) CountVisits(ctx context.Context, profileID string) (int64, error) {
	count, err := r.visits.CountDocuments(ctx, bson.M{"profile": profileID})
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

func (r *MongoRepository) CountVisitsBetween(ctx context.Context, profileID string, from, to time.Time) (int64, error) {
	count, err := r.visits.CountDocuments(ctx, bson.M{
		"profile":   profileID,
		"createdAt": bson.M{"$gte": from, "$lte": to},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

func (r *MongoRepository) RecentVisits(ctx context.Context, profileID string, limit int) ([]domain.Visit, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.visits.Find(ctx, bson.M{"profile": profileID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []visitDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode visits: %w", err)
	}

	visits := make([]domain.Visit, 0, len(docs))
	for _, d := range docs {
		visits = append(visits, d.toDomain())
	}
	return visits, nil
}

func (r *MongoRepository) DailyVisits(ctx context.Context, profileID string, from, to time.Time) ([]domain.DailyVisit, error) {
	pipeline := []bson.M{
		{
			"$match": bson.M{
				"profile":   profileID,
				"createdAt": bson.M{"$gte": from, "$lte": to},
			},
		},
		{
			// $dateToString formats in UTC unless a timezone is given
			"$group": bson.M{
				"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"}},
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$sort": bson.M{"_id": 1},
		},
	}

	cursor, err := r.visits.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily visits: %w", err)
	}
	defer cursor.Close(ctx)

	days := []domain.DailyVisit{}
	for cursor.Next(ctx) {
		var result struct {
			Date  string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode daily visits: %w", err)
		}
		days = append(days, domain.DailyVisit{Date: result.Date, Count: result.Count})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("daily visits cursor: %w", err)
	}
	return days, nil
}

// Ensure interface compliance
var _ ports.Repository = (*MongoRepository)(nil)
