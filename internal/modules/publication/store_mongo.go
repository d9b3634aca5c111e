package publication

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/pkg/pagination"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps each publication, its proposal and its history in one
// document, so every transition is a single-document write.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// listProjection leaves the embedded arrays out of listings.
var listProjection = bson.M{"editHistory": 0, "comentarios": 0}

func (s *MongoStore) Create(ctx context.Context, pub *models.PublicationModel) error {
	pub.EnsureID()
	now := time.Now().UTC().Truncate(time.Millisecond)
	if pub.CreatedAt.IsZero() {
		pub.CreatedAt = now
	}
	pub.UpdatedAt = now
	pub.PendingUpdate = nil
	pub.PendingUpdateID = nil
	pub.LastEditRequest = nil
	pub.EditHistory = []models.EditHistoryModel{}
	pub.Comments = []models.CommentModel{}
	if pub.Links == nil {
		pub.Links = models.ExternalLinks{}
	}
	if pub.Attachments == nil {
		pub.Attachments = models.Attachments{}
	}

	_, err := s.coll.InsertOne(ctx, pub)
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.PublicationModel, error) {
	var pub models.PublicationModel
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&pub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	syncProposalID(&pub)
	if pub.EditHistory == nil {
		pub.EditHistory = []models.EditHistoryModel{}
	}
	if pub.Comments == nil {
		pub.Comments = []models.CommentModel{}
	}
	return &pub, nil
}

func syncProposalID(pub *models.PublicationModel) {
	if pub.PendingUpdate == nil {
		pub.PendingUpdateID = nil
		pub.LastEditRequest = nil
		return
	}
	id := pub.PendingUpdate.ID
	pub.PendingUpdateID = &id
}

func (s *MongoStore) List(ctx context.Context, filter ListFilter, q pagination.Query) ([]models.PublicationModel, int64, error) {
	return s.page(ctx, listFilter(filter), bson.D{{Key: "createdAt", Value: -1}}, q)
}

func (s *MongoStore) ListPending(ctx context.Context, q pagination.Query) ([]models.PublicationModel, int64, error) {
	return s.page(ctx, pendingFilter(), bson.D{{Key: "lastEditRequest", Value: -1}}, q)
}

func (s *MongoStore) Search(ctx context.Context, f SearchFilter, q pagination.Query) ([]models.PublicationModel, int64, error) {
	return s.page(ctx, searchFilter(f), bson.D{{Key: "createdAt", Value: -1}}, q)
}

func (s *MongoStore) EventsByDate(ctx context.Context, from, until string) ([]models.PublicationModel, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "fechaEvento", Value: 1}}).
		SetProjection(listProjection)
	cur, err := s.coll.Find(ctx, eventsFilter(from, until), opts)
	if err != nil {
		return nil, err
	}
	items := []models.PublicationModel{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	for i := range items {
		syncProposalID(&items[i])
	}
	return items, nil
}

func (s *MongoStore) AddComment(ctx context.Context, id string, c *models.CommentModel) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"comentarios": c}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) page(ctx context.Context, filter bson.M, sort bson.D, q pagination.Query) ([]models.PublicationModel, int64, error) {
	q = q.Normalize()
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit)).
		SetProjection(listProjection)
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	items := []models.PublicationModel{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	for i := range items {
		syncProposalID(&items[i])
	}
	return items, total, nil
}

func (s *MongoStore) History(ctx context.Context, id string) ([]models.EditHistoryModel, error) {
	pub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return pub.EditHistory, nil
}

func (s *MongoStore) SetPublished(ctx context.Context, id string, published bool) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"publicado": published,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SubmitProposal(ctx context.Context, id string, p *models.PendingUpdate, maxEdits int) error {
	res, err := s.coll.UpdateOne(ctx, submitFilter(id, maxEdits), bson.M{"$set": bson.M{
		"pendingUpdate":   p,
		"lastEditRequest": p.RequestedAt,
		"updatedAt":       time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return explainMiss(current, maxEdits)
}

func (s *MongoStore) ClearProposal(ctx context.Context, id, proposalID string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "pendingUpdate.id": proposalID},
		bson.M{"$set": clearedProposalDoc(time.Now().UTC())},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrNoPending
}

func (s *MongoStore) Resolve(ctx context.Context, id string, r Resolution) (*models.PublicationModel, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.PendingUpdate == nil || current.PendingUpdate.ID != r.ProposalID {
		return nil, ErrNoPending
	}

	entry := r.Entry
	entry.Version = len(current.EditHistory) + 1

	var updated models.PublicationModel
	err = s.coll.FindOneAndUpdate(ctx,
		resolveFilter(id, r.ProposalID, len(current.EditHistory)),
		resolveUpdate(r, entry, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("proposal %s was resolved concurrently: %w", r.ProposalID, ErrNoPending)
		}
		return nil, err
	}
	syncProposalID(&updated)
	return &updated, nil
}

func listFilter(f ListFilter) bson.M {
	filter := bson.M{}
	if f.Tag != "" {
		filter["tag"] = f.Tag
	}
	if f.Category != "" {
		filter["categoria"] = f.Category
	}
	if f.Published != nil {
		filter["publicado"] = *f.Published
	}
	return filter
}

// searchFilter matches Text as a literal, case-insensitive substring.
func searchFilter(f SearchFilter) bson.M {
	filter := bson.M{}
	if text := strings.TrimSpace(f.Text); text != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}
		if f.TitleOnly {
			filter["titulo"] = re
		} else {
			filter["$or"] = bson.A{bson.M{"titulo": re}, bson.M{"contenido": re}}
		}
	}
	if f.Tag != "" {
		filter["tag"] = f.Tag
	}
	if f.Category != "" {
		filter["categoria"] = f.Category
	}
	if f.AuthorID != "" {
		filter["autor"] = f.AuthorID
	}
	if f.PublishedOnly {
		filter["publicado"] = true
	}
	return filter
}

func eventsFilter(from, until string) bson.M {
	return bson.M{
		"tag":         models.TagEvent,
		"publicado":   true,
		"fechaEvento": bson.M{"$gte": from, "$lt": until},
	}
}

func pendingFilter() bson.M {
	return bson.M{"pendingUpdate": bson.M{"$ne": nil}}
}

// submitFilter matches only when no proposal is pending and the cap is not reached.
func submitFilter(id string, maxEdits int) bson.M {
	return bson.M{
		"_id":           id,
		"pendingUpdate": nil,
		"editCount":     bson.M{"$lt": maxEdits},
	}
}

// resolveFilter pins both the proposal and the history length read before the write.
func resolveFilter(id, proposalID string, historyLen int) bson.M {
	return bson.M{
		"_id":              id,
		"pendingUpdate.id": proposalID,
		"editHistory":      bson.M{"$size": historyLen},
	}
}

func resolveUpdate(r Resolution, entry models.EditHistoryModel, now time.Time) bson.M {
	set := clearedProposalDoc(now)
	for _, f := range appliedFields(r.Apply) {
		set[f.key] = f.value
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"editHistory": entry},
	}
	if r.IncrementEditCount {
		update["$inc"] = bson.M{"editCount": 1}
	}
	return update
}

func clearedProposalDoc(now time.Time) bson.M {
	return bson.M{
		"pendingUpdate":   nil,
		"lastEditRequest": nil,
		"updatedAt":       now,
	}
}
