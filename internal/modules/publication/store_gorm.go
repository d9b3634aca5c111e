package publication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/pkg/pagination"
	"gorm.io/gorm"
)

// GormStore keeps publications in SQL. The pending proposal is a JSON column
// guarded by pending_update_id; history lives in its own table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, pub *models.PublicationModel) error {
	pub.PendingUpdate = nil
	pub.PendingUpdateID = nil
	pub.LastEditRequest = nil
	return s.db.WithContext(ctx).Create(pub).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.PublicationModel, error) {
	pub, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	history, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	pub.EditHistory = history

	comments := []models.CommentModel{}
	if err := s.db.WithContext(ctx).
		Where("publication_id = ?", id).
		Order("fecha ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	pub.Comments = comments
	return pub, nil
}

func (s *GormStore) find(tx *gorm.DB, id string) (*models.PublicationModel, error) {
	var pub models.PublicationModel
	if err := tx.First(&pub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalizeLoaded(&pub)
	return &pub, nil
}

// normalizeLoaded drops the zero proposal gorm allocates for a NULL column.
func normalizeLoaded(pub *models.PublicationModel) {
	if pub.PendingUpdateID == nil {
		pub.PendingUpdate = nil
		pub.LastEditRequest = nil
	}
}

func (s *GormStore) List(ctx context.Context, filter ListFilter, q pagination.Query) ([]models.PublicationModel, int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.PublicationModel{}).Order("created_at DESC")
	if filter.Tag != "" {
		tx = tx.Where("tag = ?", filter.Tag)
	}
	if filter.Category != "" {
		tx = tx.Where("categoria = ?", filter.Category)
	}
	if filter.Published != nil {
		tx = tx.Where("publicado = ?", *filter.Published)
	}
	return s.page(tx, q)
}

func (s *GormStore) ListPending(ctx context.Context, q pagination.Query) ([]models.PublicationModel, int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.PublicationModel{}).
		Where("pending_update_id IS NOT NULL").
		Order("last_edit_request DESC")
	return s.page(tx, q)
}

func (s *GormStore) Search(ctx context.Context, f SearchFilter, q pagination.Query) ([]models.PublicationModel, int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.PublicationModel{}).Order("created_at DESC")
	if text := strings.TrimSpace(f.Text); text != "" {
		like := likePattern(text)
		if f.TitleOnly {
			tx = tx.Where("LOWER(titulo) LIKE ? ESCAPE '!'", like)
		} else {
			tx = tx.Where("(LOWER(titulo) LIKE ? ESCAPE '!' OR LOWER(contenido) LIKE ? ESCAPE '!')", like, like)
		}
	}
	if f.Tag != "" {
		tx = tx.Where("tag = ?", f.Tag)
	}
	if f.Category != "" {
		tx = tx.Where("categoria = ?", f.Category)
	}
	if f.AuthorID != "" {
		tx = tx.Where("autor = ?", f.AuthorID)
	}
	if f.PublishedOnly {
		tx = tx.Where("publicado = ?", true)
	}
	return s.page(tx, q)
}

// likePattern builds a lower-cased substring pattern with '!' as escape.
func likePattern(text string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(text)) + "%"
}

func (s *GormStore) EventsByDate(ctx context.Context, from, until string) ([]models.PublicationModel, error) {
	items := []models.PublicationModel{}
	err := s.db.WithContext(ctx).
		Where("tag = ? AND publicado = ?", models.TagEvent, true).
		Where("fecha_evento >= ? AND fecha_evento < ?", from, until).
		Order("fecha_evento ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		normalizeLoaded(&items[i])
	}
	return items, nil
}

func (s *GormStore) AddComment(ctx context.Context, id string, c *models.CommentModel) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.find(tx, id); err != nil {
			return err
		}
		c.ID = 0
		c.PublicationID = id
		return tx.Create(c).Error
	})
}

func (s *GormStore) page(tx *gorm.DB, q pagination.Query) ([]models.PublicationModel, int64, error) {
	var items []models.PublicationModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		normalizeLoaded(&items[i])
	}
	return items, pag.Total, nil
}

func (s *GormStore) History(ctx context.Context, id string) ([]models.EditHistoryModel, error) {
	history := []models.EditHistoryModel{}
	err := s.db.WithContext(ctx).
		Where("publication_id = ?", id).
		Order("version ASC").
		Find(&history).Error
	return history, err
}

func (s *GormStore) SetPublished(ctx context.Context, id string, published bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.find(tx, id); err != nil {
			return err
		}
		return tx.Model(&models.PublicationModel{}).
			Where("id = ?", id).
			Update("publicado", published).Error
	})
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.PublicationModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("publication_id = ?", id).Delete(&models.EditHistoryModel{}).Error; err != nil {
			return err
		}
		return tx.Where("publication_id = ?", id).Delete(&models.CommentModel{}).Error
	})
}

func (s *GormStore) SubmitProposal(ctx context.Context, id string, p *models.PendingUpdate, maxEdits int) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.PublicationModel{}).
		Where("id = ? AND pending_update_id IS NULL AND edit_count < ?", id, maxEdits).
		Updates(map[string]interface{}{
			"pending_update":    p,
			"pending_update_id": p.ID,
			"last_edit_request": p.RequestedAt,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := s.find(db, id)
	if err != nil {
		return err
	}
	return explainMiss(current, maxEdits)
}

func (s *GormStore) ClearProposal(ctx context.Context, id, proposalID string) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.PublicationModel{}).
		Where("id = ? AND pending_update_id = ?", id, proposalID).
		Updates(clearedProposal())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := s.find(db, id); err != nil {
		return err
	}
	return ErrNoPending
}

func (s *GormStore) Resolve(ctx context.Context, id string, r Resolution) (*models.PublicationModel, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := clearedProposal()
		for _, f := range appliedFields(r.Apply) {
			updates[f.column] = f.value
		}
		if r.IncrementEditCount {
			updates["edit_count"] = gorm.Expr("edit_count + 1")
		}

		res := tx.Model(&models.PublicationModel{}).
			Where("id = ? AND pending_update_id = ?", id, r.ProposalID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			if _, err := s.find(tx, id); err != nil {
				return err
			}
			return ErrNoPending
		}

		var count int64
		if err := tx.Model(&models.EditHistoryModel{}).Where("publication_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		entry := r.Entry
		entry.ID = 0
		entry.PublicationID = id
		entry.Version = int(count) + 1
		if err := tx.Create(&entry).Error; err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("history version %d already taken: %w", entry.Version, ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func clearedProposal() map[string]interface{} {
	return map[string]interface{}{
		"pending_update":    nil,
		"pending_update_id": nil,
		"last_edit_request": nil,
		"updated_at":        time.Now().UTC(),
	}
}

// isDuplicateKey detects unique index violations from MySQL (1062) and SQLite.
func isDuplicateKey(err error) bool {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
