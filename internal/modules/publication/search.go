package publication

import (
	"context"
	"strings"
	"time"

	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/pkg/pagination"
	"github.com/komuness/core/internal/pkg/response"
)

const (
	SuggestDefaultLimit = 5
	SuggestMaxLimit     = 50

	eventDateLayout = "2006-01-02"
)

// Search returns published publications whose title or body contains
// text, optionally narrowed by tag and category.
func (s *Service) Search(ctx context.Context, text, tag, category string, q pagination.Query) ([]models.PublicationModel, response.Pagination, error) {
	return s.search(ctx, SearchFilter{
		Text:          text,
		Tag:           tag,
		Category:      category,
		PublishedOnly: true,
	}, q)
}

// SearchTitles returns published publications whose title contains text.
func (s *Service) SearchTitles(ctx context.Context, text string, q pagination.Query) ([]models.PublicationModel, response.Pagination, error) {
	if strings.TrimSpace(text) == "" {
		return nil, response.Pagination{}, errSearchTermRequired
	}
	return s.search(ctx, SearchFilter{Text: text, TitleOnly: true, PublishedOnly: true}, q)
}

// Suggest returns up to limit published titles matching text, for
// autocomplete, with the total number of matches.
func (s *Service) Suggest(ctx context.Context, text string, limit int) ([]models.PublicationModel, int64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, errSearchTermRequired
	}
	if limit < 1 {
		limit = SuggestDefaultLimit
	}
	if limit > SuggestMaxLimit {
		limit = SuggestMaxLimit
	}
	return s.store.Search(ctx, SearchFilter{Text: text, TitleOnly: true, PublishedOnly: true},
		pagination.Query{Limit: limit})
}

// Filter looks publications up by text, tag or author regardless of their
// published state. At least one criterion is required; no match is ErrNotFound.
func (s *Service) Filter(ctx context.Context, text, tag, author string) ([]models.PublicationModel, error) {
	f := SearchFilter{
		Text:     strings.TrimSpace(text),
		Tag:      strings.TrimSpace(tag),
		AuthorID: strings.TrimSpace(author),
	}
	if f.Text == "" && f.Tag == "" && f.AuthorID == "" {
		return nil, invalid("Debe proporcionar al menos un parámetro de búsqueda (titulo, tag o autor)")
	}
	items, _, err := s.store.Search(ctx, f, pagination.Query{Limit: pagination.MaxLimit})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

// EventsByDate returns published events dated between from and to,
// both inclusive and formatted YYYY-MM-DD, soonest first.
func (s *Service) EventsByDate(ctx context.Context, from, to string) ([]models.PublicationModel, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, invalid("Se requieren startDate y endDate")
	}
	start, err := time.Parse(eventDateLayout, from)
	if err != nil {
		return nil, invalidField("startDate", "debe tener el formato YYYY-MM-DD")
	}
	end, err := time.Parse(eventDateLayout, to)
	if err != nil {
		return nil, invalidField("endDate", "debe tener el formato YYYY-MM-DD")
	}
	if end.Before(start) {
		return []models.PublicationModel{}, nil
	}
	return s.store.EventsByDate(ctx, start.Format(eventDateLayout), end.AddDate(0, 0, 1).Format(eventDateLayout))
}

func (s *Service) search(ctx context.Context, f SearchFilter, q pagination.Query) ([]models.PublicationModel, response.Pagination, error) {
	q = q.Normalize()
	items, total, err := s.store.Search(ctx, f, q)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return items, response.NewPagination(q.Offset, q.Limit, total), nil
}

var errSearchTermRequired = invalid("El parámetro de búsqueda (q) es requerido")
