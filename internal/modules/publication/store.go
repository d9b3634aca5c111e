package publication

import (
	"context"

	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/pkg/pagination"
)

// Store persists publications. Every proposal transition is a single
// conditional write so concurrent requests cannot clobber each other.
type Store interface {
	Create(ctx context.Context, pub *models.PublicationModel) error
	// Get returns the publication with its edit history, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.PublicationModel, error)
	List(ctx context.Context, filter ListFilter, q pagination.Query) ([]models.PublicationModel, int64, error)
	ListPending(ctx context.Context, q pagination.Query) ([]models.PublicationModel, int64, error)
	History(ctx context.Context, id string) ([]models.EditHistoryModel, error)
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error

	// Search matches publications against f, newest first.
	Search(ctx context.Context, f SearchFilter, q pagination.Query) ([]models.PublicationModel, int64, error)
	// EventsByDate returns published events dated in [from, until), soonest first.
	// Both bounds are YYYY-MM-DD.
	EventsByDate(ctx context.Context, from, until string) ([]models.PublicationModel, error)
	// AddComment appends c to the publication, or returns ErrNotFound.
	AddComment(ctx context.Context, id string, c *models.CommentModel) error

	// SubmitProposal stores p only while no proposal is pending and
	// editCount < maxEdits. A lost race yields ErrConflict or ErrLimitExceeded.
	SubmitProposal(ctx context.Context, id string, p *models.PendingUpdate, maxEdits int) error
	// ClearProposal drops the pending proposal if it is still proposalID.
	ClearProposal(ctx context.Context, id, proposalID string) error
	// Resolve consumes the pending proposal res.ProposalID, applies res and
	// appends the history entry with the next version.
	Resolve(ctx context.Context, id string, res Resolution) (*models.PublicationModel, error)
}

// ListFilter narrows the public listing.
type ListFilter struct {
	Tag       string
	Category  string
	Published *bool
}

// SearchFilter is a case-insensitive text search. Empty fields match anything.
type SearchFilter struct {
	// Text is matched against the title, and the body unless TitleOnly is set.
	Text          string
	TitleOnly     bool
	Tag           string
	Category      string
	AuthorID      string
	PublishedOnly bool
}

// Resolution describes how a pending proposal is consumed.
type Resolution struct {
	ProposalID         string
	Apply              models.ProposalFields
	IncrementEditCount bool
	Entry              models.EditHistoryModel
}

// fieldValue is one live column touched by an approval.
type fieldValue struct {
	column string
	key    string
	value  any
}

// appliedFields lists the non-nil proposal fields with their SQL column and document key.
func appliedFields(p models.ProposalFields) []fieldValue {
	var out []fieldValue
	add := func(column, key string, v any) {
		out = append(out, fieldValue{column: column, key: key, value: v})
	}
	if p.Title != nil {
		add("titulo", "titulo", *p.Title)
	}
	if p.Body != nil {
		add("contenido", "contenido", *p.Body)
	}
	if p.EventDate != nil {
		add("fecha_evento", "fechaEvento", *p.EventDate)
	}
	if p.EventTime != nil {
		add("hora_evento", "horaEvento", *p.EventTime)
	}
	if p.Price != nil {
		add("precio", "precio", *p.Price)
	}
	if p.StudentPrice != nil {
		add("precio_estudiante", "precioEstudiante", *p.StudentPrice)
	}
	if p.SeniorPrice != nil {
		add("precio_ciudadano_oro", "precioCiudadanoOro", *p.SeniorPrice)
	}
	if p.Phone != nil {
		add("telefono", "telefono", *p.Phone)
	}
	if p.CategoryID != nil {
		add("categoria", "categoria", *p.CategoryID)
	}
	if p.Links != nil {
		links := *p.Links
		if links == nil {
			links = models.ExternalLinks{}
		}
		add("enlaces_externos", "enlacesExternos", links)
	}
	if p.Attachments != nil {
		atts := *p.Attachments
		if atts == nil {
			atts = models.Attachments{}
		}
		add("adjunto", "adjunto", atts)
	}
	return out
}

// explainMiss turns a failed conditional proposal write into a domain error.
func explainMiss(pub *models.PublicationModel, maxEdits int) error {
	if pub.HasPending() {
		return ErrConflict
	}
	if pub.EditCount >= maxEdits {
		return &LimitError{MaxEdits: maxEdits}
	}
	return ErrConflict
}
