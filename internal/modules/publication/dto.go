package publication

import (
	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/modules/storage/upload"
	"github.com/komuness/core/internal/pkg/response"
)

// EditRequestInput is an author's edit proposal as received. A nil field
// was not sent. Prices stay untyped until ParsePrice sees them.
type EditRequestInput struct {
	Title        *string
	Body         *string
	EventDate    *string
	EventTime    *string
	Phone        *string
	Category     *string
	Price        any
	StudentPrice any
	SeniorPrice  any
	// Links is the raw enlacesExternos JSON.
	Links *string
	// KeptImages is the raw imagenesMantenidas JSON.
	KeptImages *string
	Files      []upload.File
}

// CreateInput is a new publication as received.
type CreateInput struct {
	Title        string
	Body         string
	Tag          string
	EventDate    string
	EventTime    string
	Phone        string
	Category     string
	Price        any
	StudentPrice any
	SeniorPrice  any
	Links        *string
	Published    bool
	Files        []upload.File
}

type rejectDTO struct {
	Reason string `json:"reason"`
}

type publishDTO struct {
	Published *bool `json:"publicado" binding:"required"`
}

type editRequestResponse struct {
	Message       string                   `json:"message"`
	Publication   *models.PublicationModel `json:"publicacion"`
	ChangedFields []string                 `json:"camposCambiados"`
}

type approveResponse struct {
	Message       string                   `json:"message"`
	Publication   *models.PublicationModel `json:"publicacion"`
	UpdatedFields []string                 `json:"camposActualizados"`
}

type messageResponse struct {
	Message     string                   `json:"message"`
	Publication *models.PublicationModel `json:"publicacion,omitempty"`
}

type commentDTO struct {
	Body string `json:"contenido"`
}

type searchResponse struct {
	Data       []models.PublicationModel `json:"data"`
	Pagination response.Pagination       `json:"pagination"`
	SearchTerm string                    `json:"searchTerm"`
}

type suggestResponse struct {
	Data       []models.PublicationModel `json:"data"`
	SearchTerm string                    `json:"searchTerm"`
	Total      int64                     `json:"total"`
}
