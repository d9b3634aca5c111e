package models

import "time"

// PublicationTag classifies a publication listing.
type PublicationTag string

const (
	TagEvent       PublicationTag = "evento"
	TagBusiness    PublicationTag = "emprendimiento"
	TagPublication PublicationTag = "publicacion"
)

// Valid reports whether the tag is one of the known listing kinds.
func (t PublicationTag) Valid() bool {
	switch t {
	case TagEvent, TagBusiness, TagPublication:
		return true
	}
	return false
}

// RequiresPrice reports whether listings of this kind must carry a price.
func (t PublicationTag) RequiresPrice() bool {
	return t == TagEvent || t == TagBusiness
}

// ExternalLink is a named link shown on a publication.
type ExternalLink struct {
	Name string `json:"nombre" bson:"nombre"`
	URL  string `json:"url"    bson:"url"`
}

// Attachment is a stored image referenced by a publication.
type Attachment struct {
	URL string `json:"url" bson:"url"`
	Key string `json:"key" bson:"key"`
}

// PublicationContent holds the fields an author may propose to change.
type PublicationContent struct {
	Title        string        `json:"titulo"             bson:"titulo"             gorm:"column:titulo;not null"`
	Body         string        `json:"contenido"          bson:"contenido"          gorm:"column:contenido;type:text"`
	EventDate    string        `json:"fechaEvento"        bson:"fechaEvento"        gorm:"column:fecha_evento;size:32"`
	EventTime    string        `json:"horaEvento"         bson:"horaEvento"         gorm:"column:hora_evento;size:5"`
	Price        *float64      `json:"precio"             bson:"precio"             gorm:"column:precio"`
	StudentPrice *float64      `json:"precioEstudiante"   bson:"precioEstudiante"   gorm:"column:precio_estudiante"`
	SeniorPrice  *float64      `json:"precioCiudadanoOro" bson:"precioCiudadanoOro" gorm:"column:precio_ciudadano_oro"`
	Phone        string        `json:"telefono"           bson:"telefono"           gorm:"column:telefono;size:64"`
	CategoryID   string        `json:"categoria"          bson:"categoria"          gorm:"column:categoria;size:64;index"`
	Links        ExternalLinks `json:"enlacesExternos"    bson:"enlacesExternos"    gorm:"column:enlaces_externos;type:text"`
	Attachments  Attachments   `json:"adjunto"            bson:"adjunto"            gorm:"column:adjunto;type:text"`
}

// PublicationModel is a listed item (event, business entry or post) owned by an author.
type PublicationModel struct {
	Base               `bson:",inline"`
	AuthorID           string         `json:"autor"           bson:"autor"           gorm:"column:autor;size:64;index;not null"`
	Tag                PublicationTag `json:"tag"             bson:"tag"             gorm:"column:tag;size:32;index"`
	Published          bool           `json:"publicado"       bson:"publicado"       gorm:"column:publicado;index;default:false"`
	PublicationContent `bson:",inline"`
	EditCount          int            `json:"editCount"       bson:"editCount"       gorm:"column:edit_count;not null;default:0"`
	MaxEdits           int            `json:"maxEdits"        bson:"maxEdits"        gorm:"column:max_edits;not null;default:3"`
	PendingUpdate      *PendingUpdate `json:"pendingUpdate"   bson:"pendingUpdate"   gorm:"column:pending_update;type:text"`
	PendingUpdateID    *string        `json:"-"               bson:"-"               gorm:"column:pending_update_id;size:36;index"`
	LastEditRequest    *time.Time     `json:"lastEditRequest" bson:"lastEditRequest" gorm:"column:last_edit_request;index"`

	EditHistory []EditHistoryModel `json:"editHistory,omitempty" bson:"editHistory" gorm:"-"`
	Comments    []CommentModel     `json:"comentarios,omitempty" bson:"comentarios" gorm:"-"`
}

func (PublicationModel) TableName() string { return "publications" }

// HasPending reports whether an edit proposal is awaiting review.
func (p *PublicationModel) HasPending() bool {
	return p.PendingUpdate != nil
}

// ProposalFields is the subset of content fields carried by a proposal.
// A nil field is not part of the proposal.
type ProposalFields struct {
	Title        *string        `json:"titulo,omitempty"             bson:"titulo,omitempty"`
	Body         *string        `json:"contenido,omitempty"          bson:"contenido,omitempty"`
	EventDate    *string        `json:"fechaEvento,omitempty"        bson:"fechaEvento,omitempty"`
	EventTime    *string        `json:"horaEvento,omitempty"         bson:"horaEvento,omitempty"`
	Price        *float64       `json:"precio,omitempty"             bson:"precio,omitempty"`
	StudentPrice *float64       `json:"precioEstudiante,omitempty"   bson:"precioEstudiante,omitempty"`
	SeniorPrice  *float64       `json:"precioCiudadanoOro,omitempty" bson:"precioCiudadanoOro,omitempty"`
	Phone        *string        `json:"telefono,omitempty"           bson:"telefono,omitempty"`
	CategoryID   *string        `json:"categoria,omitempty"          bson:"categoria,omitempty"`
	Links        *ExternalLinks `json:"enlacesExternos,omitempty"    bson:"enlacesExternos,omitempty"`
	Attachments  *Attachments   `json:"adjunto,omitempty"            bson:"adjunto,omitempty"`
}

// PendingUpdate is the single in-flight proposal on a publication.
type PendingUpdate struct {
	ID             string `json:"id" bson:"id"`
	ProposalFields `bson:",inline"`
	RequestedAt    time.Time `json:"requestedAt" bson:"requestedAt"`
	RequestedBy    string    `json:"requestedBy" bson:"requestedBy"`
}

// EditStatus is the outcome of a resolved proposal.
type EditStatus string

const (
	EditApproved EditStatus = "approved"
	EditRejected EditStatus = "rejected"
)

// HistoryData is the proposal snapshot kept in a history entry.
// Rejected entries keep the requester metadata as well.
type HistoryData struct {
	ProposalFields `bson:",inline"`
	RequestedAt    *time.Time `json:"requestedAt,omitempty" bson:"requestedAt,omitempty"`
	RequestedBy    string     `json:"requestedBy,omitempty" bson:"requestedBy,omitempty"`
}

// EditHistoryModel is an append-only record of a resolved proposal.
type EditHistoryModel struct {
	ID            uint        `json:"-"                bson:"-"                gorm:"primaryKey;autoIncrement"`
	PublicationID string      `json:"-"                bson:"-"                gorm:"column:publication_id;type:char(36);not null;uniqueIndex:idx_publication_version"`
	Version       int         `json:"version"          bson:"version"          gorm:"not null;uniqueIndex:idx_publication_version"`
	Data          HistoryData `json:"data"             bson:"data"             gorm:"type:text"`
	EditedAt      time.Time   `json:"editedAt"         bson:"editedAt"`
	EditedBy      string      `json:"editedBy"         bson:"editedBy"         gorm:"size:64"`
	ApprovedBy    string      `json:"approvedBy"       bson:"approvedBy"       gorm:"size:64"`
	ApprovedAt    time.Time   `json:"approvedAt"       bson:"approvedAt"`
	Status        EditStatus  `json:"status"           bson:"status"           gorm:"size:16;index"`
	Reason        string      `json:"reason,omitempty" bson:"reason,omitempty" gorm:"type:text"`
}

func (EditHistoryModel) TableName() string { return "publication_edit_histories" }

// CommentModel is a reader comment on a publication.
type CommentModel struct {
	ID            uint      `json:"-"         bson:"-"         gorm:"primaryKey;autoIncrement"`
	PublicationID string    `json:"-"         bson:"-"         gorm:"column:publication_id;type:char(36);not null;index"`
	AuthorID      string    `json:"autor"     bson:"autor"     gorm:"column:autor;size:64;not null"`
	Body          string    `json:"contenido" bson:"contenido" gorm:"column:contenido;type:text;not null"`
	CreatedAt     time.Time `json:"fecha"     bson:"fecha"     gorm:"column:fecha;index"`
}

func (CommentModel) TableName() string { return "publication_comments" }
