package publication

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/modules/notify"
	"github.com/komuness/core/internal/modules/storage/upload"
	"github.com/komuness/core/internal/pkg/pagination"
	"github.com/komuness/core/internal/pkg/response"
	"go.uber.org/zap"
)

// DefaultMaxEdits caps approved edits when no limit is configured.
const DefaultMaxEdits = 3

// Options tunes the moderation rules.
type Options struct {
	MaxEdits           int
	ChargeNoopApproval bool
	StrictFields       bool
	DefaultCategory    string
}

// DefaultOptions returns the rules used when nothing is configured.
func DefaultOptions() Options {
	return Options{MaxEdits: DefaultMaxEdits, ChargeNoopApproval: true}
}

// Service handles publications and their edit moderation workflow.
type Service struct {
	store    Store
	uploads  *upload.Manager
	notifier notify.Notifier
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithOptions(o Options) Option {
	return func(s *Service) {
		if o.MaxEdits < 1 {
			o.MaxEdits = DefaultMaxEdits
		}
		s.opts = o
	}
}

func NewService(store Store, uploads *upload.Manager, opts ...Option) *Service {
	s := &Service{
		store:    store,
		uploads:  uploads,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
		opts:     DefaultOptions(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("PublicationService")
	return s
}

// Options reports the effective moderation rules.
func (s *Service) Options() Options { return s.opts }

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// maxEditsFor returns the cap for pub. A stored zero means the configured default.
func (s *Service) maxEditsFor(pub *models.PublicationModel) int {
	if pub.MaxEdits > 0 {
		return pub.MaxEdits
	}
	return s.opts.MaxEdits
}

// notifyAsync runs fn after the caller's state is committed, detached from
// the request lifetime.
func (s *Service) notifyAsync(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notifier panicked", zap.Any("panic", r))
			}
		}()
		fn(ctx)
	}()
}

// Create validates and stores a new publication owned by actor.
func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (*models.PublicationModel, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}

	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	tag := models.PublicationTag(strings.TrimSpace(in.Tag))
	fields := map[string]string{}
	if title == "" {
		fields["titulo"] = "es requerido"
	}
	if body == "" {
		fields["contenido"] = "es requerido"
	}
	if !tag.Valid() {
		fields["tag"] = "debe ser evento, emprendimiento o publicacion"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Message: "Error de validación en los datos", Fields: fields}
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = s.opts.DefaultCategory
	}
	if category == "" {
		return nil, invalid(`categoria es requerida (envía "categoria" o configura DEFAULT_CATEGORIA_ID en .env)`)
	}

	price := optionalPrice(in.Price)
	if tag.RequiresPrice() && price == nil {
		return nil, invalid("El campo precio regular es obligatorio y debe ser numérico para eventos/emprendimientos.")
	}

	pub := &models.PublicationModel{
		AuthorID:  actor,
		Tag:       tag,
		Published: in.Published,
		MaxEdits:  s.opts.MaxEdits,
		PublicationContent: models.PublicationContent{
			Title:        title,
			Body:         body,
			EventDate:    strings.TrimSpace(in.EventDate),
			Price:        price,
			StudentPrice: optionalPrice(in.StudentPrice),
			SeniorPrice:  optionalPrice(in.SeniorPrice),
			Phone:        ParsePhone(in.Phone),
			CategoryID:   category,
			Links:        models.ExternalLinks{},
			Attachments:  models.Attachments{},
		},
	}
	if t, ok := ParseEventTime(in.EventTime); ok {
		pub.EventTime = t
	}
	if in.Links != nil && strings.TrimSpace(*in.Links) != "" {
		if links, ok := ParseLinks(*in.Links); ok {
			pub.Links = links
		}
	}

	uploaded, err := s.uploads.Upload(ctx, in.Files)
	if err != nil {
		return nil, uploadError(err)
	}
	pub.Attachments = append(pub.Attachments, uploaded...)

	if err := s.store.Create(ctx, pub); err != nil {
		s.uploads.Discard(context.WithoutCancel(ctx), uploaded)
		return nil, err
	}
	s.uploads.Commit(ctx, uploaded)

	s.notifyAsync(ctx, func(ctx context.Context) {
		s.notifier.PublicationCreated(ctx, pub)
	})
	return pub, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.PublicationModel, error) {
	return s.store.Get(ctx, id)
}

// List returns publications newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, q pagination.Query) ([]models.PublicationModel, response.Pagination, error) {
	q = q.Normalize()
	items, total, err := s.store.List(ctx, filter, q)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return items, response.NewPagination(q.Offset, q.Limit, total), nil
}

// ListPending returns publications awaiting review, most recent request first.
func (s *Service) ListPending(ctx context.Context, q pagination.Query) ([]models.PublicationModel, response.Pagination, error) {
	q = q.Normalize()
	items, total, err := s.store.ListPending(ctx, q)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return items, response.NewPagination(q.Offset, q.Limit, total), nil
}

// History returns the edit history of a publication to its author or an admin.
func (s *Service) History(ctx context.Context, id, actor string, isAdmin bool) ([]models.EditHistoryModel, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	pub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && pub.AuthorID != actor {
		return nil, ErrForbidden
	}
	if pub.EditHistory == nil {
		return []models.EditHistoryModel{}, nil
	}
	return pub.EditHistory, nil
}

func (s *Service) SetPublished(ctx context.Context, id string, published bool) (*models.PublicationModel, error) {
	if err := s.store.SetPublished(ctx, id, published); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// AddComment appends a comment by actor and returns the publication with
// its comments.
func (s *Service) AddComment(ctx context.Context, id, actor, body string) (*models.PublicationModel, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalidField("contenido", "es requerido")
	}
	c := &models.CommentModel{AuthorID: actor, Body: body, CreatedAt: s.timestamp()}
	if err := s.store.AddComment(ctx, id, c); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Delete removes a publication, its history, its comments and every stored attachment it references.
func (s *Service) Delete(ctx context.Context, id, actor string, isAdmin bool) error {
	if actor == "" {
		return ErrUnauthenticated
	}
	pub, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && pub.AuthorID != actor {
		return ErrForbidden
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	stored := append(models.Attachments{}, pub.Attachments...)
	stored = append(stored, proposalOnlyAttachments(pub)...)
	s.removeAttachments(ctx, id, stored)
	return nil
}

// removeAttachments deletes stored files no record references any more.
func (s *Service) removeAttachments(ctx context.Context, id string, atts []models.Attachment) {
	if len(atts) == 0 {
		return
	}
	if err := s.uploads.Remove(context.WithoutCancel(ctx), atts); err != nil {
		s.logger.Warn("failed to remove attachments",
			zap.String("publication", id),
			zap.Int("count", len(atts)),
			zap.Error(err),
		)
	}
}

func uploadError(err error) error {
	if errors.Is(err, upload.ErrFileTooBig) || errors.Is(err, upload.ErrBadFileType) {
		return invalidField("archivos", err.Error())
	}
	return err
}

func optionalPrice(v any) *float64 {
	f, ok := ParsePrice(v)
	if !ok {
		return nil
	}
	return &f
}
