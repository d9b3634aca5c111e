package publication

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/komuness/core/internal/models"
	"go.uber.org/zap"
)

// RequestUpdate records an author's proposal for review. It returns the
// publication with the new proposal and the keys of the fields that differ
// from the live values.
func (s *Service) RequestUpdate(ctx context.Context, id, actor string, in EditRequestInput) (pub *models.PublicationModel, changed []string, err error) {
	defer func() {
		editRequestsTotal.WithLabelValues(editRequestResult(err)).Inc()
	}()

	if actor == "" {
		return nil, nil, ErrUnauthenticated
	}
	pub, err = s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if pub.AuthorID != actor {
		return nil, nil, ErrForbidden
	}
	maxEdits := s.maxEditsFor(pub)
	if pub.EditCount >= maxEdits {
		return nil, nil, &LimitError{MaxEdits: maxEdits}
	}
	if pub.HasPending() {
		return nil, nil, ErrConflict
	}

	fields, err := s.proposalFields(pub, in)
	if err != nil {
		return nil, nil, err
	}

	var uploaded []models.Attachment
	if in.KeptImages != nil || len(in.Files) > 0 {
		images := models.Attachments{}
		if in.KeptImages != nil {
			images = ParseKeptImages(*in.KeptImages, pub.Attachments)
		}
		uploaded, err = s.uploads.Upload(ctx, in.Files)
		if err != nil {
			return nil, nil, uploadError(err)
		}
		images = append(images, uploaded...)
		fields.Attachments = &images
	}

	changed = changedKeys(pub, fields)
	if len(changed) == 0 {
		s.uploads.Discard(context.WithoutCancel(ctx), uploaded)
		return nil, nil, ErrNoChanges
	}

	proposal := &models.PendingUpdate{
		ID:             uuid.NewString(),
		ProposalFields: fields,
		RequestedAt:    s.timestamp(),
		RequestedBy:    actor,
	}
	if err := s.store.SubmitProposal(ctx, id, proposal, maxEdits); err != nil {
		s.uploads.Discard(context.WithoutCancel(ctx), uploaded)
		return nil, nil, err
	}
	s.uploads.Commit(ctx, uploaded)

	pub.PendingUpdate = proposal
	pub.PendingUpdateID = &proposal.ID
	requestedAt := proposal.RequestedAt
	pub.LastEditRequest = &requestedAt

	s.logger.Info("edit requested",
		zap.String("publication", id),
		zap.String("proposal", proposal.ID),
		zap.Strings("fields", changed),
	)
	notified := changed
	s.notifyAsync(ctx, func(ctx context.Context) {
		s.notifier.EditRequested(ctx, pub, notified)
	})
	return pub, changed, nil
}

// proposalFields normalizes the submitted values. Images are handled by the caller.
func (s *Service) proposalFields(pub *models.PublicationModel, in EditRequestInput) (models.ProposalFields, error) {
	var f models.ProposalFields

	f.Title = in.Title
	f.Body = in.Body
	f.EventDate = in.EventDate
	f.CategoryID = in.Category

	if in.EventTime != nil {
		if t, ok := ParseEventTime(*in.EventTime); ok {
			f.EventTime = &t
		} else if s.opts.StrictFields && strings.TrimSpace(*in.EventTime) != "" {
			return f, invalidField("horaEvento", "debe tener el formato HH:MM")
		}
	}
	if in.Phone != nil {
		phone := ParsePhone(*in.Phone)
		f.Phone = &phone
	}

	var err error
	if f.Price, err = s.proposedPrice("precio", in.Price); err != nil {
		return f, err
	}
	if f.StudentPrice, err = s.proposedPrice("precioEstudiante", in.StudentPrice); err != nil {
		return f, err
	}
	if f.SeniorPrice, err = s.proposedPrice("precioCiudadanoOro", in.SeniorPrice); err != nil {
		return f, err
	}

	if in.Links == nil || strings.TrimSpace(*in.Links) == "" {
		live := append(models.ExternalLinks{}, pub.Links...)
		f.Links = &live
	} else if links, ok := ParseLinks(*in.Links); ok {
		f.Links = &links
	}
	return f, nil
}

func (s *Service) proposedPrice(field string, v any) (*float64, error) {
	if price := optionalPrice(v); price != nil {
		return price, nil
	}
	if s.opts.StrictFields && !blank(v) {
		return nil, invalidField(field, "debe ser numérico")
	}
	return nil, nil
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	str, ok := v.(string)
	return ok && strings.TrimSpace(str) == ""
}

// Approve applies the pending proposal and appends an approved history entry.
// It returns the updated publication and the labels of the fields that changed.
func (s *Service) Approve(ctx context.Context, id, admin string) (*models.PublicationModel, []string, error) {
	pub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !pub.HasPending() {
		return nil, nil, ErrNoPending
	}
	proposal := pub.PendingUpdate

	apply, labels := diffProposal(pub, proposal.ProposalFields)
	entry := models.EditHistoryModel{
		Data:       models.HistoryData{ProposalFields: proposal.ProposalFields},
		EditedAt:   editedAt(pub),
		EditedBy:   proposal.RequestedBy,
		ApprovedBy: admin,
		ApprovedAt: s.timestamp(),
		Status:     models.EditApproved,
	}
	updated, err := s.store.Resolve(ctx, id, Resolution{
		ProposalID:         proposal.ID,
		Apply:              apply,
		IncrementEditCount: len(labels) > 0 || s.opts.ChargeNoopApproval,
		Entry:              entry,
	})
	if err != nil {
		return nil, nil, err
	}
	editResolutionsTotal.WithLabelValues(string(models.EditApproved)).Inc()

	s.removeAttachments(ctx, id, droppedAttachments(pub.Attachments, updated.Attachments))
	s.logger.Info("edit approved",
		zap.String("publication", id),
		zap.String("proposal", proposal.ID),
		zap.String("admin", admin),
		zap.Strings("fields", labels),
	)
	s.announceResolution(ctx, updated, entry)
	return updated, labels, nil
}

// Reject discards the pending proposal and appends a rejected history entry.
func (s *Service) Reject(ctx context.Context, id, admin, reason string) (*models.PublicationModel, error) {
	pub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !pub.HasPending() {
		return nil, ErrNoPending
	}
	proposal := pub.PendingUpdate

	requestedAt := proposal.RequestedAt
	entry := models.EditHistoryModel{
		Data: models.HistoryData{
			ProposalFields: proposal.ProposalFields,
			RequestedAt:    &requestedAt,
			RequestedBy:    proposal.RequestedBy,
		},
		EditedAt:   editedAt(pub),
		EditedBy:   proposal.RequestedBy,
		ApprovedBy: admin,
		ApprovedAt: s.timestamp(),
		Status:     models.EditRejected,
		Reason:     strings.TrimSpace(reason),
	}
	updated, err := s.store.Resolve(ctx, id, Resolution{ProposalID: proposal.ID, Entry: entry})
	if err != nil {
		return nil, err
	}
	editResolutionsTotal.WithLabelValues(string(models.EditRejected)).Inc()

	s.removeAttachments(ctx, id, proposalOnlyAttachments(pub))
	s.logger.Info("edit rejected",
		zap.String("publication", id),
		zap.String("proposal", proposal.ID),
		zap.String("admin", admin),
	)
	s.announceResolution(ctx, updated, entry)
	return updated, nil
}

// Cancel withdraws the author's pending proposal. Cancelling with nothing
// pending succeeds without changes.
func (s *Service) Cancel(ctx context.Context, id, actor string) (*models.PublicationModel, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	pub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pub.AuthorID != actor {
		return nil, ErrForbidden
	}
	if !pub.HasPending() {
		return pub, nil
	}

	proposal := pub.PendingUpdate
	if err := s.store.ClearProposal(ctx, id, proposal.ID); err != nil {
		if errors.Is(err, ErrNoPending) {
			// resolved by an admin in the meantime
			return s.store.Get(ctx, id)
		}
		return nil, err
	}
	editResolutionsTotal.WithLabelValues("cancelled").Inc()

	s.removeAttachments(ctx, id, proposalOnlyAttachments(pub))
	pub.PendingUpdate = nil
	pub.PendingUpdateID = nil
	pub.LastEditRequest = nil
	return pub, nil
}

func (s *Service) announceResolution(ctx context.Context, pub *models.PublicationModel, entry models.EditHistoryModel) {
	if n := len(pub.EditHistory); n > 0 {
		entry = pub.EditHistory[n-1]
	}
	s.notifyAsync(ctx, func(ctx context.Context) {
		s.notifier.EditResolved(ctx, pub, &entry)
	})
}

func editedAt(pub *models.PublicationModel) time.Time {
	if pub.LastEditRequest != nil {
		return *pub.LastEditRequest
	}
	return pub.PendingUpdate.RequestedAt
}

// changedKeys lists the proposal fields that differ from live, by JSON key.
func changedKeys(pub *models.PublicationModel, f models.ProposalFields) []string {
	changed := []string{}
	for _, d := range fieldDiffs(pub, f) {
		changed = append(changed, d.key)
	}
	return changed
}

// diffProposal keeps only the differing fields and returns their labels.
func diffProposal(pub *models.PublicationModel, f models.ProposalFields) (models.ProposalFields, []string) {
	var apply models.ProposalFields
	labels := []string{}
	for _, d := range fieldDiffs(pub, f) {
		d.set(&apply)
		labels = append(labels, d.label)
	}
	return apply, labels
}

type fieldDiff struct {
	key   string
	label string
	set   func(*models.ProposalFields)
}

// fieldDiffs walks the proposal in field order and reports each present
// field whose value differs from live.
func fieldDiffs(pub *models.PublicationModel, f models.ProposalFields) []fieldDiff {
	var out []fieldDiff
	add := func(key, label string, set func(*models.ProposalFields)) {
		out = append(out, fieldDiff{key: key, label: label, set: set})
	}
	live := pub.PublicationContent

	if f.Title != nil && *f.Title != live.Title {
		add("titulo", "título", func(a *models.ProposalFields) { a.Title = f.Title })
	}
	if f.Body != nil && *f.Body != live.Body {
		add("contenido", "contenido", func(a *models.ProposalFields) { a.Body = f.Body })
	}
	if f.EventDate != nil && *f.EventDate != live.EventDate {
		add("fechaEvento", "fechaEvento", func(a *models.ProposalFields) { a.EventDate = f.EventDate })
	}
	if f.EventTime != nil && *f.EventTime != live.EventTime {
		add("horaEvento", "horaEvento", func(a *models.ProposalFields) { a.EventTime = f.EventTime })
	}
	if f.Phone != nil && *f.Phone != live.Phone {
		add("telefono", "teléfono", func(a *models.ProposalFields) { a.Phone = f.Phone })
	}
	if f.CategoryID != nil && *f.CategoryID != live.CategoryID {
		add("categoria", "categoría", func(a *models.ProposalFields) { a.CategoryID = f.CategoryID })
	}
	if priceChanged(f.Price, live.Price) {
		add("precio", "precio", func(a *models.ProposalFields) { a.Price = f.Price })
	}
	if priceChanged(f.StudentPrice, live.StudentPrice) {
		add("precioEstudiante", "precioEstudiante", func(a *models.ProposalFields) { a.StudentPrice = f.StudentPrice })
	}
	if priceChanged(f.SeniorPrice, live.SeniorPrice) {
		add("precioCiudadanoOro", "precioCiudadanoOro", func(a *models.ProposalFields) { a.SeniorPrice = f.SeniorPrice })
	}
	if f.Links != nil && !sameJSON(emptyLinks(*f.Links), emptyLinks(live.Links)) {
		add("enlacesExternos", "enlaces externos", func(a *models.ProposalFields) { a.Links = f.Links })
	}
	if f.Attachments != nil && !sameJSON(emptyAttachments(*f.Attachments), emptyAttachments(live.Attachments)) {
		add("adjunto", "adjuntos", func(a *models.ProposalFields) { a.Attachments = f.Attachments })
	}
	return out
}

// priceChanged treats an absent live price as different from any proposed one.
func priceChanged(proposed, live *float64) bool {
	if proposed == nil {
		return false
	}
	return live == nil || *proposed != *live
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

func emptyLinks(l models.ExternalLinks) models.ExternalLinks {
	if l == nil {
		return models.ExternalLinks{}
	}
	return l
}

func emptyAttachments(a models.Attachments) models.Attachments {
	if a == nil {
		return models.Attachments{}
	}
	return a
}

// droppedAttachments returns the entries of before missing from after.
func droppedAttachments(before, after []models.Attachment) []models.Attachment {
	keep := make(map[string]struct{}, len(after))
	for _, a := range after {
		keep[a.Key] = struct{}{}
	}
	var dropped []models.Attachment
	for _, a := range before {
		if _, ok := keep[a.Key]; !ok {
			dropped = append(dropped, a)
		}
	}
	return dropped
}

// proposalOnlyAttachments returns the proposal's attachments that are not live.
func proposalOnlyAttachments(pub *models.PublicationModel) []models.Attachment {
	if pub.PendingUpdate == nil || pub.PendingUpdate.Attachments == nil {
		return nil
	}
	return droppedAttachments(*pub.PendingUpdate.Attachments, pub.Attachments)
}
