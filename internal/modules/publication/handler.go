package publication

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/middleware"
	"github.com/komuness/core/internal/modules/storage/upload"
	"github.com/komuness/core/internal/pkg/pagination"
	"github.com/komuness/core/internal/pkg/response"
)

const (
	msgNotFound        = "Publicación no encontrada"
	msgProposalMissing = "Publicación o solicitud de edición no encontrada"
	msgNoPending       = "No hay solicitud de edición pendiente"
	msgEditForbidden   = "Solo el autor puede editar esta publicación"
	msgCancelForbidden = "Solo el autor puede cancelar esta solicitud"
	msgDeleteForbidden = "Solo el autor o un administrador puede eliminar esta publicación"
	msgNoMatches       = "No se encontraron publicaciones con esos criterios"

	searchDefaultLimit = 12
	searchMaxLimit     = 50
)

type Handler struct {
	svc     *Service
	verbose bool
}

// NewHandler builds the HTTP surface. verbose exposes error causes and
// validation details, for development.
func NewHandler(svc *Service, verbose bool) *Handler {
	return &Handler{svc: svc, verbose: verbose}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/publicaciones")

	admin := g.Group("/admin", authMW, adminMW)
	admin.GET("/pending-updates", h.listPending)
	admin.PUT("/:id/approve-update", h.approve)
	admin.PUT("/:id/reject-update", h.reject)
	admin.PATCH("/:id/publish", h.publish)

	g.GET("", h.list)
	g.POST("", authMW, h.create)
	g.GET("/search", h.search)
	g.GET("/search/titulo", h.searchTitles)
	g.GET("/search/sugerencias", h.suggest)
	g.GET("/filter", h.filter)
	g.GET("/eventos", h.eventsByDate)
	g.GET("/:id", h.get)
	g.POST("/:id/comentarios", authMW, h.addComment)
	g.DELETE("/:id", authMW, h.delete)
	g.PUT("/:id/request-update", authMW, h.requestUpdate)
	g.DELETE("/:id/request-update", authMW, h.cancel)
	g.PUT("/:id/cancel-update", authMW, h.cancel)
	g.GET("/:id/edit-history", authMW, h.history)
}

func (h *Handler) list(c *gin.Context) {
	filter := ListFilter{
		Tag:      strings.TrimSpace(c.Query("tag")),
		Category: strings.TrimSpace(c.Query("categoria")),
	}
	if raw, ok := c.GetQuery("publicado"); ok {
		published := raw == "true"
		filter.Published = &published
	}

	items, pag, err := h.svc.List(c.Request.Context(), filter, pagination.FromContext(c))
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	q := pagination.FromContextLimit(c, searchDefaultLimit, searchMaxLimit)
	items, pag, err := h.svc.Search(c.Request.Context(), term,
		strings.TrimSpace(c.Query("tag")), strings.TrimSpace(c.Query("categoria")), q)
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	c.JSON(http.StatusOK, searchResponse{Data: items, Pagination: pag, SearchTerm: term})
}

func (h *Handler) searchTitles(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	q := pagination.FromContextLimit(c, searchDefaultLimit, searchMaxLimit)
	items, pag, err := h.svc.SearchTitles(c.Request.Context(), term, q)
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	c.JSON(http.StatusOK, searchResponse{Data: items, Pagination: pag, SearchTerm: term})
}

func (h *Handler) suggest(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, total, err := h.svc.Suggest(c.Request.Context(), term, limit)
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	c.JSON(http.StatusOK, suggestResponse{Data: items, SearchTerm: term, Total: total})
}

func (h *Handler) filter(c *gin.Context) {
	items, err := h.svc.Filter(c.Request.Context(), c.Query("texto"), c.Query("tag"), c.Query("autor"))
	if err != nil {
		h.fail(c, err, msgNoMatches)
		return
	}
	response.OK(c, items)
}

func (h *Handler) eventsByDate(c *gin.Context) {
	items, err := h.svc.EventsByDate(c.Request.Context(), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	response.OK(c, items)
}

func (h *Handler) addComment(c *gin.Context) {
	var dto commentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Cuerpo de la solicitud inválido")
		return
	}
	pub, err := h.svc.AddComment(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), dto.Body)
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	response.Created(c, pub)
}

func (h *Handler) get(c *gin.Context) {
	pub, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	response.OK(c, pub)
}

func (h *Handler) create(c *gin.Context) {
	form, err := readForm(c)
	if err != nil {
		response.BadRequest(c, "Cuerpo de la solicitud inválido")
		return
	}

	in := CreateInput{
		Title:        form.text("titulo"),
		Body:         form.text("contenido"),
		Tag:          form.text("tag"),
		EventDate:    form.text("fechaEvento"),
		EventTime:    form.text("horaEvento"),
		Phone:        form.text("telefono"),
		Category:     form.text("categoria"),
		Price:        form.value("precio"),
		StudentPrice: form.value("precioEstudiante"),
		SeniorPrice:  form.value("precioCiudadanoOro"),
		Links:        form.raw("enlacesExternos"),
		Published:    fmt.Sprint(form.value("publicado")) == "true",
		Files:        form.files("archivos", "imagenes"),
	}
	pub, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	response.Created(c, pub)
}

func (h *Handler) delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), middleware.IsAdmin(c))
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			response.ForbiddenMsg(c, msgDeleteForbidden)
			return
		}
		h.fail(c, err, msgNotFound)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Publicación eliminada correctamente"})
}

func (h *Handler) requestUpdate(c *gin.Context) {
	form, err := readForm(c)
	if err != nil {
		response.BadRequest(c, "Cuerpo de la solicitud inválido")
		return
	}

	in := EditRequestInput{
		Title:        form.optional("titulo"),
		Body:         form.optional("contenido"),
		EventDate:    form.optional("fechaEvento"),
		EventTime:    form.optional("horaEvento"),
		Phone:        form.optional("telefono"),
		Category:     form.optional("categoria"),
		Price:        form.value("precio"),
		StudentPrice: form.value("precioEstudiante"),
		SeniorPrice:  form.value("precioCiudadanoOro"),
		Links:        form.raw("enlacesExternos"),
		KeptImages:   form.raw("imagenesMantenidas"),
		Files:        form.files("archivos", "imagenes"),
	}
	pub, changed, err := h.svc.RequestUpdate(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), in)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			response.ForbiddenMsg(c, msgEditForbidden)
			return
		}
		h.fail(c, err, msgNotFound)
		return
	}
	c.JSON(http.StatusOK, editRequestResponse{
		Message:       "Solicitud de edición enviada para revisión",
		Publication:   pub,
		ChangedFields: changed,
	})
}

func (h *Handler) cancel(c *gin.Context) {
	pub, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			response.ForbiddenMsg(c, msgCancelForbidden)
			return
		}
		h.fail(c, err, msgNotFound)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Solicitud de edición cancelada", Publication: pub})
}

func (h *Handler) history(c *gin.Context) {
	items, err := h.svc.History(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), middleware.IsAdmin(c))
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	response.OK(c, items)
}

func (h *Handler) listPending(c *gin.Context) {
	items, pag, err := h.svc.ListPending(c.Request.Context(), pagination.FromContext(c))
	if err != nil {
		h.fail(c, err, msgProposalMissing)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) approve(c *gin.Context) {
	pub, labels, err := h.svc.Approve(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		h.failMissing(c, err, msgNotFound, msgNoPending)
		return
	}
	c.JSON(http.StatusOK, approveResponse{
		Message:       "Actualización aprobada exitosamente. Campos actualizados: " + strings.Join(labels, ", "),
		Publication:   pub,
		UpdatedFields: labels,
	})
}

func (h *Handler) reject(c *gin.Context) {
	var dto rejectDTO
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, "Cuerpo de la solicitud inválido")
			return
		}
	}
	reason := strings.TrimSpace(dto.Reason)

	pub, err := h.svc.Reject(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), reason)
	if err != nil {
		h.fail(c, err, msgProposalMissing)
		return
	}
	message := "Actualización rechazada"
	if reason != "" {
		message += ": " + reason
	}
	c.JSON(http.StatusOK, messageResponse{Message: message, Publication: pub})
}

func (h *Handler) publish(c *gin.Context) {
	var dto publishDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "El campo publicado es obligatorio")
		return
	}
	pub, err := h.svc.SetPublished(c.Request.Context(), c.Param("id"), *dto.Published)
	if err != nil {
		h.fail(c, err, msgNotFound)
		return
	}
	response.OK(c, pub)
}

// fail maps service errors onto the error envelope.
func (h *Handler) fail(c *gin.Context, err error, notFound string) {
	h.failMissing(c, err, notFound, notFound)
}

// failMissing is fail with a separate message for a missing proposal.
func (h *Handler) failMissing(c *gin.Context, err error, notFound, noPending string) {
	var (
		limit *LimitError
		verr  *ValidationError
	)
	switch {
	case errors.Is(err, ErrUnauthenticated):
		response.Unauthorized(c)
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c)
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, notFound)
	case errors.Is(err, ErrNoPending):
		response.NotFoundMsg(c, noPending)
	case errors.As(err, &limit):
		response.BadRequest(c, limit.Error())
	case errors.Is(err, ErrNoChanges):
		response.BadRequest(c, "No se detectaron cambios en la publicación")
	case errors.Is(err, ErrConflict):
		response.Conflict(c, "Ya existe una solicitud de edición pendiente de aprobación")
	case errors.As(err, &verr):
		var extra gin.H
		if h.verbose && len(verr.Fields) > 0 {
			extra = gin.H{"detalles": verr.Fields}
		}
		response.Error(c, http.StatusBadRequest, verr.Message, extra)
	default:
		_ = c.Error(err)
		response.InternalError(c, err, h.verbose)
	}
}

// requestForm reads fields from multipart, urlencoded or JSON bodies alike.
type requestForm struct {
	c    *gin.Context
	json map[string]any
	mp   *multipart.Form
}

func readForm(c *gin.Context) (*requestForm, error) {
	f := &requestForm{c: c}
	switch c.ContentType() {
	case gin.MIMEJSON:
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&f.json); err != nil {
			return nil, err
		}
		if f.json == nil {
			f.json = map[string]any{}
		}
	case gin.MIMEMultipartPOSTForm:
		form, err := c.MultipartForm()
		if err != nil {
			return nil, err
		}
		f.mp = form
	}
	return f, nil
}

// value returns the submitted value, or nil when the field was not sent.
func (f *requestForm) value(name string) any {
	if f.json != nil {
		return f.json[name]
	}
	if v, ok := f.c.GetPostForm(name); ok {
		return v
	}
	return nil
}

func (f *requestForm) optional(name string) *string {
	switch v := f.value(name).(type) {
	case nil:
		return nil
	case string:
		return &v
	case json.Number:
		s := v.String()
		return &s
	case bool:
		s := strconv.FormatBool(v)
		return &s
	}
	return nil
}

func (f *requestForm) text(name string) string {
	if v := f.optional(name); v != nil {
		return *v
	}
	return ""
}

// raw returns a field holding JSON. Structured JSON body values are re-encoded.
func (f *requestForm) raw(name string) *string {
	v := f.value(name)
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil
	}
	s := strings.TrimSpace(buf.String())
	return &s
}

func (f *requestForm) files(fields ...string) []upload.File {
	if f.mp == nil {
		return nil
	}
	var out []upload.File
	for _, field := range fields {
		for _, fh := range f.mp.File[field] {
			out = append(out, upload.FromHeader(fh))
		}
	}
	return out
}
