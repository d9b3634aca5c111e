package publication

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/middleware"
	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/pkg/jwt"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h *harness, verbose bool) *gin.Engine {
	r := gin.New()
	NewHandler(h.svc, verbose).RegisterRoutes(r.Group("/api"), middleware.Auth(), middleware.RequireAdmin())
	return r
}

// newDedupedRouter mounts the routes behind the same write middleware as the server.
func newDedupedRouter(t *testing.T, h *harness) *gin.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	api := r.Group("/api", middleware.OptionalAuth(), middleware.Idempotence(rdb))
	NewHandler(h.svc, false).RegisterRoutes(api, middleware.Auth(), middleware.RequireAdmin())
	return r
}

func token(t *testing.T, uid string, role jwt.Role) string {
	t.Helper()
	tok, err := jwt.Sign(uid, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func call(t *testing.T, r http.Handler, method, path, auth, contentType string, body []byte) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("archivos", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestHandlerEditRequestLifecycle(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h, false)
	pub := seedPublication(t, h.store)
	author := token(t, "author-1", jwt.RoleBasic)
	admin := token(t, "admin-1", jwt.RoleAdmin)
	base := "/api/publicaciones/" + pub.ID

	body, ct := multipartBody(t, map[string]string{
		"titulo":          "Feria renovada",
		"precio":          "₡2,500",
		"enlacesExternos": `[{"nombre":"Correo","url":"feria@komuness.cr"}]`,
	}, map[string]string{"cartel.png": "png"})
	status, out := call(t, r, http.MethodPut, base+"/request-update", author, ct, body)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "Solicitud de edición enviada para revisión", out["message"])
	assert.Equal(t, []any{"titulo", "precio", "enlacesExternos", "adjunto"}, out["camposCambiados"])
	proposal := out["publicacion"].(map[string]any)["pendingUpdate"].(map[string]any)
	assert.Equal(t, "Feria renovada", proposal["titulo"])

	status, out = call(t, r, http.MethodPut, base+"/request-update", author, ct, body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Ya existe una solicitud de edición pendiente de aprobación", out["message"])

	status, _ = call(t, r, http.MethodGet, "/api/publicaciones/admin/pending-updates", author, "", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/admin/pending-updates?limit=5", admin, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)
	assert.Equal(t, map[string]any{"offset": 0.0, "limit": 5.0, "total": 1.0, "pages": 1.0}, out["pagination"])

	status, out = call(t, r, http.MethodPut, "/api/publicaciones/admin/"+pub.ID+"/approve-update", admin, "", nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "Actualización aprobada exitosamente. Campos actualizados: título, precio, enlaces externos, adjuntos", out["message"])
	assert.Equal(t, []any{"título", "precio", "enlaces externos", "adjuntos"}, out["camposActualizados"])
	live := out["publicacion"].(map[string]any)
	assert.Equal(t, "Feria renovada", live["titulo"])
	assert.Equal(t, 2500.0, live["precio"])
	assert.Nil(t, live["pendingUpdate"])

	status, out = call(t, r, http.MethodPut, "/api/publicaciones/admin/"+pub.ID+"/approve-update", admin, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No hay solicitud de edición pendiente", out["message"])

	status, out = call(t, r, http.MethodPut, "/api/publicaciones/admin/missing/approve-update", admin, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Publicación no encontrada", out["message"])

	status, out = call(t, r, http.MethodGet, base+"/edit-history", author, "", nil)
	require.Equal(t, http.StatusOK, status)
	history := out["data"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "approved", history[0].(map[string]any)["status"])
}

func TestHandlerRejectAndCancel(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h, false)
	pub := seedPublication(t, h.store)
	author := token(t, "author-1", jwt.RoleBasic)
	admin := token(t, "admin-1", jwt.RoleAdmin)
	base := "/api/publicaciones/" + pub.ID
	form := []byte("contenido=Nuevo+texto")
	const urlencoded = "application/x-www-form-urlencoded"

	status, _ := call(t, r, http.MethodPut, base+"/request-update", author, urlencoded, form)
	require.Equal(t, http.StatusOK, status)

	status, out := call(t, r, http.MethodPut, "/api/publicaciones/admin/"+pub.ID+"/reject-update", admin,
		"application/json", []byte(`{"reason":"Falta información"}`))
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "Actualización rechazada: Falta información", out["message"])

	status, _ = call(t, r, http.MethodPut, base+"/request-update", author, urlencoded, form)
	require.Equal(t, http.StatusOK, status)

	status, out = call(t, r, http.MethodPut, base+"/cancel-update", token(t, "other", jwt.RoleBasic), "", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Solo el autor puede cancelar esta solicitud", out["message"])

	status, out = call(t, r, http.MethodDelete, base+"/request-update", author, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Solicitud de edición cancelada", out["message"])
	assert.Nil(t, out["publicacion"].(map[string]any)["pendingUpdate"])

	status, out = call(t, r, http.MethodPut, "/api/publicaciones/admin/"+pub.ID+"/reject-update", admin, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Publicación o solicitud de edición no encontrada", out["message"])
}

func TestHandlerErrorMapping(t *testing.T) {
	h := newHarness(t, WithOptions(Options{MaxEdits: 3, StrictFields: true}))
	pub := seedPublication(t, h.store)
	author := token(t, "author-1", jwt.RoleBasic)
	base := "/api/publicaciones/" + pub.ID
	const urlencoded = "application/x-www-form-urlencoded"

	r := newRouter(h, false)
	status, _ := call(t, r, http.MethodPut, base+"/request-update", "", urlencoded, []byte("titulo=x"))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, out := call(t, r, http.MethodPut, base+"/request-update", token(t, "other", jwt.RoleBasic), urlencoded, []byte("titulo=x"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Solo el autor puede editar esta publicación", out["message"])

	status, out = call(t, r, http.MethodPut, "/api/publicaciones/missing/request-update", author, urlencoded, []byte("titulo=x"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Publicación no encontrada", out["message"])

	status, out = call(t, r, http.MethodPut, base+"/request-update", author, urlencoded, []byte("titulo="+pub.Title))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No se detectaron cambios en la publicación", out["message"])

	status, out = call(t, r, http.MethodPut, base+"/request-update", author, urlencoded, []byte("precio=abc"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotContains(t, out, "detalles")

	verbose := newRouter(h, true)
	status, out = call(t, verbose, http.MethodPut, base+"/request-update", author, urlencoded, []byte("precio=abc"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"precio": "debe ser numérico"}, out["detalles"])

	require.NoError(t, h.store.db.Model(&models.PublicationModel{}).
		Where("id = ?", pub.ID).Update("edit_count", 3).Error)
	status, out = call(t, r, http.MethodPut, base+"/request-update", author, urlencoded, []byte("titulo=y"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Has alcanzado el límite máximo de 3 ediciones para esta publicación", out["message"])
}

func TestHandlerCreateListPublishDelete(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h, false)
	author := token(t, "author-1", jwt.RoleBasic)
	admin := token(t, "admin-1", jwt.RoleAdmin)

	status, out := call(t, r, http.MethodPost, "/api/publicaciones", author, "application/json",
		[]byte(`{"titulo":"Taller","contenido":"Cerámica","tag":"evento","categoria":"arte"}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "El campo precio regular es obligatorio y debe ser numérico para eventos/emprendimientos.", out["message"])

	status, out = call(t, r, http.MethodPost, "/api/publicaciones", author, "application/json", []byte(`{
		"titulo":"Taller","contenido":"Cerámica","tag":"evento","categoria":"arte",
		"precio":5000,"horaEvento":"18:00",
		"enlacesExternos":[{"nombre":"Tel","url":"88888888"}]
	}`))
	require.Equal(t, http.StatusCreated, status, out)
	id := out["id"].(string)
	assert.Equal(t, 5000.0, out["precio"])
	assert.Equal(t, false, out["publicado"])
	links := out["enlacesExternos"].([]any)
	assert.Equal(t, "tel:88888888", links[0].(map[string]any)["url"])

	status, out = call(t, r, http.MethodPatch, "/api/publicaciones/admin/"+id+"/publish", admin, "application/json", []byte(`{"publicado":true}`))
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, true, out["publicado"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones?tag=evento&publicado=true", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	status, out = call(t, r, http.MethodGet, "/api/publicaciones?publicado=false", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["data"])

	status, _ = call(t, r, http.MethodGet, "/api/publicaciones/"+id, "", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, out = call(t, r, http.MethodDelete, "/api/publicaciones/"+id, token(t, "other", jwt.RoleBasic), "", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, out = call(t, r, http.MethodDelete, "/api/publicaciones/"+id, author, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Publicación eliminada correctamente", out["message"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/"+id, "", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.True(t, strings.HasPrefix(out["message"].(string), "Publicación no encontrada"))
}

func TestHandlerRepeatedModerationBehindIdempotence(t *testing.T) {
	h := newHarness(t)
	r := newDedupedRouter(t, h)
	pub := seedPublication(t, h.store)
	author := token(t, "author-1", jwt.RoleBasic)
	admin := token(t, "admin-1", jwt.RoleAdmin)
	base := "/api/publicaciones/" + pub.ID
	approve := "/api/publicaciones/admin/" + pub.ID + "/approve-update"
	const urlencoded = "application/x-www-form-urlencoded"

	for _, title := range []string{"Uno", "Dos"} {
		status, out := call(t, r, http.MethodPut, base+"/request-update", author, urlencoded, []byte("titulo="+title))
		require.Equal(t, http.StatusOK, status, out)
		status, out = call(t, r, http.MethodPut, approve, admin, "", nil)
		require.Equal(t, http.StatusOK, status, out)
		assert.Equal(t, title, out["publicacion"].(map[string]any)["titulo"])
	}

	form := []byte("contenido=Otra+vez")
	for i := 0; i < 2; i++ {
		status, out := call(t, r, http.MethodPut, base+"/request-update", author, urlencoded, form)
		require.Equal(t, http.StatusOK, status, out)
		status, out = call(t, r, http.MethodDelete, base+"/request-update", author, "", nil)
		require.Equal(t, http.StatusOK, status, out)
	}

	body := []byte(`{"titulo":"Charla","contenido":"Historia local","tag":"publicacion","categoria":"cultura"}`)
	status, out := call(t, r, http.MethodPost, "/api/publicaciones", author, "application/json", body)
	require.Equal(t, http.StatusCreated, status, out)
	status, _ = call(t, r, http.MethodPost, "/api/publicaciones", author, "application/json", body)
	assert.Equal(t, http.StatusConflict, status)
}

func TestHandlerSearchEventsAndComments(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h, false)
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) { p.Published = true })
	seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.AuthorID = "author-2"
		p.Title = "Borrador"
	})

	status, out := call(t, r, http.MethodGet, "/api/publicaciones/search?q=feria&limit=100", "", "", nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "feria", out["searchTerm"])
	assert.Len(t, out["data"], 1)
	assert.Equal(t, map[string]any{"offset": 0.0, "limit": 50.0, "total": 1.0, "pages": 1.0}, out["pagination"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/search/titulo", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "El parámetro de búsqueda (q) es requerido", out["message"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/search/titulo?q=FERIA", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 12.0, out["pagination"].(map[string]any)["limit"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/search/sugerencias?q=fer", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["total"])
	assert.Equal(t, "fer", out["searchTerm"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/filter", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Debe proporcionar al menos un parámetro de búsqueda (titulo, tag o autor)", out["message"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/filter?autor=author-2", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/filter?texto=inexistente", "", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No se encontraron publicaciones con esos criterios", out["message"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/eventos?startDate=2026-11-01", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Se requieren startDate y endDate", out["message"])

	status, out = call(t, r, http.MethodGet, "/api/publicaciones/eventos?startDate=2026-11-01&endDate=2026-11-01", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	path := "/api/publicaciones/" + pub.ID + "/comentarios"
	status, _ = call(t, r, http.MethodPost, path, "", "application/json", []byte(`{"contenido":"Hola"}`))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, out = call(t, r, http.MethodPost, path, token(t, "reader-1", jwt.RoleBasic), "application/json", []byte(`{"contenido":"Hola"}`))
	require.Equal(t, http.StatusCreated, status, out)
	comments := out["comentarios"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "reader-1", comments[0].(map[string]any)["autor"])

	status, out = call(t, r, http.MethodPost, "/api/publicaciones/missing/comentarios", token(t, "reader-1", jwt.RoleBasic),
		"application/json", []byte(`{"contenido":"Hola"}`))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Publicación no encontrada", out["message"])
}
