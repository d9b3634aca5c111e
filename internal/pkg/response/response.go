package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Pagination is the offset/limit metadata returned with list responses.
type Pagination struct {
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Total  int64 `json:"total"`
	Pages  int   `json:"pages"`
}

// NewPagination computes the page count for a window over total items.
func NewPagination(offset, limit int, total int64) Pagination {
	div := int64(limit)
	if div < 1 {
		div = 1
	}
	return Pagination{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Pages:  int((total + div - 1) / div),
	}
}

// pagedResponse is the envelope for paginated list responses.
type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Paged sends a paginated response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{
		Data:       data,
		Pagination: pagination,
	})
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error envelope with optional extra fields.
func Error(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"ok": 0, "code": status, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message, nil)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Usuario no autenticado", nil)
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "No tienes permisos para realizar esta acción", nil)
}

// ForbiddenMsg sends a 403 error response with a custom message.
func ForbiddenMsg(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Recurso no encontrado", nil)
}

// NotFoundMsg sends a 404 error with a custom message.
func NotFoundMsg(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}

// InternalError sends a 500 error response. The cause is only exposed when verbose is set.
func InternalError(c *gin.Context, err error, verbose bool) {
	detail := "Contacte al administrador"
	if verbose && err != nil {
		detail = err.Error()
	}
	Error(c, http.StatusInternalServerError, "Error interno del servidor", gin.H{"error": detail})
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message, nil)
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context, message string) {
	Error(c, http.StatusTooManyRequests, message, nil)
}
