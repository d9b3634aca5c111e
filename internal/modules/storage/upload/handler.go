package upload

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/pkg/response"
)

// Handler serves files kept by LocalStorage.
type Handler struct {
	local *LocalStorage
}

func NewHandler(local *LocalStorage) *Handler {
	return &Handler{local: local}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/files/:key", h.get)
}

func (h *Handler) get(c *gin.Context) {
	path, err := h.local.Path(c.Param("key"))
	if err != nil {
		response.NotFoundMsg(c, "Archivo no encontrado")
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		response.NotFoundMsg(c, "Archivo no encontrado")
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000")
	c.File(path)
}
