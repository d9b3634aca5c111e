package publication

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("usuario no autenticado")
	ErrNotFound        = errors.New("publicación no encontrada")
	ErrNoPending       = errors.New("no hay solicitud de edición pendiente")
	ErrForbidden       = errors.New("no tienes permisos sobre esta publicación")
	ErrLimitExceeded   = errors.New("límite de ediciones alcanzado")
	ErrConflict        = errors.New("ya existe una solicitud de edición pendiente de aprobación")
	ErrNoChanges       = errors.New("no se detectaron cambios en la publicación")
)

// LimitError reports the edit cap that was reached.
type LimitError struct {
	MaxEdits int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("Has alcanzado el límite máximo de %d ediciones para esta publicación", e.MaxEdits)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }

// ValidationError carries field-level detail for rejected input.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func invalid(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func invalidField(field, detail string) *ValidationError {
	return &ValidationError{
		Message: "Error de validación en los datos",
		Fields:  map[string]string{field: detail},
	}
}
