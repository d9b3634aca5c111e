package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultOffset = 0
	DefaultLimit  = 10
	MaxLimit      = 100
)

// Query holds parsed offset/limit parameters.
type Query struct {
	Offset int
	Limit  int
}

// Normalize clamps the window to sane bounds.
func (q Query) Normalize() Query {
	if q.Offset < 0 {
		q.Offset = DefaultOffset
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// FromContext extracts and validates offset/limit params from the request.
func FromContext(c *gin.Context) Query {
	return Query{
		Offset: parseIntOr(c.Query("offset"), DefaultOffset),
		Limit:  parseIntOr(c.Query("limit"), DefaultLimit),
	}.Normalize()
}

// FromContextLimit is FromContext with a route-specific default and cap.
func FromContextLimit(c *gin.Context, def, max int) Query {
	q := Query{
		Offset: parseIntOr(c.Query("offset"), DefaultOffset),
		Limit:  parseIntOr(c.Query("limit"), def),
	}
	if q.Limit > max {
		q.Limit = max
	}
	return q.Normalize()
}

// Paginate applies limit/offset to a GORM query and returns the pagination metadata.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	q = q.Normalize()

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}
	if err := db.Offset(q.Offset).Limit(q.Limit).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}
	return response.NewPagination(q.Offset, q.Limit, total), nil
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
