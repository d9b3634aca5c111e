package publication

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	editRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "komuness",
			Name:      "publication_edit_requests_total",
			Help:      "Edit requests by outcome",
		},
		[]string{"result"},
	)

	editResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "komuness",
			Name:      "publication_edit_resolutions_total",
			Help:      "Resolved or cancelled edit proposals by status",
		},
		[]string{"status"},
	)
)

func editRequestResult(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "submitted"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrLimitExceeded):
		return "limit"
	case errors.Is(err, ErrNoChanges):
		return "no_changes"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthenticated):
		return "denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &verr):
		return "invalid"
	}
	return "error"
}
