package auditlog

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/transport"
	"github.com/frahmantamala/admin-console/pkg/logger"
)

type ServiceAPI interface {
	ListLogs(ctx context.Context, actor *coreUser.User, q Query) ([]Entry, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// ListLogs handles GET /api/logs
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrInvalidSession, "ListLogs")
		return
	}

	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, r, err, "ListLogs")
		return
	}

	entries, err := h.Service.ListLogs(r.Context(), actor, q)
	if err != nil {
		h.HandleServiceError(w, r, err, "ListLogs")
		return
	}
	h.WriteJSON(w, http.StatusOK, entries)
}
