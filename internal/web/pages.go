package web

import (
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/user"
	"github.com/frahmantamala/admin-console/internal/web/views"
	"github.com/frahmantamala/admin-console/pkg/logger"
	"github.com/go-chi/chi"
)

type mutation func(actor *coreUser.User, id int64, form url.Values) error

// mutate runs a confirmed action. Failures reopen the modal with the error inline;
// success goes back to the dashboard, which lists users again from the backend.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, action, notice string, fn mutation) {
	actor := h.actor(r)

	id, err := user.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		status, msg := h.failure(r, err, "mutate:"+action)
		h.renderDashboard(w, r, status, actor, views.DashboardData{Error: msg})
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderConfirm(w, r, http.StatusBadRequest, actor, id, action, "Invalid form submission.")
		return
	}

	if err := fn(actor, id, r.PostForm); err != nil {
		status, msg := h.failure(r, err, "mutate:"+action)
		h.renderConfirm(w, r, status, actor, id, action, msg)
		return
	}

	if action == views.ActionDelete && id == actor.ID {
		h.Cookie.Clear(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	redirectWithNotice(w, r, notice)
}

func (h *Handler) renderConfirm(w http.ResponseWriter, r *http.Request, status int, actor *coreUser.User, id int64, action, errMsg string) {
	accounts, err := h.Users.ListUsers(r.Context(), actor)
	if err != nil {
		lstatus, msg := h.failure(r, err, "renderConfirm")
		h.render(w, r, lstatus, views.DashboardPage(views.DashboardData{User: actor, Error: msg}))
		return
	}

	for _, a := range accounts {
		if a.UserID == id {
			h.render(w, r, status, views.DashboardPage(views.DashboardData{
				User:     actor,
				Accounts: accounts,
				Confirm:  &views.ConfirmData{Target: a, Action: action, Error: errMsg},
			}))
			return
		}
	}

	// the target is gone, e.g. deleted by a half-finished cascade
	if errMsg == "" {
		status, errMsg = http.StatusNotFound, internal.ErrUserNotFound.Message
	}
	h.render(w, r, status, views.DashboardPage(views.DashboardData{User: actor, Accounts: accounts, Error: errMsg}))
}

// renderDashboard fills in the user list and renders the dashboard.
func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, actor *coreUser.User, data views.DashboardData) {
	data.User = actor
	accounts, err := h.Users.ListUsers(r.Context(), actor)
	if err != nil {
		lstatus, msg := h.failure(r, err, "renderDashboard")
		if data.Error == "" {
			data.Error = msg
		}
		if status < lstatus {
			status = lstatus
		}
	}
	data.Accounts = accounts
	h.render(w, r, status, views.DashboardPage(data))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

// failure logs err and returns what the page should show.
func (h *Handler) failure(r *http.Request, err error, op string) (int, string) {
	log := logger.From(r.Context())
	appErr, ok := internal.IsAppError(err)
	if !ok {
		log.Error(op+": unexpected error", "error", err)
		return http.StatusInternalServerError, "Internal server error."
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error(op+": request failed", "code", appErr.Code, "error", err)
	} else {
		log.Warn(op+": request rejected", "code", appErr.Code, "error", err)
	}
	return appErr.StatusCode, appErr.GetDetailedMessage()
}

func (h *Handler) actor(r *http.Request) *coreUser.User {
	u, _ := internal.UserFromContext(r.Context())
	return u
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, notice string) {
	http.Redirect(w, r, "/dashboard?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}
