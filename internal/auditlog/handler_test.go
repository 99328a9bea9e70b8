package auditlog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/auditlog"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockLogService struct {
	entries []auditlog.Entry
	err     error
	lastQ   auditlog.Query
}

func (m *mockLogService) ListLogs(ctx context.Context, actor *coreUser.User, q auditlog.Query) ([]auditlog.Entry, error) {
	m.lastQ = q
	return m.entries, m.err
}

var _ = Describe("Handler", func() {
	var (
		svc     *mockLogService
		handler *auditlog.Handler
		admin   *coreUser.User
	)

	BeforeEach(func() {
		svc = &mockLogService{}
		handler = auditlog.NewHandler(svc)
		admin = &coreUser.User{ID: 1, Username: "alice", Permission: coreUser.PermissionAdmin}
	})

	serve := func(target string, u *coreUser.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if u != nil {
			req = req.WithContext(internal.ContextWithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		handler.ListLogs(rec, req)
		return rec
	}

	It("should return the entries as JSON", func() {
		ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		svc.entries = []auditlog.Entry{{ID: 7, UserID: 1, Action: "create_user", Timestamp: ts, CustomFields: []byte(`{"username":"bob"}`)}}

		rec := serve("/api/logs", admin)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`[{"id":7,"user_id":1,"action":"create_user","timestamp":"2024-05-01T10:00:00Z","custom_fields":{"username":"bob"}}]`))
	})

	It("should pass the hints through", func() {
		svc.entries = []auditlog.Entry{}
		rec := serve("/api/logs?userId=1&role=admin", admin)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(*svc.lastQ.UserID).To(Equal(int64(1)))
		Expect(*svc.lastQ.Role).To(Equal(coreUser.PermissionAdmin))
	})

	It("should answer 400 for a malformed userId", func() {
		rec := serve("/api/logs?userId=x", admin)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"userId must be a positive integer."}`))
	})

	It("should answer 403 when the service refuses", func() {
		svc.err = internal.ErrInsufficientPermission
		rec := serve("/api/logs?userId=2", admin)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("should answer 401 without a session", func() {
		rec := serve("/api/logs", nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})
