package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockUserService struct {
	accounts    []user.Account
	createdID   int64
	err         error
	lastActor   *coreUser.User
	lastTarget  int64
	lastCreate  user.CreateUserDTO
	lastPerm    user.ChangePermissionDTO
	lastPasswd  user.ChangePasswordDTO
	deleteCalls int
}

func (m *mockUserService) ListUsers(ctx context.Context, actor *coreUser.User) ([]user.Account, error) {
	m.lastActor = actor
	return m.accounts, m.err
}

func (m *mockUserService) CreateUser(ctx context.Context, actor *coreUser.User, dto user.CreateUserDTO) (int64, error) {
	m.lastActor, m.lastCreate = actor, dto
	return m.createdID, m.err
}

func (m *mockUserService) ChangePassword(ctx context.Context, actor *coreUser.User, id int64, dto user.ChangePasswordDTO) error {
	m.lastActor, m.lastTarget, m.lastPasswd = actor, id, dto
	return m.err
}

func (m *mockUserService) ChangePermission(ctx context.Context, actor *coreUser.User, id int64, dto user.ChangePermissionDTO) error {
	m.lastActor, m.lastTarget, m.lastPerm = actor, id, dto
	return m.err
}

func (m *mockUserService) DeleteUser(ctx context.Context, actor *coreUser.User, id int64) error {
	m.lastActor, m.lastTarget = actor, id
	m.deleteCalls++
	return m.err
}

var _ = Describe("User Handler", func() {
	var (
		svc    *mockUserService
		router chi.Router
		actor  *coreUser.User
	)

	withActor := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor != nil {
				r = r.WithContext(internal.ContextWithUser(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}

	BeforeEach(func() {
		svc = &mockUserService{}
		actor = &coreUser.User{ID: 1, Username: "alice", Permission: coreUser.PermissionAdmin}
		h := user.NewHandler(svc)

		router = chi.NewRouter()
		router.Use(withActor)
		router.Get("/api/users", h.ListUsers)
		router.Post("/api/users", h.CreateUser)
		router.Put("/api/users/{id}/password", h.ChangePassword)
		router.Put("/api/users/{id}/permission", h.ChangePermission)
		router.Delete("/api/users/{id}", h.DeleteUser)
	})

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("should list users as JSON", func() {
		svc.accounts = []user.Account{{UserID: 1, Username: "alice", Permission: coreUser.PermissionAdmin}}

		rec := serve(http.MethodGet, "/api/users", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`[{"user_id":1,"username":"alice","permission":"admin"}]`))
		Expect(svc.lastActor).To(Equal(actor))
	})

	It("should return 401 without a session user", func() {
		actor = nil
		rec := serve(http.MethodGet, "/api/users", "")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"Invalid or missing session."}`))
	})

	It("should create a user and answer 201", func() {
		svc.createdID = 7

		rec := serve(http.MethodPost, "/api/users", `{"username":"carol","password":"pw","permission":"read_only"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(rec.Body.String()).To(MatchJSON(`{"message":"User created successfully!","userId":7}`))
		Expect(svc.lastCreate.Username).To(Equal("carol"))
	})

	It("should reject a malformed body", func() {
		rec := serve(http.MethodPost, "/api/users", `{"username":`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"Invalid request body."}`))
	})

	It("should pass the path id to ChangePassword", func() {
		rec := serve(http.MethodPut, "/api/users/5/password", `{"new_password":"next"}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.lastTarget).To(Equal(int64(5)))
		Expect(svc.lastPasswd.NewPassword).To(Equal("next"))
	})

	It("should reject a non-numeric id", func() {
		rec := serve(http.MethodPut, "/api/users/abc/permission", `{"permission":"admin"}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"A valid user id is required."}`))
	})

	It("should map service errors to their status", func() {
		svc.err = internal.ErrInsufficientPermission
		rec := serve(http.MethodPut, "/api/users/2/permission", `{"permission":"admin"}`)
		Expect(rec.Code).To(Equal(http.StatusForbidden))

		var body map[string]string
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["error"]).To(Equal("You do not have permission to perform this action."))
	})

	It("should delete a user", func() {
		rec := serve(http.MethodDelete, "/api/users/3", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.deleteCalls).To(Equal(1))
		Expect(svc.lastTarget).To(Equal(int64(3)))
	})
})
