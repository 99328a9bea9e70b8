package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type mockAuthService struct {
	session  *Session
	loginErr error
	user     *coreUser.User
	authErr  error
	lastTok  string
	register *RegisterResponse
}

func (m *mockAuthService) Login(ctx context.Context, dto LoginDTO) (*Session, error) {
	return m.session, m.loginErr
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (*coreUser.User, error) {
	m.lastTok = token
	return m.user, m.authErr
}

func (m *mockAuthService) Register(ctx context.Context, actor *coreUser.User, dto RegisterDTO) (*RegisterResponse, error) {
	return m.register, nil
}

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		svc     *mockAuthService
		handler *Handler
	)

	ginkgo.BeforeEach(func() {
		svc = &mockAuthService{}
		handler = NewHandler(svc, CookieConfig{Name: "admin_session"})
	})

	ginkgo.Describe("Login", func() {
		ginkgo.It("should return the session and set the cookie", func() {
			svc.session = &Session{
				UserID: 1, Username: "alice", Permission: coreUser.PermissionAdmin,
				Token: "tok", ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
			}

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"pw"}`))
			rec := httptest.NewRecorder()
			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"userId":1`))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"permission":"admin"`))

			cookies := rec.Result().Cookies()
			gomega.Expect(cookies).To(gomega.HaveLen(1))
			gomega.Expect(cookies[0].Name).To(gomega.Equal("admin_session"))
			gomega.Expect(cookies[0].Value).To(gomega.Equal("tok"))
			gomega.Expect(cookies[0].HttpOnly).To(gomega.BeTrue())
		})

		ginkgo.It("should answer 400 without a cookie on bad credentials", func() {
			svc.loginErr = internal.ErrInvalidCredentials

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"wrong"}`))
			rec := httptest.NewRecorder()
			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(rec.Body.String()).To(gomega.MatchJSON(`{"error":"Invalid username or password."}`))
			gomega.Expect(rec.Result().Cookies()).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("AuthMiddleware", func() {
		var reached *coreUser.User

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached, _ = internal.UserFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})

		ginkgo.BeforeEach(func() {
			reached = nil
		})

		ginkgo.It("should accept a bearer token", func() {
			svc.user = &coreUser.User{ID: 2, Username: "bob", Permission: coreUser.PermissionReadOnly}

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.Header.Set("Authorization", "Bearer abc")
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(svc.lastTok).To(gomega.Equal("abc"))
			gomega.Expect(reached).To(gomega.Equal(svc.user))
		})

		ginkgo.It("should fall back to the session cookie", func() {
			svc.user = &coreUser.User{ID: 2, Username: "bob", Permission: coreUser.PermissionReadOnly}

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.AddCookie(&http.Cookie{Name: "admin_session", Value: "from-cookie"})
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(svc.lastTok).To(gomega.Equal("from-cookie"))
		})

		ginkgo.It("should answer 401 without a token", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(reached).To(gomega.BeNil())
		})

		ginkgo.It("should answer 401 when the session no longer verifies", func() {
			svc.authErr = internal.ErrSessionExpired

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.Header.Set("Authorization", "Bearer old")
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(rec.Body.String()).To(gomega.MatchJSON(`{"error":"Session has expired."}`))
		})
	})

	ginkgo.It("should clear the cookie on logout", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		rec := httptest.NewRecorder()
		handler.Logout(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		cookies := rec.Result().Cookies()
		gomega.Expect(cookies).To(gomega.HaveLen(1))
		gomega.Expect(cookies[0].MaxAge).To(gomega.BeNumerically("<", 0))
	})

	ginkgo.It("should describe the current user", func() {
		u := &coreUser.User{ID: 1, Username: "alice", Permission: coreUser.PermissionAdmin}
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(internal.ContextWithUser(req.Context(), u))
		rec := httptest.NewRecorder()
		handler.Me(rec, req)

		gomega.Expect(rec.Body.String()).To(gomega.MatchJSON(`{"userId":1,"username":"alice","permission":"admin"}`))
	})
})
