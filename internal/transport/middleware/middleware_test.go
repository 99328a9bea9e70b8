package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/transport/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"token":"abc","username":"alice"}`))
})

var _ = Describe("Middleware", func() {
	Describe("LoggingMiddleware", func() {
		var (
			buf    *bytes.Buffer
			logger *slog.Logger
		)

		BeforeEach(func() {
			buf = &bytes.Buffer{}
			logger = slog.New(slog.NewJSONHandler(buf, nil))
		})

		It("should filter passwords from JSON bodies", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"hunter2"}`))
			req.Header.Set("Content-Type", "application/json")
			middleware.LoggingMiddleware(logger)(ok).ServeHTTP(httptest.NewRecorder(), req)

			Expect(buf.String()).NotTo(ContainSubstring("hunter2"))
			Expect(buf.String()).NotTo(ContainSubstring(`abc`))
			Expect(buf.String()).To(ContainSubstring("alice"))
		})

		It("should filter new_password from form posts", func() {
			req := httptest.NewRequest(http.MethodPost, "/dashboard/users/2/password", strings.NewReader("new_password=s3cret&confirm=yes"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			middleware.LoggingMiddleware(logger)(ok).ServeHTTP(httptest.NewRecorder(), req)

			Expect(buf.String()).NotTo(ContainSubstring("s3cret"))
			Expect(buf.String()).To(ContainSubstring("confirm=yes"))
		})

		It("should keep the body readable for the next handler", func() {
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = r.ParseForm()
				seen = r.PostForm.Get("new_password")
			})
			req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("new_password=s3cret"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			middleware.LoggingMiddleware(logger)(next).ServeHTTP(httptest.NewRecorder(), req)

			Expect(seen).To(Equal("s3cret"))
		})

		It("should mask cookies and authorization headers", func() {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.Header.Set("Authorization", "Bearer xyz")
			req.Header.Set("Cookie", "admin_session=xyz")
			middleware.LoggingMiddleware(logger)(ok).ServeHTTP(httptest.NewRecorder(), req)

			Expect(buf.String()).NotTo(ContainSubstring("xyz"))
		})
	})

	Describe("RequirePermission", func() {
		serve := func(u *coreUser.User) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
			if u != nil {
				req = req.WithContext(internal.ContextWithUser(req.Context(), u))
			}
			rec := httptest.NewRecorder()
			middleware.RequireAdmin(ok).ServeHTTP(rec, req)
			return rec
		}

		It("should let admins through", func() {
			Expect(serve(&coreUser.User{ID: 1, Permission: coreUser.PermissionAdmin}).Code).To(Equal(http.StatusOK))
		})

		It("should forbid read_only users", func() {
			rec := serve(&coreUser.User{ID: 2, Permission: coreUser.PermissionReadOnly})
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"You do not have permission to perform this action."}`))
		})

		It("should answer 401 without a user", func() {
			Expect(serve(nil).Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("RecoveryMiddleware", func() {
		It("should turn a panic into a 500 without leaking details", func() {
			boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("db password leaked") })
			rec := httptest.NewRecorder()
			logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
			middleware.RecoveryMiddleware(logger)(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"Internal server error."}`))
		})
	})

	Describe("RequestID", func() {
		It("should echo an incoming trace id", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(middleware.TraceHeader, "trace-1")
			rec := httptest.NewRecorder()
			middleware.RequestID(ok).ServeHTTP(rec, req)
			Expect(rec.Header().Get(middleware.TraceHeader)).To(Equal("trace-1"))
		})

		It("should generate one when missing", func() {
			rec := httptest.NewRecorder()
			middleware.RequestID(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Header().Get(middleware.TraceHeader)).NotTo(BeEmpty())
		})
	})

	Describe("CORS", func() {
		It("should allow configured origins with credentials", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			rec := httptest.NewRecorder()
			middleware.CORS([]string{"http://localhost:3000"})(ok).ServeHTTP(rec, req)

			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
			Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
		})

		It("should answer preflight requests directly", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", "POST")
			rec := httptest.NewRecorder()
			middleware.CORS([]string{"http://localhost:3000"})(ok).ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNoContent))
		})

		It("should not allow unknown origins", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			req.Header.Set("Origin", "http://evil.example")
			rec := httptest.NewRecorder()
			middleware.CORS([]string{"http://localhost:3000"})(ok).ServeHTTP(rec, req)

			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})
})
