package supabase_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/backend"
	"github.com/frahmantamala/admin-console/internal/backend/supabase"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSupabaseClient(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Supabase Client Suite")
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
	APIKey string
	Auth   string
}

var _ = Describe("Supabase Client", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		client   *supabase.Client
		requests []recordedRequest
		handler  http.HandlerFunc
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recordedRequest{
				Method: r.Method,
				Path:   r.URL.Path,
				Query:  r.URL.RawQuery,
				APIKey: r.Header.Get("apikey"),
				Auth:   r.Header.Get("Authorization"),
			}
			if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
				_ = json.Unmarshal(raw, &rec.Body)
			}
			requests = append(requests, rec)
			handler(w, r)
		}))
		client = supabase.NewClient(supabase.Config{URL: server.URL + "/", ServiceRoleKey: "service-key"}, nil)
	})

	AfterEach(func() {
		server.Close()
	})

	respond := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		}
	}

	Describe("table reads", func() {
		It("should query users by username with the service key", func() {
			handler = respond(http.StatusOK, `[{"id":7,"username":"bob","password":"h","auth_id":"a-7"}]`)

			rec, err := client.FindUserByUsername(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ID).To(Equal(int64(7)))
			Expect(rec.AuthID).To(Equal("a-7"))

			Expect(requests).To(HaveLen(1))
			Expect(requests[0].Method).To(Equal(http.MethodGet))
			Expect(requests[0].Path).To(Equal("/rest/v1/users"))
			Expect(requests[0].Query).To(ContainSubstring("username=eq.bob"))
			Expect(requests[0].APIKey).To(Equal("service-key"))
			Expect(requests[0].Auth).To(Equal("Bearer service-key"))
		})

		It("should return ErrNotFound for an empty result", func() {
			handler = respond(http.StatusOK, `[]`)

			_, err := client.GetUser(ctx, 3)
			Expect(err).To(MatchError(backend.ErrNotFound))
		})

		It("should order logs newest first and filter by user", func() {
			handler = respond(http.StatusOK, `[{"id":1,"user_id":4,"action":"create_user","timestamp":"2024-05-01T10:00:00Z","custom_fields":{"username":"x"}}]`)

			uid := int64(4)
			rows, err := client.ListLogs(ctx, backend.LogFilter{UserID: &uid})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(string(rows[0].CustomFields)).To(MatchJSON(`{"username":"x"}`))

			Expect(requests[0].Query).To(ContainSubstring("order=timestamp.desc"))
			Expect(requests[0].Query).To(ContainSubstring("user_id=eq.4"))
		})
	})

	Describe("procedures", func() {
		It("should post named parameters to the rpc endpoint", func() {
			handler = respond(http.StatusOK, `{"success":true,"message":"Password changed successfully."}`)

			err := client.ChangePassword(ctx, backend.ChangePasswordParams{UserID: 5, NewPassword: "n", PerformedBy: 1})
			Expect(err).NotTo(HaveOccurred())

			Expect(requests[0].Method).To(Equal(http.MethodPost))
			Expect(requests[0].Path).To(Equal("/rest/v1/rpc/change_password_new"))
			Expect(requests[0].Body).To(HaveKeyWithValue("_user_id", BeNumerically("==", 5)))
			Expect(requests[0].Body).To(HaveKeyWithValue("_new_password", "n"))
			Expect(requests[0].Body).To(HaveKeyWithValue("_performed_by", BeNumerically("==", 1)))
		})

		It("should surface an error embedded in a 200 response", func() {
			handler = respond(http.StatusOK, `{"success":false,"error":"Only admins can change permissions."}`)

			err := client.UpdatePermission(ctx, backend.UpdatePermissionParams{UserID: 5, NewPermission: "admin", PerformedBy: 2})
			pe, ok := backend.IsProcedureError(err)
			Expect(ok).To(BeTrue())
			Expect(pe.Message).To(Equal("Only admins can change permissions."))
		})

		It("should turn a raised exception into a procedure error", func() {
			handler = respond(http.StatusBadRequest, `{"code":"P0001","message":"Username already exists."}`)

			_, err := client.CreateUser(ctx, backend.CreateUserParams{Username: "bob", Password: "p", Permission: "admin", PerformedBy: 1})
			pe, ok := backend.IsProcedureError(err)
			Expect(ok).To(BeTrue())
			Expect(pe.Procedure).To(Equal(backend.ProcCreateUser))
			Expect(pe.Message).To(Equal("Username already exists."))
		})

		It("should keep unique violations as procedure errors", func() {
			handler = respond(http.StatusConflict, `{"code":"23505","message":"duplicate key value violates unique constraint \"users_username_key\""}`)

			_, err := client.CreateUser(ctx, backend.CreateUserParams{Username: "bob", Password: "p", Permission: "admin", PerformedBy: 1})
			_, ok := backend.IsProcedureError(err)
			Expect(ok).To(BeTrue())
		})

		DescribeTable("client errors that are not raised by the procedure",
			func(status int, body string) {
				handler = respond(status, body)

				err := client.DeleteUser(ctx, backend.DeleteUserParams{UserID: 5, PerformedBy: 1})
				Expect(err).To(HaveOccurred())
				_, ok := backend.IsProcedureError(err)
				Expect(ok).To(BeFalse())

				appErr, ok := internal.IsAppError(backend.ToAppError(err))
				Expect(ok).To(BeTrue())
				Expect(appErr.StatusCode).To(Equal(http.StatusBadGateway))
			},
			Entry("bad service key", http.StatusUnauthorized, `{"message":"Invalid API key"}`),
			Entry("forbidden", http.StatusForbidden, `{"code":"42501","message":"permission denied for function delete_user_new"}`),
			Entry("missing function", http.StatusNotFound, `{"code":"PGRST202","message":"Could not find the function public.delete_user_new"}`),
			Entry("bad request without a raise code", http.StatusBadRequest, `{"code":"PGRST102","message":"Empty or invalid json"}`),
		)

		It("should accept a plain success message from a procedure", func() {
			handler = respond(http.StatusOK, `{"message":"Password changed successfully."}`)

			Expect(client.ChangePassword(ctx, backend.ChangePasswordParams{UserID: 5, NewPassword: "n", PerformedBy: 1})).To(Succeed())
		})

		It("should accept a scalar procedure result", func() {
			handler = respond(http.StatusOK, `true`)

			Expect(client.DeleteUser(ctx, backend.DeleteUserParams{UserID: 5, PerformedBy: 1})).To(Succeed())
		})

		It("should not treat a server failure as a procedure error", func() {
			handler = respond(http.StatusBadGateway, `upstream down`)

			_, err := client.CheckPassword(ctx, "a", "b")
			Expect(err).To(HaveOccurred())
			_, ok := backend.IsProcedureError(err)
			Expect(ok).To(BeFalse())
		})

		It("should decode the created user id", func() {
			handler = respond(http.StatusOK, `12`)

			id, err := client.CreateUser(ctx, backend.CreateUserParams{Username: "c", Password: "p", Permission: "read_only", PerformedBy: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(int64(12)))
		})
	})

	Describe("delete steps", func() {
		It("should issue deletes against the tables and the auth admin api", func() {
			handler = respond(http.StatusNoContent, ``)

			Expect(client.DeletePermission(ctx, 9)).To(Succeed())
			Expect(client.DeleteUserRow(ctx, 9)).To(Succeed())
			Expect(client.DeleteAuthIdentity(ctx, "uuid-9")).To(Succeed())

			Expect(requests).To(HaveLen(3))
			Expect(requests[0].Path).To(Equal("/rest/v1/user_permissions"))
			Expect(requests[0].Query).To(Equal("user_id=eq.9"))
			Expect(requests[1].Path).To(Equal("/rest/v1/users"))
			Expect(requests[2].Method).To(Equal(http.MethodDelete))
			Expect(requests[2].Path).To(Equal("/auth/v1/admin/users/uuid-9"))
		})

		It("should skip the auth call when there is no identity", func() {
			Expect(client.DeleteAuthIdentity(ctx, "")).To(Succeed())
			Expect(requests).To(BeEmpty())
		})
	})
})
