package user_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/backend"
	"github.com/frahmantamala/admin-console/internal/backend/memory"
	"github.com/frahmantamala/admin-console/internal/core/events"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestUserService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

// faultyBackend wraps the in-memory backend and fails selected calls.
type faultyBackend struct {
	*memory.Backend
	failPermissionDelete error
	failUserRowDelete    error
	failAuthDelete       error
	calls                []string
}

func (f *faultyBackend) DeleteUser(ctx context.Context, p backend.DeleteUserParams) error {
	f.calls = append(f.calls, "delete_user_new")
	return f.Backend.DeleteUser(ctx, p)
}

func (f *faultyBackend) DeletePermission(ctx context.Context, id int64) error {
	f.calls = append(f.calls, "permission")
	if f.failPermissionDelete != nil {
		return f.failPermissionDelete
	}
	return f.Backend.DeletePermission(ctx, id)
}

func (f *faultyBackend) DeleteUserRow(ctx context.Context, id int64) error {
	f.calls = append(f.calls, "user")
	if f.failUserRowDelete != nil {
		return f.failUserRowDelete
	}
	return f.Backend.DeleteUserRow(ctx, id)
}

func (f *faultyBackend) DeleteAuthIdentity(ctx context.Context, authID string) error {
	f.calls = append(f.calls, "auth")
	if f.failAuthDelete != nil {
		return f.failAuthDelete
	}
	return f.Backend.DeleteAuthIdentity(ctx, authID)
}

func (f *faultyBackend) CreateUser(ctx context.Context, p backend.CreateUserParams) (int64, error) {
	f.calls = append(f.calls, "create_user")
	return f.Backend.CreateUser(ctx, p)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

var _ = Describe("User Service", func() {
	var (
		ctx       context.Context
		fb        *faultyBackend
		publisher *recordingPublisher
		svc       *user.Service
		admin     *coreUser.User
		reader    *coreUser.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		fb = &faultyBackend{Backend: memory.New()}
		publisher = &recordingPublisher{}
		svc = user.NewService(fb, publisher, 0, slog.New(slog.NewTextHandler(GinkgoWriter, nil)))

		adminID, err := fb.Backend.CreateUser(ctx, backend.CreateUserParams{Username: "alice", Password: "pw", Permission: "admin"})
		Expect(err).NotTo(HaveOccurred())
		readerID, err := fb.Backend.CreateUser(ctx, backend.CreateUserParams{Username: "bob", Password: "pw", Permission: "read_only", PerformedBy: adminID})
		Expect(err).NotTo(HaveOccurred())

		admin = &coreUser.User{ID: adminID, Username: "alice", Permission: coreUser.PermissionAdmin}
		reader = &coreUser.User{ID: readerID, Username: "bob", Permission: coreUser.PermissionReadOnly}
		fb.calls = nil
	})

	Describe("ListUsers", func() {
		It("should list every account for an admin", func() {
			accounts, err := svc.ListUsers(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(accounts).To(HaveLen(2))
			Expect(accounts[0].Username).To(Equal("alice"))
			Expect(accounts[1].Permission).To(Equal(coreUser.PermissionReadOnly))
		})

		It("should only list the caller's own row for read_only", func() {
			accounts, err := svc.ListUsers(ctx, reader)
			Expect(err).NotTo(HaveOccurred())
			Expect(accounts).To(HaveLen(1))
			Expect(accounts[0].UserID).To(Equal(reader.ID))
		})
	})

	Describe("CreateUser", func() {
		It("should create the user and publish an event", func() {
			id, err := svc.CreateUser(ctx, admin, user.CreateUserDTO{Username: " carol ", Password: "pw", Permission: "read_only"})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))

			rec, err := fb.GetUser(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Username).To(Equal("carol"))
			Expect(publisher.types()).To(Equal([]string{events.EventTypeUserCreated}))
		})

		It("should not call the backend when the password is empty", func() {
			_, err := svc.CreateUser(ctx, admin, user.CreateUserDTO{Username: "carol", Password: "", Permission: "read_only"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(appErr.GetDetailedMessage()).To(Equal("Password is required."))
			Expect(fb.calls).To(BeEmpty())
		})

		It("should reject an unknown permission", func() {
			_, err := svc.CreateUser(ctx, admin, user.CreateUserDTO{Username: "carol", Password: "pw", Permission: "root"})
			Expect(err).To(HaveOccurred())
			Expect(fb.calls).To(BeEmpty())
		})

		It("should refuse read_only callers", func() {
			_, err := svc.CreateUser(ctx, reader, user.CreateUserDTO{Username: "carol", Password: "pw", Permission: "admin"})
			Expect(errors.Is(err, internal.ErrInsufficientPermission)).To(BeTrue())
			Expect(fb.calls).To(BeEmpty())
		})

		It("should surface the backend's message for duplicates", func() {
			_, err := svc.CreateUser(ctx, admin, user.CreateUserDTO{Username: "bob", Password: "pw", Permission: "admin"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeProcedureFailed))
			Expect(appErr.GetDetailedMessage()).To(Equal("Username already exists."))
		})
	})

	Describe("CreateInitialAdmin", func() {
		It("should refuse once users exist", func() {
			_, err := svc.CreateInitialAdmin(ctx, "root", "pw")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusConflict))
		})

		It("should create an admin on an empty backend", func() {
			empty := user.NewService(memory.New(), nil, 0, nil)
			id, err := empty.CreateInitialAdmin(ctx, "root", "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(int64(1)))
		})
	})

	Describe("ChangePassword", func() {
		It("should let a read_only user change their own password", func() {
			Expect(svc.ChangePassword(ctx, reader, reader.ID, user.ChangePasswordDTO{NewPassword: "next"})).To(Succeed())

			rec, _ := fb.GetUser(ctx, reader.ID)
			ok, _ := fb.CheckPassword(ctx, "next", rec.Password)
			Expect(ok).To(BeTrue())
		})

		It("should stop a read_only user from changing someone else's password", func() {
			err := svc.ChangePassword(ctx, reader, admin.ID, user.ChangePasswordDTO{NewPassword: "next"})
			Expect(errors.Is(err, internal.ErrInsufficientPermission)).To(BeTrue())
		})

		It("should validate the target id before anything else", func() {
			err := svc.ChangePassword(ctx, admin, 0, user.ChangePasswordDTO{NewPassword: "next"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})

	Describe("ChangePermission", func() {
		It("should update the permission for admins", func() {
			Expect(svc.ChangePermission(ctx, admin, reader.ID, user.ChangePermissionDTO{Permission: "admin"})).To(Succeed())

			perm, err := fb.GetPermission(ctx, reader.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(perm).To(Equal("admin"))
			Expect(publisher.types()).To(ContainElement(events.EventTypePermissionChanged))
		})

		It("should reject values outside the enumerated set", func() {
			err := svc.ChangePermission(ctx, admin, reader.ID, user.ChangePermissionDTO{Permission: "owner"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))

			perm, _ := fb.GetPermission(ctx, reader.ID)
			Expect(perm).To(Equal("read_only"))
		})

		It("should refuse read_only callers even on themselves", func() {
			err := svc.ChangePermission(ctx, reader, reader.ID, user.ChangePermissionDTO{Permission: "admin"})
			Expect(errors.Is(err, internal.ErrInsufficientPermission)).To(BeTrue())
		})
	})

	Describe("DeleteUser", func() {
		It("should run every step in order and remove the user everywhere", func() {
			rec, _ := fb.GetUser(ctx, reader.ID)

			Expect(svc.DeleteUser(ctx, admin, reader.ID)).To(Succeed())
			Expect(fb.calls).To(Equal([]string{"delete_user_new", "permission", "user", "auth"}))

			_, err := fb.GetUser(ctx, reader.ID)
			Expect(err).To(MatchError(backend.ErrNotFound))
			_, err = fb.GetPermission(ctx, reader.ID)
			Expect(err).To(MatchError(backend.ErrNotFound))
			Expect(fb.HasIdentity(rec.AuthID)).To(BeFalse())
			Expect(publisher.types()).To(ContainElement(events.EventTypeUserDeleted))
		})

		It("should let read_only users delete themselves only", func() {
			err := svc.DeleteUser(ctx, reader, admin.ID)
			Expect(errors.Is(err, internal.ErrInsufficientPermission)).To(BeTrue())
			Expect(fb.calls).To(BeEmpty())

			Expect(svc.DeleteUser(ctx, reader, reader.ID)).To(Succeed())
		})

		It("should report the first failing step and stop", func() {
			fb.failUserRowDelete = errors.New("connection reset")

			err := svc.DeleteUser(ctx, admin, reader.ID)
			Expect(err).To(HaveOccurred())

			var stepErr *user.DeleteStepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(user.DeleteStepUser))

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeDeleteIncomplete))
			Expect(appErr.StatusCode).To(Equal(http.StatusBadGateway))

			Expect(fb.calls).To(Equal([]string{"delete_user_new", "permission", "user"}))
			// earlier steps stay applied
			_, err = fb.GetPermission(ctx, reader.ID)
			Expect(err).To(MatchError(backend.ErrNotFound))
			Expect(publisher.types()).NotTo(ContainElement(events.EventTypeUserDeleted))
		})

		It("should report a missing user before touching any table", func() {
			err := svc.DeleteUser(ctx, admin, 999)
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
			Expect(fb.calls).To(BeEmpty())
		})
	})
})
