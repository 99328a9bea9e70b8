package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/frahmantamala/admin-console/internal/backend"
	backendPostgres "github.com/frahmantamala/admin-console/internal/backend/postgres"
	userDatamodel "github.com/frahmantamala/admin-console/internal/core/datamodel/user"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestBackendPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Backend Postgres Suite")
}

var _ = Describe("Postgres backend client", func() {
	var (
		ctx    context.Context
		db     *gorm.DB
		client *backendPostgres.Client
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		// tables only; procedures are exercised against a real database
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&userDatamodel.User{},
			&userDatamodel.Permission{},
			&userDatamodel.UserPermission{},
			&userDatamodel.AuthIdentity{},
			&userDatamodel.Log{},
		)
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		// a single connection keeps every query on the same :memory: database
		sqlDB.SetMaxOpenConns(1)

		client = backendPostgres.NewClient(db, sqlx.NewDb(sqlDB, "sqlite3"), nil)

		Expect(db.Create(&userDatamodel.Permission{Name: "read_only"}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&userDatamodel.Permission{Name: "admin"}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&userDatamodel.User{ID: 1, Username: "root", Password: "hash", AuthID: "a-1"}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&userDatamodel.User{ID: 2, Username: "bob", Password: "hash", AuthID: "a-2"}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&userDatamodel.UserPermission{UserID: 1, Username: "root", PermissionType: "admin"}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&userDatamodel.UserPermission{UserID: 2, Username: "bob", PermissionType: "read_only"}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&userDatamodel.AuthIdentity{ID: "a-2", UserID: 2}).Error).NotTo(HaveOccurred())
	})

	Describe("reads", func() {
		It("should find a user by username", func() {
			rec, err := client.FindUserByUsername(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ID).To(Equal(int64(2)))
			Expect(rec.AuthID).To(Equal("a-2"))
		})

		It("should map missing rows to ErrNotFound", func() {
			_, err := client.FindUserByUsername(ctx, "nobody")
			Expect(err).To(MatchError(backend.ErrNotFound))

			_, err = client.GetPermission(ctx, 42)
			Expect(err).To(MatchError(backend.ErrNotFound))
		})

		It("should list users ordered by id", func() {
			rows, err := client.ListUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].Username).To(Equal("root"))
			Expect(rows[1].PermissionType).To(Equal("read_only"))
		})

		It("should list permission names", func() {
			names, err := client.ListPermissions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"read_only", "admin"}))
		})
	})

	Describe("ListLogs", func() {
		BeforeEach(func() {
			base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			Expect(db.Create(&userDatamodel.Log{UserID: 1, Action: "create_user", Timestamp: base, CustomFields: `{"target_user_id":2}`}).Error).NotTo(HaveOccurred())
			Expect(db.Create(&userDatamodel.Log{UserID: 2, Action: "change_password", Timestamp: base.Add(time.Hour)}).Error).NotTo(HaveOccurred())
			Expect(db.Create(&userDatamodel.Log{UserID: 1, Action: "change_permission", Timestamp: base.Add(2 * time.Hour)}).Error).NotTo(HaveOccurred())
		})

		It("should return every row newest first", func() {
			rows, err := client.ListLogs(ctx, backend.LogFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0].Action).To(Equal("change_permission"))
			Expect(rows[2].Action).To(Equal("create_user"))
			Expect(string(rows[2].CustomFields)).To(Equal(`{"target_user_id":2}`))
		})

		It("should filter by user id", func() {
			uid := int64(2)
			rows, err := client.ListLogs(ctx, backend.LogFilter{UserID: &uid})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].UserID).To(Equal(uid))
			Expect(rows[0].CustomFields).To(BeEmpty())
		})
	})

	Describe("delete steps", func() {
		It("should remove the permission row, user row and auth identity", func() {
			Expect(client.DeletePermission(ctx, 2)).To(Succeed())
			Expect(client.DeleteUserRow(ctx, 2)).To(Succeed())
			Expect(client.DeleteAuthIdentity(ctx, "a-2")).To(Succeed())

			_, err := client.GetUser(ctx, 2)
			Expect(err).To(MatchError(backend.ErrNotFound))

			var count int64
			db.Model(&userDatamodel.AuthIdentity{}).Count(&count)
			Expect(count).To(Equal(int64(0)))
		})

		It("should treat an empty auth id as nothing to delete", func() {
			Expect(client.DeleteAuthIdentity(ctx, "")).To(Succeed())
		})
	})

	Describe("procedures", func() {
		It("should surface a missing procedure as a transport error", func() {
			_, err := client.CheckPassword(ctx, "secret", "hash")
			Expect(err).To(HaveOccurred())
			_, isProc := backend.IsProcedureError(err)
			Expect(isProc).To(BeFalse())
		})
	})

	It("should ping the database", func() {
		Expect(client.Ping(ctx)).To(Succeed())
	})
})
