package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/admin-console/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var (
		bus    *events.EventBus
		logger *slog.Logger
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		bus = events.NewEventBus(logger)
	})

	It("should deliver published events to subscribers", func() {
		var (
			mu   sync.Mutex
			seen []string
		)
		bus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, e events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, e.EventType())
			return nil
		})

		Expect(bus.Publish(context.Background(), events.NewUserCreatedEvent(1, 2, "bob", "admin"))).To(Succeed())
		Expect(bus.Wait(context.Background())).To(Succeed())

		mu.Lock()
		defer mu.Unlock()
		Expect(seen).To(Equal([]string{events.EventTypeUserCreated}))
	})

	It("should keep running handlers after the publishing context is cancelled", func() {
		done := make(chan error, 1)
		bus.Subscribe(events.EventTypeUserDeleted, func(ctx context.Context, e events.Event) error {
			done <- ctx.Err()
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(bus.Publish(ctx, events.NewUserDeletedEvent(1, 3, "carol"))).To(Succeed())
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("should return handler errors from PublishSync", func() {
		bus.Subscribe(events.EventTypePasswordChanged, func(ctx context.Context, e events.Event) error {
			return errors.New("boom")
		})

		err := bus.PublishSync(context.Background(), events.NewPasswordChangedEvent(1, 1))
		Expect(err).To(MatchError(ContainSubstring("boom")))
	})

	It("should ignore events without subscribers", func() {
		Expect(bus.Publish(context.Background(), events.NewPermissionChangedEvent(1, 2, "admin"))).To(Succeed())
	})

	Describe("audit log", func() {
		It("should write a structured line per user event", func() {
			var buf bytes.Buffer
			audit := slog.New(slog.NewJSONHandler(&buf, nil))
			events.SubscribeAuditLog(bus, audit)

			Expect(bus.PublishSync(context.Background(), events.NewPermissionChangedEvent(1, 5, "read_only"))).To(Succeed())
			Expect(buf.String()).To(ContainSubstring(`"event_type":"user.permission_changed"`))
			Expect(buf.String()).To(ContainSubstring(`"target_user_id":5`))
			Expect(buf.String()).To(ContainSubstring(`"permission":"read_only"`))
		})
	})
})
