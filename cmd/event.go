package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/frahmantamala/admin-console/internal/core/events"
	"github.com/frahmantamala/admin-console/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect the in-process event bus: list event types and publish test events through the audit subscriber`,
}

var listEventsCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user event types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range events.UserEventTypes {
			fmt.Println(t)
		}
	},
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test user event to the event bus and print what the audit subscriber logs`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishTestEvent(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	eventActorID  int64
	eventTargetID int64
	eventUsername string
	eventPerm     string
)

func publishTestEvent(eventType string) error {
	if !slices.Contains(events.UserEventTypes, eventType) {
		return fmt.Errorf("unknown event type %q; known: %s", eventType, strings.Join(events.UserEventTypes, ", "))
	}

	lg := logger.LoggerWrapper()
	eventBus := events.NewEventBus(lg)
	events.SubscribeAuditLog(eventBus, lg)

	var event events.Event
	switch eventType {
	case events.EventTypeUserCreated:
		event = events.NewUserCreatedEvent(eventActorID, eventTargetID, eventUsername, eventPerm)
	case events.EventTypePasswordChanged:
		event = events.NewPasswordChangedEvent(eventActorID, eventTargetID)
	case events.EventTypePermissionChanged:
		event = events.NewPermissionChangedEvent(eventActorID, eventTargetID, eventPerm)
	case events.EventTypeUserDeleted:
		event = events.NewUserDeletedEvent(eventActorID, eventTargetID, eventUsername)
	}

	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())
	if err := eventBus.PublishSync(context.Background(), event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	lg.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventActorID, "actor", 1, "acting user id")
	publishEventCmd.Flags().Int64Var(&eventTargetID, "target", 1, "target user id")
	publishEventCmd.Flags().StringVar(&eventUsername, "username", "test-user", "username carried by the event")
	publishEventCmd.Flags().StringVar(&eventPerm, "permission", "read_only", "permission carried by the event")

	eventCmd.AddCommand(listEventsCmd)
	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
