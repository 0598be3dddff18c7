package cli

import (
	"context"

	"github.com/spf13/cobra"

	"incidentcore/internal/core"
	"incidentcore/pkg/domain"
)

func (a *app) notificationCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "notification", Aliases: []string{"notifications"}, Short: "Read a user's notifications"}

	var user, filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications newest first",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, _ []string) error {
			notes, err := svc.ListNotifications(ctx, user, domain.NotificationFilter(filter))
			if err != nil {
				return err
			}
			return a.printer().notifications(notes)
		}),
	}
	list.Flags().StringVar(&user, "user", "", "recipient user id (required)")
	list.Flags().StringVar(&filter, "filter", string(domain.NotificationsAll), "all|unread|dismissed")
	_ = list.MarkFlagRequired("user")

	read := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  exactArgs(1),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, args []string) error {
			if err := svc.MarkNotificationRead(ctx, args[0]); err != nil {
				return err
			}
			return a.printer().ok("read", args[0])
		}),
	}

	dismiss := &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a notification",
		Args:  exactArgs(1),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, args []string) error {
			if err := svc.DismissNotification(ctx, args[0]); err != nil {
				return err
			}
			return a.printer().ok("dismissed", args[0])
		}),
	}

	cmd.AddCommand(list, read, dismiss)
	return cmd
}

func (a *app) docCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "doc", Short: "Work with the raw fragment document"}
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the committed document in its persisted encoding",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, _ []string) error {
			doc, err := svc.Document(ctx)
			if err != nil {
				return err
			}
			b, err := domain.EncodeDocument(doc)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(b)
			return err
		}),
	}
	cmd.AddCommand(dump)
	return cmd
}
