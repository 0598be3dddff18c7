package cli

import (
	"context"

	"github.com/spf13/cobra"

	"incidentcore/internal/core"
	"incidentcore/pkg/domain"
)

func (a *app) userCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage user accounts"}

	var email, password, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user; the password is stored as a bcrypt hash",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, cmd *cobra.Command, _ []string) error {
			id, err := svc.Register(ctx, email, password, optionalString(cmd, "name", name))
			if err != nil {
				return err
			}
			return a.printer().id(id)
		}),
	}
	create.Flags().StringVar(&email, "email", "", "email address (required)")
	create.Flags().StringVar(&password, "password", "", "plaintext password (required)")
	create.Flags().StringVar(&name, "name", "", "display name")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	var byEmail string
	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one user by id or --email",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, args []string) error {
			var (
				u   domain.User
				err error
			)
			switch {
			case byEmail != "" && len(args) == 0:
				u, err = svc.FindUserByEmail(ctx, byEmail)
			case byEmail == "" && len(args) == 1:
				u, err = svc.FindUserByID(ctx, args[0])
			default:
				return usageError("give either a user id or --email")
			}
			if err != nil {
				return err
			}
			return a.printer().users([]domain.User{u})
		}),
	}
	get.Flags().StringVar(&byEmail, "email", "", "look the user up by email")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every user",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, _ []string) error {
			users, err := svc.ListUsers(ctx)
			if err != nil {
				return err
			}
			return a.printer().users(users)
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user and the notifications addressed to them",
		Args:  exactArgs(1),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, args []string) error {
			if err := svc.DeleteUser(ctx, args[0]); err != nil {
				return err
			}
			return a.printer().ok("deleted", args[0])
		}),
	}

	cmd.AddCommand(create, get, list, del)
	return cmd
}

func (a *app) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check an email and password pair",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, _ []string) error {
			u, err := svc.Authenticate(ctx, email, password)
			if err != nil {
				return err
			}
			return a.printer().users([]domain.User{u})
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "plaintext password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
