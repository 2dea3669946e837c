package main

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
	"github.com/IngAlexfit/caribeVibes-system-sub001/repository"
)

// NewUsersCmd creates the users subcommand and its children.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}

	cmd.AddCommand(newGrantRoleCmd())
	cmd.AddCommand(newDeactivateCmd())

	return cmd
}

func newGrantRoleCmd() *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "grant-role",
		Short: "Grant a role to an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccounts(cmd, func(ctx context.Context, accounts repository.AccountManager) error {
				if err := accounts.AssignRole(ctx, email, role); err != nil {
					return describeAccountError(err, email)
				}
				cmd.Printf("granted %s to %s\n", strings.ToUpper(strings.TrimSpace(role)), email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", "", "role name, e.g. ADMIN")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func newDeactivateCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate an account; its tokens can no longer be refreshed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccounts(cmd, func(ctx context.Context, accounts repository.AccountManager) error {
				if err := accounts.SetActive(ctx, email, false); err != nil {
					return describeAccountError(err, email)
				}
				cmd.Printf("deactivated %s\n", email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func withAccounts(cmd *cobra.Command, fn func(context.Context, repository.AccountManager) error) error {
	cfg, _, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	if cfg.Database.Driver == repository.DriverMemory {
		return oops.
			Code("CONFIGURATION_ERROR").
			Wrapf(auth.ErrConfiguration, "account management needs a persistent database driver")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, closeStore, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, store)
}

func describeAccountError(err error, email string) error {
	if errors.Is(err, auth.ErrNotFound) {
		return oops.Code("NOT_FOUND").With("email", email).Wrapf(err, "account or role not found")
	}
	return err
}
