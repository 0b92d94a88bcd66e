package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/me/folio/internal/auth"
	"github.com/me/folio/internal/config"
	"github.com/me/folio/internal/store"
	"github.com/me/folio/pkg/model"
	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(newAdminCreateCmd())
	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			admin := &model.Admin{Email: email, PasswordHash: hash}
			if err := st.CreateAdmin(cmd.Context(), admin); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return fmt.Errorf("admin %s already exists", admin.Email)
				}
				return fmt.Errorf("create admin: %w", err)
			}
			logger.Info("admin created", "id", admin.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Admin created: %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (min 8 characters)")
	return cmd
}
