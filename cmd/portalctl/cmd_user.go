package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/storage"
	"portal-api/internal/utils/pii"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage portal accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long:  `Create an applicant account, or an administrator with --admin.`,
	RunE:  runUserCreate,
}

func init() {
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().String("email", "", "Account email (required)")
	userCreateCmd.Flags().String("password", "", "Account password (required)")
	userCreateCmd.Flags().String("first-name", "", "First name")
	userCreateCmd.Flags().String("last-name", "", "Last name")
	userCreateCmd.Flags().Bool("admin", false, "Create an administrator")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	in := user.RegisterInput{}
	in.Email, _ = cmd.Flags().GetString("email")
	in.Password, _ = cmd.Flags().GetString("password")
	in.FirstName, _ = cmd.Flags().GetString("first-name")
	in.LastName, _ = cmd.Flags().GetString("last-name")
	admin, _ := cmd.Flags().GetBool("admin")

	users := user.NewService(backend.Users, pii.NewSanitizer(pii.ParseLevel(cfg.LogPII), cfg.SessionSecret), log)

	var created user.User
	if admin {
		created, err = users.CreateAdmin(ctx, in)
	} else {
		created, err = users.Register(ctx, in)
	}
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return fmt.Errorf("an account with email %s already exists", in.Email)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s account %d (%s)\n", created.Role, created.ID, created.Email)
	return nil
}
