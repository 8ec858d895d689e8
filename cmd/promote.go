package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/account"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/spf13/cobra"
)

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant or revoke the admin role",
	Long: `Grant the admin role to a registered user. Registration only creates
regular users unless an admin is already signed in, so the first admin
is created with this command.`,
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

func init() {
	rootCmd.AddCommand(promoteCmd)

	promoteCmd.Flags().Bool("revoke", false, "Demote the user back to a regular user")
}

func runPromote(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	role := database.RoleAdmin
	if mustGetBool(cmd, "revoke") {
		role = database.RoleUser
	}
	user, err := setRole(ctx, store, args[0], role)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s <%s> is now %s\n", user.FirstName, user.LastName, user.Email, user.Role)
	return nil
}

func setRole(ctx context.Context, users database.UserWriter, email, role string) (*database.User, error) {
	user, err := users.GetUserByEmail(ctx, account.NormalizeEmail(email))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("no user registered with email %q", email)
	}
	if err != nil {
		return nil, err
	}
	update := database.UserUpdate{FirstName: user.FirstName, LastName: user.LastName, Email: user.Email, Role: role}
	if err := users.UpdateUser(ctx, user.ID, update); err != nil {
		return nil, fmt.Errorf("updating user %d: %w", user.ID, err)
	}
	user.Role = role
	return user, nil
}
