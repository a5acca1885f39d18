package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/usecase/tracker"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a sales rep account",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		email, _ := cmd.Flags().GetString("email")
		fullName, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")

		user, err := app.Tracker.RegisterUser(ctx, tracker.RegisterUserInput{
			Email:    email,
			FullName: fullName,
			Password: password,
			Role:     tracker.RoleRep,
		})
		if err != nil {
			logging.Error(ctx, "register user failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "register user")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "registered user: id=%d email=%s role=%s rep_id=%d\n", user.UserID, user.Email, user.Role, user.RepID); err != nil {
			return errs.Wrap(err, "write register output")
		}
		return nil
	}),
}

var userCreateAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		email, _ := cmd.Flags().GetString("email")
		fullName, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")

		user, err := app.Tracker.CreateAdmin(ctx, tracker.RegisterUserInput{
			Email:    email,
			FullName: fullName,
			Password: password,
			Actor:    "cli",
		})
		if err != nil {
			logging.Error(ctx, "create admin failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create admin")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created admin: id=%d email=%s\n", user.UserID, user.Email); err != nil {
			return errs.Wrap(err, "write create-admin output")
		}
		return nil
	}),
}

var userLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check credentials and print a bearer token",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := app.Config.RequireJWTSecret(); err != nil {
			return err
		}

		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		result, err := app.Tracker.Authenticate(ctx, email, password)
		if err != nil {
			logging.Warn(ctx, "login failed", slog.String("email", email), slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "login")
		}

		if _, err := fmt.Fprintln(cmd.OutOrStdout(), result.Token); err != nil {
			return errs.Wrap(err, "write login output")
		}
		return nil
	}),
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		users, err := app.Tracker.ListUsers(ctx)
		if err != nil {
			logging.Error(ctx, "list users failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list users")
		}
		if len(users) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no users"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "id\temail\tname\trole\tactive\trep_id\tcreated_at"); err != nil {
			return errs.Wrap(err, "write list header")
		}
		for _, user := range users {
			if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%d\t%s\n",
				user.UserID, user.Email, user.FullName, user.Role, user.IsActive, user.RepID, user.CreatedAt); err != nil {
				return errs.Wrap(err, "write list row")
			}
		}
		return errs.Wrap(w.Flush(), "flush list output")
	}),
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userRegisterCmd, userCreateAdminCmd, userLoginCmd, userListCmd)

	for _, c := range []*cobra.Command{userRegisterCmd, userCreateAdminCmd} {
		c.Flags().String("email", "", "Account email")
		c.Flags().String("name", "", "Full name")
		c.Flags().String("password", "", "Account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("name")
		_ = c.MarkFlagRequired("password")
	}

	userLoginCmd.Flags().String("email", "", "Account email")
	userLoginCmd.Flags().String("password", "", "Account password")
	_ = userLoginCmd.MarkFlagRequired("email")
	_ = userLoginCmd.MarkFlagRequired("password")
}
