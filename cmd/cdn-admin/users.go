package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
	"github.com/prn-tf/amethyst-cdn/internal/service"
)

var (
	usersOffset int
	usersLimit  int
	usersAdmins bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, app, logger, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		identity := service.NewIdentityService(app.Repos.User, app.Repos.Namespace, nil, logger, 0)
		result, err := identity.ListUsers(ctx, repository.ListOptions{Offset: usersOffset, Limit: usersLimit})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAMESPACE\tROLE\tCREATED")
		users := result.Items
		if usersAdmins {
			users = adminsOnly(users)
		}
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Email, u.Namespace, u.Role, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d users\n", len(users), result.Total)
		return nil
	},
}

func init() {
	usersListCmd.Flags().IntVar(&usersOffset, "offset", 0, "number of users to skip")
	usersListCmd.Flags().IntVar(&usersLimit, "limit", 50, "maximum number of users to print")
	usersListCmd.Flags().BoolVar(&usersAdmins, "admins", false, "only print administrators")
	usersCmd.AddCommand(usersListCmd)
}

// adminsOnly keeps the users with administrative privileges.
func adminsOnly(users []*domain.User) []*domain.User {
	var out []*domain.User
	for _, u := range users {
		if u.IsAdmin() {
			out = append(out, u)
		}
	}
	return out
}
