package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
)

var usersFormat string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List drivers and engineers",
	Args:  cobra.NoArgs,
	RunE:  runUsers,
}

var usersInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Seed the backend with demo users",
	Args:  cobra.NoArgs,
	RunE:  runUsersInit,
}

func init() {
	usersCmd.Flags().StringVar(&usersFormat, "format", formatMD, "Output format: md, csv, json")
	usersCmd.AddCommand(usersInitCmd)
}

func runUsers(cmd *cobra.Command, args []string) error {
	if err := checkFormat(usersFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	users, err := mustClient().Users(cmd.Context())
	if err != nil {
		fail(err)
	}
	if len(users) == 0 && usersFormat == formatMD {
		fmt.Println("No users found.")
		return nil
	}
	return render(os.Stdout, usersFormat, userTable(users), users)
}

func runUsersInit(cmd *cobra.Command, args []string) error {
	if err := mustClient().InitTestUsers(cmd.Context()); err != nil {
		fail(err)
	}
	fmt.Println("Test users initialized.")
	return nil
}

func userTable(users []model.User) table {
	t := table{header: []string{"id", "name", "department", "resource_id"}}
	for _, u := range users {
		t.add(u.ID, u.Name, u.Department, u.ResourceID)
	}
	return t
}
