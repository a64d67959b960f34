package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the fleet backend",
	Long: `Sign in and store the session token in ~/.fts/auth-token.json.
The password may also be given through FTS_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the session token and cached data",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (default $FTS_PASSWORD)")
	_ = loginCmd.MarkFlagRequired("username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		password = os.Getenv("FTS_PASSWORD")
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "A password is required: pass --password or set FTS_PASSWORD.")
		os.Exit(1)
	}

	client := mustClient()
	if _, err := client.Login(cmd.Context(), loginUsername, password); err != nil {
		fail(err)
	}
	fmt.Printf("Logged in as %s.\n", loginUsername)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	client := mustClient()
	if err := client.Logout(); err != nil {
		fail(err)
	}
	fmt.Println("Logged out.")
	return nil
}
