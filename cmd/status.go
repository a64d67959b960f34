package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sign-in status and backend settings",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	now := time.Now()

	sess, err := newSession()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Backend: %s\n", cfg.API.BaseURL)
	if !sess.Authenticated() {
		fmt.Println("Not signed in. Run `fts login`.")
		return nil
	}

	fmt.Println("Signed in.")
	if exp, ok := sess.Expiry(); ok {
		remaining := int64(exp.Sub(now).Seconds())
		if remaining <= 0 {
			fmt.Printf("  Token expired at %s.\n", exp.In(location()).Format("2006-01-02 15:04"))
		} else {
			fmt.Printf("  Token expires in %s.\n", formatElapsed(remaining))
		}
	}
	return nil
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
