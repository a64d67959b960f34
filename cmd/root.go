package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/fleet-timesheet/internal/api"
	"github.com/Tiliavir/fleet-timesheet/internal/config"
	"github.com/Tiliavir/fleet-timesheet/internal/logging"
	"github.com/Tiliavir/fleet-timesheet/internal/session"
	"github.com/Tiliavir/fleet-timesheet/internal/storage"
	"github.com/Tiliavir/fleet-timesheet/internal/timecalc"
	"github.com/Tiliavir/fleet-timesheet/internal/timesheet"
)

// cfg is loaded once before any command runs.
var cfg = config.Default()

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "fts",
	Short: "Fleet Timesheet – assign vehicle trips to drivers and tickets",
	Long: `fts drafts timesheets from fleet trip data: each trip is paired with a
driver and a ticket, reviewed, and submitted to the ticketing system.
Credentials and drafts are stored as JSON files in ~/.fts/.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests at debug level")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(vehiclesCmd)
	rootCmd.AddCommand(tripsCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(timesheetCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}
	cfg = loaded
	if verbose {
		logging.SetupWithLevel(slog.LevelDebug)
	} else {
		logging.Setup(cfg.LogLevel)
	}
	return nil
}

// newSession opens the durable token store in ~/.fts.
func newSession() (*session.Session, error) {
	base, err := storage.BaseDir()
	if err != nil {
		return nil, err
	}
	sess := session.New(storage.NewFileStore(base))
	sess.OnExpired(func() {
		fmt.Fprintln(os.Stderr, "Session expired. Run `fts login` to sign in again.")
	})
	return sess, nil
}

// newClient wires a fleet API client from the loaded configuration.
func newClient() (*api.Client, error) {
	sess, err := newSession()
	if err != nil {
		return nil, err
	}
	cacheDir, err := storage.SessionDir()
	if err != nil {
		return nil, err
	}
	return api.NewClient(sess, storage.NewFileStore(cacheDir),
		api.WithBaseURL(cfg.API.BaseURL),
		api.WithTimeout(cfg.API.Timeout()),
		api.WithMaxRetries(cfg.API.MaxRetries),
		api.WithVehiclesTTL(cfg.API.VehiclesCacheTTL()),
	), nil
}

// mustClient returns a client or exits with status 2.
func mustClient() *api.Client {
	client, err := newClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return client
}

// draftStore returns the durable store timesheet drafts live in.
func draftStore() (storage.Store, error) {
	base, err := storage.BaseDir()
	if err != nil {
		return nil, err
	}
	return storage.NewFileStore(filepath.Join(base, "drafts")), nil
}

func location() *time.Location {
	return timecalc.LoadLocation(cfg.Timezone)
}

// fail prints err and exits: 1 for problems the user can fix, 2 otherwise.
func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, api.ErrAuthenticationRequired),
		errors.Is(err, api.ErrInvalidCredentials),
		errors.Is(err, timesheet.ErrNotReady),
		errors.Is(err, context.Canceled),
		timesheet.IsValidation(err):
		return 1
	default:
		return 2
	}
}
