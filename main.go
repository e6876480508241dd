package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harrisonrobin/notedo/pkg/app"
	"github.com/harrisonrobin/notedo/pkg/colors"
	"github.com/harrisonrobin/notedo/pkg/config"
	"github.com/harrisonrobin/notedo/pkg/datastore"
	"github.com/harrisonrobin/notedo/pkg/google"
	"github.com/harrisonrobin/notedo/pkg/index"
	"github.com/harrisonrobin/notedo/pkg/logging"
	"github.com/harrisonrobin/notedo/pkg/reconcile"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	verbose  bool
	dataPath string
)

func main() {
	// Optional .env with TODOIST_API_TOKEN / NOTEDO_VAULT.
	if err := godotenv.Load(); err == nil {
		logging.Debug("config", "loaded .env file")
	}

	rootCmd := &cobra.Command{
		Use:   "notedo",
		Short: "Keep Markdown task lines and Todoist in sync",
		Long: `notedo creates Todoist tasks from a Markdown vault, keeps the
completion state of #tasktodo lines in step with Todoist, writes a
consolidated task note and optionally mirrors due tasks into Google Calendar.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logging.SetDebug(true)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Path of the data file (default ~/.config/notedo/data.json)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(consolidateCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(checkLineCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(setTokenCmd())
	rootCmd.AddCommand(setCalendarCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(mirrorCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openStore() (*datastore.Store, error) {
	path := dataPath
	if path == "" {
		var err error
		if path, err = datastore.DefaultPath(); err != nil {
			return nil, fmt.Errorf("could not find path to data file: %w", err)
		}
	}
	return datastore.New(path), nil
}

func loadConfig() (*datastore.Store, *config.Config, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(store)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	return store, cfg, nil
}

var stderrNotifier = reconcile.NotifyFunc(func(msg string) {
	fmt.Fprintln(os.Stderr, msg)
})

// openApp builds the application. With withCalendar set and a calendar
// configured, the calendar mirror is connected; failing that is only logged.
func openApp(ctx context.Context, withCalendar bool) (*app.App, error) {
	store, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var opts []app.Option
	if withCalendar && cfg.Calendar != "" {
		mirror, err := openCalendar(ctx, store, cfg.Calendar)
		if err != nil {
			logging.Info("calendar", "mirror disabled: %v", err)
		} else {
			opts = append(opts, app.WithMirror(mirror))
		}
	}
	return app.New(cfg, store, stderrNotifier, opts...)
}

func openCalendar(ctx context.Context, store *datastore.Store, name string) (*google.CalendarClient, error) {
	idx := index.NewEventIndex(store)
	if err := idx.Load(); err != nil {
		logging.Info("calendar", "could not load event index: %v", err)
	}
	cache := colors.NewColorCache(store)
	if err := cache.Load(); err != nil {
		logging.Info("calendar", "could not load project colours: %v", err)
	}
	return google.NewClient(ctx, name, idx, cache)
}
