package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/harrisonrobin/notedo/pkg/app"
	"github.com/harrisonrobin/notedo/pkg/auth"
	"github.com/harrisonrobin/notedo/pkg/config"
	"github.com/harrisonrobin/notedo/pkg/logging"
	"github.com/harrisonrobin/notedo/pkg/model"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the vault and keep tasks in sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return err
			}
			logging.Info("main", "running, press Ctrl+C to stop")

			<-ctx.Done()
			logging.Info("main", "shutting down")
			a.Stop()
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var (
		draft  model.Draft
		target app.InsertTarget
	)
	cmd := &cobra.Command{
		Use:   "create <content...>",
		Short: "Create a Todoist task and insert its line into a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			draft.Content = strings.Join(args, " ")
			task, err := a.CreateTask(cmd.Context(), draft, target)
			if err != nil {
				return err
			}
			fmt.Println(task.URL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target.File, "note", "n", "", "Note to insert the task line into")
	cmd.Flags().IntVarP(&target.Line, "line", "l", -1, "Line to insert at (0-based, default append)")
	cmd.Flags().StringVarP(&draft.ProjectID, "project", "p", "", "Project id or name (default from settings)")
	cmd.Flags().IntVar(&draft.Priority, "priority", 1, "Priority, 4 is urgent")
	cmd.Flags().StringSliceVar(&draft.Labels, "label", nil, "Labels")
	cmd.Flags().StringVarP(&draft.Description, "description", "d", "", "Description")
	cmd.Flags().StringVar(&draft.DueDate, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&draft.DueTime, "time", "", "Due time (HH:MM), used when time selection is enabled")
	cmd.Flags().StringVar(&draft.Repeat, "repeat", "", "Recurrence such as \"every week\"")
	cmd.Flags().IntVar(&draft.Duration, "duration", 0, "Duration in minutes")
	cmd.Flags().StringVar(&draft.Reminder, "reminder", "", "Reminder such as \"30 minutes before\"")
	return cmd
}

func consolidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Write the consolidated task note",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			path, err := a.GenerateConsolidated(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(a.Vault().Resolve(path))
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull completion state from Todoist into the notes once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			n := a.Sync(cmd.Context())
			fmt.Printf("Updated %d lines\n", n)
			return nil
		},
	}
}

func checkLineCmd() *cobra.Command {
	var (
		file string
		line int
		text string
	)
	cmd := &cobra.Command{
		Use:   "check-line",
		Short: "Editor hook: push the state of the line under the cursor",
		Long: `Called by an editor after a line changes. The line text is taken
from --text or, when absent, from the first line of stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("text") {
				scanner := bufio.NewScanner(os.Stdin)
				if scanner.Scan() {
					text = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("reading line from stdin: %w", err)
				}
			}
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			if a.OnEditorChange(cmd.Context(), file, line, text) {
				logging.Debug("main", "pushed %s:%d", file, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Note path relative to the vault")
	cmd.Flags().IntVarP(&line, "line", "l", 0, "Line number (0-based)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Line text")
	cmd.MarkFlagRequired("file")
	return cmd
}

func repairCmd() *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Relocate task mappings whose lines moved",
		Long: `Checks every task mapping against its note. Mappings whose line moved
are pointed at the line now carrying the task. With --prune, mappings
whose task line is gone are removed. Mappings of deleted notes are
always removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			res, err := a.Repair(cmd.Context(), prune)
			if err != nil {
				return err
			}
			fmt.Printf("%d intact, %d relocated, %d removed\n", res.Intact, res.Relocated, res.Removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove mappings whose task line cannot be found")
	return cmd
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the Todoist API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			if !a.TestConnection(cmd.Context()) {
				return errors.New("connection failed, check your API token")
			}
			fmt.Println("Connection successful!")
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.APIToken != "" {
				shown.APIToken = "********"
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(&shown)
		},
	}
}

func setTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token <token>",
		Short: "Store the Todoist API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(func(cfg *config.Config) { cfg.APIToken = args[0] })
		},
	}
}

func setCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-calendar <name>",
		Short: "Set the Google Calendar that due tasks are mirrored into (empty disables)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := updateConfig(func(cfg *config.Config) { cfg.Calendar = args[0] }); err != nil {
				return err
			}
			fmt.Printf("Calendar set to: %s\n", args[0])
			return nil
		},
	}
}

func updateConfig(fn func(cfg *config.Config)) error {
	store, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fn(cfg)
	if err := config.Save(store, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	return nil
}

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google Calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := auth.ResetToken(); err != nil {
				return err
			}
			if _, err := auth.GetCalendarService(cmd.Context()); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			path, _ := auth.TokenPath()
			fmt.Printf("Authentication successful! Token saved to %s\n", path)
			return nil
		},
	}
}

func mirrorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mirror",
		Short: "Mirror open tasks with a due date into Google Calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Calendar == "" {
				return errors.New("no calendar configured, run `notedo set-calendar` first")
			}
			mirror, err := openCalendar(ctx, store, cfg.Calendar)
			if err != nil {
				return err
			}
			a, err := app.New(cfg, store, stderrNotifier, app.WithMirror(mirror))
			if err != nil {
				return err
			}
			res, err := a.MirrorCalendar(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d synced, %d deleted, %d failed\n", res.Synced, res.Deleted, res.Failed)
			return nil
		},
	}
}
