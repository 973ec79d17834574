package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/addonctl/internal/watch"
)

var backupCmd = &cobra.Command{
	Use:   "backup <name>",
	Short: "Archive an addon directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.engine.Backup(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]string{"name": args[0], "archive": path})
		}

		PrintSuccess(fmt.Sprintf("Backed up %s", args[0]))
		PrintLabelValue("Archive", path)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Regenerate the addon bundle and registration table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.Refresh(context.Background()); err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]bool{"refreshed": true})
		}
		PrintSuccess("Artifacts regenerated")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report edits to files projected by enabled addons",
	Long: `Watch the application root for changes to files owned by enabled
addons and report each addon whose live files drift from its copies.
Nothing is modified. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.watcher.SetDriftCallback(func(d watch.Drift) {
			if jsonOutput {
				_ = outputJSON(d)
				return
			}
			PrintWarning(fmt.Sprintf("%s drifted", d.Addon))
			for _, p := range d.Changed {
				PrintInfo(fmt.Sprintf("    modified: %s", p))
			}
			for _, p := range d.Missing {
				PrintInfo(fmt.Sprintf("    missing:  %s", p))
			}
		})

		if !jsonOutput {
			PrintInfo("Watching for drift, press Ctrl-C to stop")
		}
		return a.watcher.Run(ctx)
	},
}
