package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/addonctl/internal/engine"
)

var (
	enableForce  bool
	disableForce bool
)

var enableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Project an addon onto the application root",
	Long: `Copy the addon's app, public, templates and assets files onto the
application root.

Live files that differ from the addon's copies abort the command. With
--force they are backed up to runtime/addons and overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.Enable(context.Background(), &engine.EnableRequest{
			Name:  args[0],
			Force: enableForce,
		})
		if err != nil {
			return reportConflicts(err)
		}

		return printToggleResult("Enabled", args[0], result)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Retract an addon from the application root",
	Long: `Remove the addon's files from the application root and move them back
into the addon directory.

Live files edited since the addon was enabled abort the command. With
--force they are backed up to runtime/addons and discarded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.Disable(context.Background(), &engine.DisableRequest{
			Name:  args[0],
			Force: disableForce,
		})
		if err != nil {
			return reportConflicts(err)
		}

		return printToggleResult("Disabled", args[0], result)
	},
}

func printToggleResult(verb, name string, result *engine.ToggleResult) error {
	if jsonOutput {
		return outputJSON(result)
	}

	PrintSuccess(fmt.Sprintf("%s %s (%s)", verb, name, PrintCount(len(result.Files), "file", "files")))
	if result.Backup != "" {
		PrintLabelValue("Conflict backup", result.Backup)
	}
	return nil
}

func init() {
	enableCmd.Flags().BoolVarP(&enableForce, "force", "f", false, "Back up and overwrite conflicting files")
	disableCmd.Flags().BoolVarP(&disableForce, "force", "f", false, "Back up and discard edited live files")
}
