package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/addonctl/internal/engine"
)

var (
	installForce   bool
	uninstallForce bool
)

var installCmd = &cobra.Command{
	Use:   "install <name>",
	Short: "Install and enable an addon from its package",
	Long: `Install the addon packaged as runtime/addons/<name>.zip and enable it.

The package is extracted into addons/<name>, its install hook and install.sql
run, and its files are projected onto the application root. If any step
fails the addon directory is removed again.

Use --force to reinstall over an existing addon and overwrite conflicting files.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.Install(context.Background(), &engine.InstallRequest{
			Name:  args[0],
			Force: installForce,
		})
		if err != nil {
			return reportConflicts(err)
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSuccess(fmt.Sprintf("Installed %s", args[0]))
		printInstallResult(result)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file.zip>",
	Short: "Install an addon from a package file",
	Long: `Install an addon from any package file. The addon is installed but
not enabled; run 'addonctl enable <name>' afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open package: %w", err)
		}
		defer f.Close()

		st, err := f.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat package: %w", err)
		}

		result, err := a.engine.InstallFromUpload(context.Background(), &engine.UploadRequest{
			Filename: filepath.Base(args[0]),
			Size:     st.Size(),
			Reader:   f,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSuccess(fmt.Sprintf("Installed %s (disabled)", result.Info.Name))
		printInstallResult(result)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove an addon",
	Long: `Remove a disabled addon and its directory.

With --force an enabled addon is removed too, and its files are deleted from
the application root first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.Uninstall(context.Background(), &engine.UninstallRequest{
			Name:  args[0],
			Force: uninstallForce,
		})
		if err != nil {
			return reportConflicts(err)
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSuccess(fmt.Sprintf("Uninstalled %s", result.Name))
		if len(result.Purged) > 0 {
			PrintSubsection(fmt.Sprintf("Removed %s from the application root:", PrintCount(len(result.Purged), "file", "files")))
			PrintList(result.Purged, 2)
		}
		return nil
	},
}

func printInstallResult(result *engine.InstallResult) {
	PrintLabelValue("Title", result.Info.Title)
	PrintLabelValue("Version", result.Info.Version)
	PrintLabelValueWithColor("Status", result.Info.Status.String(), statusColor(result.Info.Status))
	if result.HasConfig {
		PrintLabelValue("Config", "config.json")
	}
	if result.HasTestdata {
		PrintLabelValue("Testdata", "testdata.sql available")
	}
	if result.Seed.Executed > 0 || result.Seed.Failed > 0 {
		PrintLabelValue("Seed", fmt.Sprintf("%d executed, %d failed", result.Seed.Executed, result.Seed.Failed))
	}
	if len(result.Files) > 0 {
		PrintLabelValue("Files", PrintCount(len(result.Files), "file projected", "files projected"))
	}
}

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "Reinstall and overwrite conflicting files")
	uninstallCmd.Flags().BoolVarP(&uninstallForce, "force", "f", false, "Uninstall even if enabled, removing live files")
}
