package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed addons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.List(context.Background())
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		if len(result.Addons) == 0 {
			PrintEmptyState("No addons installed")
			return nil
		}

		rows := make([][]string, 0, len(result.Addons))
		for _, addon := range result.Addons {
			rows = append(rows, []string{addon.Name, addon.Version, addon.Status.String(), addon.Title})
		}
		PrintSection(fmt.Sprintf("Addons (%d)", len(result.Addons)))
		PrintTable([]string{"NAME", "VERSION", "STATUS", "TITLE"}, rows)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show details of an addon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.Info(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSection(result.Info.Name)
		PrintLabelValue("Title", result.Info.Title)
		PrintLabelValue("Version", result.Info.Version)
		PrintLabelValue("Author", result.Info.Author)
		PrintLabelValueWithColor("Status", result.Info.Status.String(), statusColor(result.Info.Status))
		PrintLabelValue("Directory", result.Dir)

		var extras []string
		if result.HasConfig {
			extras = append(extras, "config.json")
		}
		if result.HasBootstrap {
			extras = append(extras, "bootstrap.js")
		}
		if result.HasTestdata {
			extras = append(extras, "testdata.sql")
		}
		if len(extras) > 0 {
			PrintLabelValue("Ships", strings.Join(extras, ", "))
		}

		if len(result.Files) > 0 {
			fmt.Println()
			PrintSubsection(fmt.Sprintf("Projected %s:", PrintCount(len(result.Files), "file", "files")))
			PrintList(result.Files, 2)
		}
		if len(result.Backups) > 0 {
			fmt.Println()
			PrintSubsection("Backups:")
			PrintList(result.Backups, 2)
		}
		return nil
	},
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts <name>",
	Short: "Show live files that differ from an addon's copies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.Conflicts(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		if len(result.Conflicts) == 0 {
			PrintSuccess(fmt.Sprintf("No conflicts for %s", result.Name))
			return nil
		}

		PrintSection("Conflicts Detected")
		for _, c := range result.Conflicts {
			PrintError(fmt.Sprintf("%s: %s", c.Path, c.Reason))
		}
		return nil
	},
}
