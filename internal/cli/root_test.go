package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_HelpListsGroups(t *testing.T) {
	rootCmd.SetArgs([]string{"--help"})
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{"addonctl", "Addon Lifecycle:", "Inspection:", "Maintenance:", "enable", "refresh"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func TestVersionSubcommand(t *testing.T) {
	SetVersion("0.4.0")
	rootCmd.SetArgs([]string{"version"})
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "0.4.0" {
		t.Errorf("version output = %q, want %q", got, "0.4.0")
	}
}

func TestRootCommand_UnknownCommand(t *testing.T) {
	rootCmd.SetArgs([]string{"activate"})
	var buf bytes.Buffer
	rootCmd.SetErr(&buf)

	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestSetVersion_IgnoresEmpty(t *testing.T) {
	SetVersion("1.2.3")
	SetVersion("")
	if rootCmd.Version != "1.2.3" {
		t.Errorf("rootCmd.Version = %q, want %q", rootCmd.Version, "1.2.3")
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	tests := []struct {
		name  string
		group string
		force bool
	}{
		{"install", "addon-lifecycle", true},
		{"upload", "addon-lifecycle", false},
		{"uninstall", "addon-lifecycle", true},
		{"enable", "addon-lifecycle", true},
		{"disable", "addon-lifecycle", true},
		{"list", "addon-inspection", false},
		{"info", "addon-inspection", false},
		{"conflicts", "addon-inspection", false},
		{"watch", "addon-inspection", false},
		{"backup", "maintenance", false},
		{"refresh", "maintenance", false},
		{"version", "cli-tooling", false},
		{"completion", "cli-tooling", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subCmd, _, err := rootCmd.Find([]string{tt.name})
			if err != nil || subCmd == nil || subCmd.Name() != tt.name {
				t.Fatalf("Find(%q) = %v, %v", tt.name, subCmd, err)
			}
			if subCmd.GroupID != tt.group {
				t.Errorf("%s group = %q, want %q", tt.name, subCmd.GroupID, tt.group)
			}
			if got := subCmd.Flags().Lookup("force") != nil; got != tt.force {
				t.Errorf("%s has --force = %v, want %v", tt.name, got, tt.force)
			}
		})
	}
}
