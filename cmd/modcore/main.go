// Package main is the CLI entry point for modcore.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hexforge/modcore/internal/config"
	"github.com/hexforge/modcore/internal/discovery"
	"github.com/hexforge/modcore/internal/settings"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "modcore",
	Short: "Mod host maintenance tool - inspect mods and their saved settings",
	Long: `modcore inspects the mod host's on-disk state: discovered mod
descriptors under the mods directory and the per-character settings
documents written by the persistence engine.

The hook dispatch core itself runs inside the game process; this tool only
reads what it leaves on disk.`,
	Version: Version,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered mods",
	Long:  `Scans the mods directory for descriptors and lists each mod's metadata, declared options and keybinds.`,
	RunE:  runList,
}

var settingsCmd = &cobra.Command{
	Use:   "settings <character>",
	Short: "Show a character's saved settings document",
	Long:  `Prints the per-character settings document (mod options and keybinds) as stored on disk.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSettings,
}

var validateCmd = &cobra.Command{
	Use:   "validate <descriptor>",
	Short: "Validate a mod descriptor file",
	Long:  `Parses a mod.yaml descriptor and reports whether its declared options and keybinds are well-formed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("modcore %s (commit %s, built %s)\n", Version, Commit, BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads config and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.BuildLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	scanner := discovery.NewScanner(cfg.ModsDir, logger)
	result, err := scanner.Scan()
	if err != nil {
		return err
	}

	if len(result.Mods) == 0 {
		fmt.Printf("No mods found under %s\n", cfg.ModsDir)
	}
	for _, mod := range result.Mods {
		version := mod.Version
		if version == "" {
			version = "unknown"
		}
		fmt.Printf("%s (v%s)\n", mod.Name, version)
		if len(mod.Authors) > 0 {
			fmt.Printf("  authors:  %s\n", strings.Join(mod.Authors, ", "))
		}
		if mod.Description != "" {
			fmt.Printf("  about:    %s\n", mod.Description)
		}
		fmt.Printf("  options:  %d\n", len(mod.Options.Roots()))
		fmt.Printf("  keybinds: %d\n", len(mod.Keybinds.Binds()))
	}

	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", failure.Path, failure.Err)
	}
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engine := settings.NewEngine(cfg.SettingsDir, logger)
	character := args[0]

	doc, err := engine.ReadDocument(character)
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Printf("No settings saved for character %q\n", character)
		return nil
	}

	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	desc, err := discovery.Parse(data)
	if err != nil {
		return fmt.Errorf("invalid descriptor: %w", err)
	}
	mod, err := desc.BuildMod(logger)
	if err != nil {
		return fmt.Errorf("invalid descriptor: %w", err)
	}

	fmt.Printf("%s is valid: %d option(s), %d keybind(s)\n",
		mod.Name, len(mod.Options.Roots()), len(mod.Keybinds.Binds()))
	if _, ok := desc.SemVersion(); !ok && desc.Version != "" {
		fmt.Printf("note: version %q is not semver, treated as display-only\n", desc.Version)
	}
	return nil
}
