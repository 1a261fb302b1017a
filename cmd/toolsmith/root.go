package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/toolsmith/internal/app"
	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFiles []string
	logLevel    string
	remoteURL   string
	port        int
	host        string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "toolsmith",
		Short:         "Generate typed tools from an ERPNext/Frappe site",
		Long:          "toolsmith discovers resource types and procedures of an ERPNext/Frappe site and exposes them as validated operations over HTTP and MCP.",
		Version:       common.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringArrayVarP(&flags.configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (overrides config)")
	pf.StringVar(&flags.remoteURL, "remote-url", "", "Frappe site URL (overrides config)")

	root.AddCommand(
		newServeCmd(flags),
		newDiscoverCmd(flags),
		newOperationsCmd(flags),
		newDescribeCmd(flags),
		newExecCmd(flags),
		newScanCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads configuration files, environment and flags, in that order.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	files := f.configFiles
	if len(files) == 0 {
		for _, path := range configSearchPaths() {
			if _, err := os.Stat(path); err == nil {
				files = append(files, path)
				break
			}
		}
	}

	cfg, err := config.LoadFromFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config.ApplyFlagOverrides(cfg, f.port, f.host, f.remoteURL, f.logLevel)
	return cfg, nil
}

// openApp builds the application without starting background work.
func (f *globalFlags) openApp() (*app.App, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, configError(problems)
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)
	return app.New(cfg, logger)
}

func configError(problems []string) error {
	msg := "configuration error, mandatory fields are missing or invalid:"
	for _, p := range problems {
		msg += "\n  - " + p
	}
	msg += "\nValues can be set via TOML file, TOOLSMITH_* environment variables, or CLI flags."
	return fmt.Errorf("%s", msg)
}

// configSearchPaths returns TOML files to auto-discover (first match wins).
// Binary-relative paths are tried before the working directory.
func configSearchPaths() []string {
	candidates := []string{
		"toolsmith.toml",
		"config/toolsmith.toml",
	}

	exe, err := os.Executable()
	if err != nil {
		return candidates
	}
	binDir := filepath.Dir(exe)
	paths := append([]string{
		filepath.Join(binDir, "toolsmith.toml"),
		filepath.Join(binDir, "config", "toolsmith.toml"),
	}, candidates...)

	seen := make(map[string]bool, len(paths))
	deduped := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		deduped = append(deduped, p)
	}
	return deduped
}
