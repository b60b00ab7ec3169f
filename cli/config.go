// ABOUTME: Config CLI commands
// ABOUTME: Writes a default sync config and prints the effective one
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harperreed/crmbridge/sync"
)

// ConfigInitCommand writes the default sync config unless one already exists.
func ConfigInitCommand(opts Options, args []string) error {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite an existing config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := sync.ConfigPath()
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check config: %w", err)
	}

	cfg := sync.DefaultConfig()
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if err := sync.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("✓ Wrote %s\n", path)
	return nil
}

// ConfigShowCommand prints the effective config after file, env, and flag overrides.
func ConfigShowCommand(opts Options, args []string) error {
	return showConfig(opts, os.Stdout)
}

func showConfig(opts Options, out io.Writer) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = out.Write(data)
	return err
}
