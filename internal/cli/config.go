// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"labkit/internal/config"
)

// RegisterConfigCommands adds the config subcommands to the given group.
func RegisterConfigCommands(group *Group, e *Env) {
	group.AddCommand(&Command{
		Name:    "show",
		Summary: "Print the effective configuration as YAML",
		Usage:   "Usage: labkit config show",
		Run: func(context.Context, []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			if e.ParentDir != "" {
				cfg.ParentDir = e.ParentDir
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = e.Stdout.Write(data)
			return err
		},
	})

	group.AddCommand(&Command{
		Name:    "path",
		Summary: "Print the configuration file path",
		Usage:   "Usage: labkit config path",
		Run: func(context.Context, []string) error {
			fmt.Fprintln(e.Stdout, configPath(e.ConfigDir))
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "init",
		Summary: "Write the default configuration file",
		Usage:   "Usage: labkit config init [--force]",
		Run: func(_ context.Context, args []string) error {
			fs := newFlagSet("init")
			force := fs.Bool("force", false, "overwrite an existing file")
			if err := parseFlags(fs, args); err != nil {
				return err
			}
			return writeDefaultConfig(configPath(e.ConfigDir), *force, e)
		},
	})
}

func configPath(configDir string) string {
	return filepath.Join(config.Dir(configDir), "config.yaml")
}

func writeDefaultConfig(path string, force bool, e *Env) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	data, err := config.DefaultConfig().Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(e.Stdout, "Wrote %s\n", path)
	return nil
}
