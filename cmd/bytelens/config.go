package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/grokify/bytelens/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, show and check configuration files",
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(root),
		newConfigValidateCmd(),
	)
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := output
			if path == "" {
				path = config.DefaultConfigPath()
			}

			_, err := os.Stat(path)
			switch {
			case err == nil && !force:
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return err
			}

			cfg := config.DefaultConfig()
			cfg.Scan.Exclude = []string{"*.min.js", "*.lock"}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nUse it with: bytelens --config %s scan .\n", path, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the file (default: ~/.bytelens/config.yaml)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var example bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration in effect",
		Long: `Print the configuration in effect after loading --config (or the
default file), as YAML. With --example, print an annotated starting point
that stores records in SQLite instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if example {
				fmt.Fprintln(out, "# Save as ~/.bytelens/config.yaml or pass with --config")
				fmt.Fprint(out, config.ExampleConfig())
				return nil
			}

			data, err := yaml.Marshal(root.settings())
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&example, "example", false, "Print an example configuration")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check configuration files for errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				if _, err := config.Load(path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d config files are invalid", failed, len(args))
			}
			return nil
		},
	}
}
