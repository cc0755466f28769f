package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/receiptify/pkg/config"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	var (
		initFile bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or initialize the configuration file",
		Long: `Config prints the effective configuration as TOML: the defaults merged with
the config file, if one exists.

With --init the defaults are written to the config file so they can be edited.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if initFile {
				return c.initConfig(force)
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&initFile, "init", false, "write the default configuration to the config file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file with --init")

	return cmd
}

func (c *CLI) initConfig(force bool) error {
	path := c.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if err := cfg.Write(path); err != nil {
		return err
	}
	printSuccess("Wrote default configuration")
	printFile(path)
	printNextStep("Export a receipt", "receiptify export --url http://localhost:3000")
	return nil
}
