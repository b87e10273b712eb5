package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/runger/suggestd/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
	Long: `Inspect and initialize the suggestd configuration.

Configuration is stored in ~/.config/suggestd/config.yaml (XDG
compliant). Without a config file, built-in defaults are used and no
sources are configured.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.DefaultPaths().ConfigFile())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	configFile := paths.ConfigFile()

	if _, err := os.Stat(configFile); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configFile)
	}

	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	cfg := starterConfig()
	if err := cfg.SaveToFile(configFile); err != nil {
		return err
	}

	fmt.Printf("%sWrote %s%s\n", colorGreen, configFile, colorReset)
	fmt.Printf("%sEdit the sources section, then run 'suggestd search'.%s\n", colorDim, colorReset)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	os.Stdout.Write(data)
	return nil
}

// starterConfig is the default config plus example sources so a fresh
// install produces results out of the box.
func starterConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sources = []config.SourceConfig{
		{
			Component: "web",
			Type:      "web",
			Label:     "Web",
			URL:       "https://duckduckgo.com/ac/?q={query}&type=list",
		},
		{
			Component: "wikipedia",
			Type:      "http",
			Label:     "Wikipedia",
			URL:       "https://en.wikipedia.org/w/api.php?action=opensearch&search={query}&limit=10",
			Threshold: 2,
		},
	}
	return cfg
}
