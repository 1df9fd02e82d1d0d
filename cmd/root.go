package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/rasha-hantash/confluence-mirror/config"
	"github.com/rasha-hantash/confluence-mirror/logging"
)

var (
	envFile string
	cfg     config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "confluence-mirror",
	Short: "Mirror Confluence spaces into blob storage",
	Long: `Mirror the page tree of a Confluence space into a blob container, one HTML
object per page at a path built from its ancestor titles.

Configuration is read from the environment, optionally seeded from a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(envFile); err != nil {
			return err
		}
		_, err = logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return err
	},
}

// ExecuteContext adds all child commands to the root command and runs it.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
}
