// Package commands defines all Cobra CLI commands for the pmrag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/pmrag-go/internal/audit"
	"github.com/54b3r/pmrag-go/internal/config"
	"github.com/54b3r/pmrag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pmrag",
		Short: "pmrag: answer questions from your saved PubMed articles",
		Long: `pmrag keeps a personal library of PubMed abstracts with their embeddings
and answers natural-language questions (English or Korean) from that library,
citing the articles it used.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.pmrag/config.yaml). A .env file in the working
directory is loaded first when present.
See 'pmrag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			if err := config.LoadDotEnv(envFile, log); err != nil {
				return err
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// LOG_LEVEL may have come from the files just loaded.
			log = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.pmrag/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the config file")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewSaveCmd(),
		NewListCmd(),
		NewTranslateCmd(),
		NewVersionCmd(),
	)

	return root
}
