package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "quizzy",
		Short:        "Quiz backend: accounts, one-time codes, profiles, streaks and leaderboard",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&port, "port", os.Getenv("PORT"), "port to listen on (overrides config)")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewQuestionsCmd(&configPath))
	return cmd
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
